package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-ledger/config"
	"github.com/warp/leave-ledger/leave"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leave.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
accrual:
  base_annual_grant: 20
  step_start_year: 4
  step_every_years: 3
  annual_grant_ceiling: 30
  monthly_grant_cap: 10
  senior_tenure_days: 400
anniversary_check_mode: today_gated
forfeit_on_resignation: true
long_tenure_employees:
  - emp-legacy
max_boundary_walk: 20
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	policy, err := cfg.Build()
	require.NoError(t, err)

	assert.Equal(t, 20, policy.BaseAnnualGrant)
	assert.Equal(t, 30, policy.AnnualGrantCeiling)
	assert.Equal(t, 400, policy.SeniorTenureDays)
	assert.Equal(t, leave.CheckTodayGated, policy.CheckMode)
	assert.True(t, policy.ForfeitOnResignation)
	assert.Equal(t, 20, policy.MaxBoundaryWalk)

	require.NotNil(t, policy.LongTenure)
	assert.True(t, policy.LongTenure(leave.Employee{ID: "emp-legacy"}))
	assert.False(t, policy.LongTenure(leave.Employee{ID: "emp-new"}))
}

func TestBuild_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	policy, err := cfg.Build()
	require.NoError(t, err)
	assert.Equal(t, leave.DefaultPolicy().BaseAnnualGrant, policy.BaseAnnualGrant)
	assert.Equal(t, leave.CheckFullYear, policy.CheckMode)
	assert.Nil(t, policy.LongTenure)
}

func TestBuild_InvalidModeRejected(t *testing.T) {
	path := writeConfig(t, "anniversary_check_mode: whenever\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	_, err = cfg.Build()
	assert.ErrorIs(t, err, leave.ErrInvalidPolicy)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
