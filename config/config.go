/*
Package config loads the accrual ruleset from a YAML file.

PURPOSE:
  Everything an operator may tune lives here: the tier table, the monthly
  cap, the regime boundary, the anniversary check mode and the long-tenure
  allow-list. The file maps one-to-one onto leave.Policy; Build performs
  the conversion and validation so callers never see a half-formed policy.

USAGE:
  cfg, err := config.Load("./leave.yaml")
  if err != nil { ... }
  policy, err := cfg.Build()

SEE ALSO:
  - leave/policy.go: the runtime ruleset this file populates
*/
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/warp/leave-ledger/leave"
)

// =============================================================================
// FILE SCHEMA
// =============================================================================

// Config mirrors the YAML file. Zero fields fall back to the statutory
// defaults, so an empty file is a valid configuration.
type Config struct {
	Accrual struct {
		BaseAnnualGrant    int `yaml:"base_annual_grant"`
		StepStartYear      int `yaml:"step_start_year"`
		StepEveryYears     int `yaml:"step_every_years"`
		AnnualGrantCeiling int `yaml:"annual_grant_ceiling"`
		MonthlyGrantCap    int `yaml:"monthly_grant_cap"`
		SeniorTenureDays   int `yaml:"senior_tenure_days"`
	} `yaml:"accrual"`

	// AnniversaryCheckMode: "full_year" or "today_gated".
	AnniversaryCheckMode string `yaml:"anniversary_check_mode"`

	ForfeitOnResignation bool `yaml:"forfeit_on_resignation"`

	// LongTenureEmployees lists employee ids whose accrual history
	// predates full records; they are always treated as annual-regime.
	LongTenureEmployees []string `yaml:"long_tenure_employees"`

	MaxBoundaryWalk int `yaml:"max_boundary_walk"`
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// =============================================================================
// POLICY CONSTRUCTION
// =============================================================================

// Build converts the file into a validated leave.Policy, filling unset
// fields from the statutory defaults.
func (c *Config) Build() (leave.Policy, error) {
	policy := leave.DefaultPolicy()

	if c.Accrual.BaseAnnualGrant > 0 {
		policy.BaseAnnualGrant = c.Accrual.BaseAnnualGrant
	}
	if c.Accrual.StepStartYear > 0 {
		policy.StepStartYear = c.Accrual.StepStartYear
	}
	if c.Accrual.StepEveryYears > 0 {
		policy.StepEveryYears = c.Accrual.StepEveryYears
	}
	if c.Accrual.AnnualGrantCeiling > 0 {
		policy.AnnualGrantCeiling = c.Accrual.AnnualGrantCeiling
	}
	if c.Accrual.MonthlyGrantCap > 0 {
		policy.MonthlyGrantCap = c.Accrual.MonthlyGrantCap
	}
	if c.Accrual.SeniorTenureDays > 0 {
		policy.SeniorTenureDays = c.Accrual.SeniorTenureDays
	}
	if c.AnniversaryCheckMode != "" {
		policy.CheckMode = leave.AnniversaryCheckMode(c.AnniversaryCheckMode)
	}
	if c.MaxBoundaryWalk > 0 {
		policy.MaxBoundaryWalk = c.MaxBoundaryWalk
	}
	policy.ForfeitOnResignation = c.ForfeitOnResignation

	if len(c.LongTenureEmployees) > 0 {
		allow := make(map[leave.EmployeeID]bool, len(c.LongTenureEmployees))
		for _, id := range c.LongTenureEmployees {
			allow[leave.EmployeeID(id)] = true
		}
		policy.LongTenure = func(emp leave.Employee) bool {
			return allow[emp.ID]
		}
	}

	if err := policy.Validate(); err != nil {
		return leave.Policy{}, err
	}
	return policy, nil
}
