/*
main.go - leavectl, the operator's command-line for the leave ledger

PURPOSE:
  Runs the same engine the server exposes, directly against the database,
  for batch and audit work:

    leavectl report  - print the year-by-employee ledger table
    leavectl expire  - walk anniversary boundaries and record forfeitures

GLOBAL FLAGS:
  --db      SQLite database path (default: leave.db)
  --config  Policy YAML path (default: leave.yaml; missing file falls
            back to the statutory defaults)

EXAMPLES:
  leavectl report --year 2025
  leavectl report --year 2025 --as-of 2025-06-30
  leavectl expire --as-of 2025-12-31

SEE ALSO:
  - cmd/server: the HTTP shell around the same engine
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/warp/leave-ledger/calendar"
	"github.com/warp/leave-ledger/config"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/store/sqlite"
)

var (
	dbPath     string
	configPath string
	yearFlag   int
	asOfFlag   string
)

func main() {
	root := &cobra.Command{
		Use:           "leavectl",
		Short:         "Operator tooling for the leave ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "leave.db", "SQLite database path")
	root.PersistentFlags().StringVar(&configPath, "config", "leave.yaml", "policy YAML path")

	report := &cobra.Command{
		Use:   "report",
		Short: "Print the year-by-employee ledger table",
		RunE:  runReport,
	}
	report.Flags().IntVar(&yearFlag, "year", 0, "report year (default: current year)")
	report.Flags().StringVar(&asOfFlag, "as-of", "", "projection date YYYY-MM-DD (default: today)")

	expire := &cobra.Command{
		Use:   "expire",
		Short: "Walk anniversary boundaries and record forfeitures",
		RunE:  runExpire,
	}
	expire.Flags().StringVar(&asOfFlag, "as-of", "", "boundary cutoff YYYY-MM-DD (default: today)")

	root.AddCommand(report, expire)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// wire opens the store and builds the engine stack shared by all commands.
func wire() (*sqlite.Store, *leave.BalanceProjector, error) {
	policy := leave.DefaultPolicy()
	if cfg, err := config.Load(configPath); err == nil {
		policy, err = cfg.Build()
		if err != nil {
			return nil, nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, nil, err
	}

	store, err := sqlite.New(dbPath)
	if err != nil {
		return nil, nil, err
	}

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	accrual := leave.NewAccrualPolicy(policy)
	accrual.Trace = leave.LogrusTracer(log)
	projector := &leave.BalanceProjector{
		Policy:     accrual,
		Directory:  store,
		Events:     store,
		Overrides:  store,
		Expiration: leave.NewExpirationEngine(accrual, store, store),
		Snapshots:  store,
		Trace:      accrual.Trace,
	}
	return store, projector, nil
}

func resolveAsOf() (calendar.Date, error) {
	if asOfFlag == "" {
		return calendar.Today(), nil
	}
	return calendar.Parse(asOfFlag)
}

func runReport(cmd *cobra.Command, _ []string) error {
	asOf, err := resolveAsOf()
	if err != nil {
		return fmt.Errorf("invalid --as-of: %w", err)
	}
	year := yearFlag
	if year == 0 {
		year = asOf.Year()
	}

	store, projector, err := wire()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	rows, projErrs, err := projector.ProjectAll(ctx, year, asOf)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "EMPLOYEE\tCARRY IN\tACCRUAL\tUSED\tREMAINING\tEXPIRED (%d)\tWARNINGS\n", year)
	for _, row := range rows {
		expired := "-"
		for _, rec := range row.Expirations {
			if expired == "-" {
				expired = rec.Amount.String()
				continue
			}
			expired += "+" + rec.Amount.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			row.EmployeeID, row.CarryIn, row.YearAccrual, row.YearUsage,
			row.Remaining, expired, len(row.Warnings))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, pe := range projErrs {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", pe.Error())
	}
	return nil
}

func runExpire(cmd *cobra.Command, _ []string) error {
	asOf, err := resolveAsOf()
	if err != nil {
		return fmt.Errorf("invalid --as-of: %w", err)
	}

	store, projector, err := wire()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	employees, err := projector.Directory.Employees(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EMPLOYEE\tKIND\tAMOUNT\tEXPIRED AT\tPERIOD YEAR")
	for _, emp := range employees {
		records, err := projector.Expiration.Run(ctx, emp, emp.Horizon(asOf))
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
			continue
		}
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
				rec.EmployeeID, rec.Kind, rec.Amount, rec.ExpiredAt, rec.PeriodYear)
		}
	}
	return w.Flush()
}
