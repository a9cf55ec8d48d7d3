package cmd

import (
	"fmt"
	"log"
	"time"

	"tenant-clone/internal/engine"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	syncAll bool
	dryRun  bool
	tables  []string
)

var syncCmd = &cobra.Command{
	Use:   "sync [CODE]",
	Short: "Create source tables missing from one tenant or from every tenant",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Filter tables strategy:
		// 1. Check CLI flag --tables
		// 2. If empty, check config sync.tables
		// 3. If both empty, process all tables.
		targetTables := tables
		if len(targetTables) == 0 {
			targetTables = viper.GetStringSlice("sync.tables")
		}

		if err := checkSyncArgs(syncAll, args, targetTables); err != nil {
			return err
		}

		if dryRun {
			codes := args
			if syncAll {
				var err error
				if codes, err = Engine.ListActiveTenants(cmd.Context()); err != nil {
					return err
				}
			}
			for _, code := range codes {
				if err := planTables(cmd, code, targetTables); err != nil {
					return err
				}
			}
			return nil
		}

		if syncAll {
			return syncAllTenants(cmd)
		}

		start := time.Now()
		report, err := Engine.SyncTables(cmd.Context(), args[0], targetTables)
		if report != nil {
			printReport(report)
		}
		if err != nil {
			return err
		}
		log.Printf("Sync Done! Time Elapsed: %s", time.Since(start))
		if report.Failed > 0 {
			return fmt.Errorf("%d table(s) failed", report.Failed)
		}
		return nil
	},
}

// checkSyncArgs rejects flag combinations that do not name exactly one
// target: a tenant code, or --all.
func checkSyncArgs(all bool, args, tables []string) error {
	switch {
	case all && len(args) > 0:
		return fmt.Errorf("use either --all or a tenant code, not both")
	case all && len(tables) > 0:
		return fmt.Errorf("--tables cannot be combined with --all")
	case !all && len(args) == 0:
		return fmt.Errorf("a tenant code is required (or use --all)")
	}
	return nil
}

func syncAllTenants(cmd *cobra.Command) error {
	ctx := cmd.Context()

	sourceTables, err := Engine.SourceTables(ctx)
	if err != nil {
		return err
	}
	codes, err := Engine.ListActiveTenants(ctx)
	if err != nil {
		return err
	}
	log.Printf("Starting sync of %d table(s) into %d tenant(s)...", len(sourceTables), len(codes))
	start := time.Now()

	if !quiet && len(sourceTables)*len(codes) > 0 {
		uiprogress.Start()
		bar := uiprogress.AddBar(len(sourceTables) * len(codes)).AppendCompleted().PrependElapsed()
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return "Processing: "
		})
		Engine.SetOnTable(func(engine.TableEvent) {
			bar.Incr()
		})
	}

	reports, err := Engine.SyncAllTablesToAllTenants(ctx)
	uiprogress.Stop()
	if err != nil {
		return err
	}

	degraded := printReports(reports)
	log.Printf("Sync Done! Time Elapsed: %s", time.Since(start))
	if degraded > 0 {
		return fmt.Errorf("%d tenant(s) did not sync cleanly", degraded)
	}
	return nil
}

// planTables prints the DDL each table would get, without applying it.
func planTables(cmd *cobra.Command, code string, only []string) error {
	log.Printf("[SIMULATION] Dry-Run Mode Active: No DDL will be executed for %s.", code)

	names := only
	if len(names) == 0 {
		var err error
		if names, err = Engine.SourceTables(cmd.Context()); err != nil {
			return err
		}
	}

	for i, table := range names {
		stmts, err := Engine.Plan(cmd.Context(), table, code)
		if err != nil {
			fmt.Printf("[%02d] %s\n    └ Error: %v\n", i+1, table, err)
			continue
		}
		fmt.Printf("[%02d] %s\n", i+1, table)
		for _, st := range stmts {
			fmt.Printf("%s;\n", st.SQL)
		}
		fmt.Println()
	}
	return nil
}

func init() {
	RootCmd.AddCommand(syncCmd)

	// CLI Flags
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "Sync every active tenant")
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the DDL without executing it")
	syncCmd.Flags().StringSliceVarP(&tables, "tables", "t", []string{}, "Specific source tables to sync (comma-separated)")
	syncCmd.Flags().Int("workers", 0, "Tenants synced in parallel with --all (overrides config)")

	viper.BindPFlag("sync.workers", syncCmd.Flags().Lookup("workers"))
}
