package cmd

import (
	"fmt"
	"sort"
	"time"

	"tenant-clone/internal/engine"
)

// printReport writes a report in the same block format for every command.
func printReport(r *engine.SyncReport) {
	icon := "✓"
	if r.State != engine.PhaseCompleted {
		icon = "!"
	}

	fmt.Printf("\n📊 [%s] Tenant %s (run %s)\n", icon, r.Tenant, r.RunID)
	fmt.Printf("    Created: %d  Skipped: %d  Failed: %d  (%s, %s)\n",
		r.Created, r.Skipped, r.Failed, r.State, r.Duration.Round(time.Millisecond))
	if r.Error != "" {
		fmt.Printf("    └ Error: %s\n", r.Error)
	}
	for _, table := range r.FailedTables() {
		fmt.Printf("    └ %-24s : %s\n", table, r.PerTableErrors[table])
	}
}

// printReports prints reports ordered by tenant code and returns the
// number of tenants that did not complete cleanly.
func printReports(reports map[string]*engine.SyncReport) int {
	codes := make([]string, 0, len(reports))
	for code := range reports {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	degraded := 0
	for _, code := range codes {
		printReport(reports[code])
		if reports[code].State != engine.PhaseCompleted {
			degraded++
		}
	}
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Tenants: %d, degraded: %d\n", len(codes), degraded)
	return degraded
}
