package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runNow bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run sync --all on a cron schedule until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Overlapping runs would only contend for the same tenant locks.
		c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
		entryID, err := c.AddFunc(AppConfig.Schedule.Cron, func() {
			runScheduledSync(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid schedule.cron %q: %w", AppConfig.Schedule.Cron, err)
		}

		log.Printf("Starting scheduler with schedule: %s", AppConfig.Schedule.Cron)
		c.Start()
		log.Printf("Next sync scheduled at: %s", c.Entry(entryID).Next.Format("2006-01-02 15:04:05"))

		if runNow {
			go runScheduledSync(ctx)
		}

		<-ctx.Done()
		log.Println("Stopping scheduler, waiting for the running sync to finish...")
		<-c.Stop().Done()
		log.Println("Scheduler stopped")
		return nil
	},
}

func runScheduledSync(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	log.Printf("Cron triggered at %s", start.Format("2006-01-02 15:04:05"))

	reports, err := Engine.SyncAllTablesToAllTenants(ctx)
	if err != nil {
		log.Printf("Scheduled sync failed: %v", err)
		return
	}
	degraded := printReports(reports)
	log.Printf("Scheduled sync done in %s (%d degraded)", time.Since(start), degraded)
}

func init() {
	RootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().BoolVar(&runNow, "now", false, "Also run a sync immediately on start")
	scheduleCmd.Flags().String("cron", "", "Cron expression (overrides schedule.cron)")

	viper.BindPFlag("schedule.cron", scheduleCmd.Flags().Lookup("cron"))
}
