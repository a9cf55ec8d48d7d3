package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var provisionCmd = &cobra.Command{
	Use:   "provision CODE",
	Short: "Create a tenant database and clone the source schema into it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := Engine.ProvisionTenant(cmd.Context(), args[0])
		if report != nil {
			printReport(report)
		}
		if err != nil {
			return err
		}
		if report.Failed > 0 {
			return fmt.Errorf("tenant %s provisioned with %d failed table(s)", report.Tenant, report.Failed)
		}

		log.Printf("Tenant %s provisioned.", report.Tenant)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(provisionCmd)
}
