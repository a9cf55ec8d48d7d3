package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var confirmDrop bool

var decommissionCmd = &cobra.Command{
	Use:   "decommission CODE",
	Short: "Terminate sessions on a tenant database and drop it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirmDrop {
			return fmt.Errorf("refusing to drop tenant %s without --yes", args[0])
		}

		log.Printf("Decommissioning tenant %s...", args[0])
		if err := Engine.DecommissionTenant(cmd.Context(), args[0]); err != nil {
			return err
		}

		log.Println("Tenant Decommissioned Successfully!")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(decommissionCmd)

	decommissionCmd.Flags().BoolVar(&confirmDrop, "yes", false, "Confirm dropping the tenant database")
}
