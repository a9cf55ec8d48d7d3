package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "List active tenant databases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		codes, err := Engine.ListActiveTenants(cmd.Context())
		if err != nil {
			return err
		}
		if len(codes) == 0 {
			fmt.Println("No active tenants.")
			return nil
		}
		for i, code := range codes {
			fmt.Printf("[%02d] %s\n", i+1, code)
		}
		return nil
	},
}

var existsCmd = &cobra.Command{
	Use:   "exists CODE",
	Short: "Report whether a tenant database exists (exit status 1 if not)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := Engine.TenantExists(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("tenant %s does not exist", args[0])
		}
		fmt.Printf("tenant %s exists\n", args[0])
		return nil
	},
}

func init() {
	RootCmd.AddCommand(tenantsCmd)
	RootCmd.AddCommand(existsCmd)
}
