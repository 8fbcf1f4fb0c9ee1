package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atelierforma/gatekeeper/pkg/db"
	"github.com/atelierforma/gatekeeper/pkg/identity"
	storegorm "github.com/atelierforma/gatekeeper/pkg/store/gorm"
)

// roleShowCmd represents the role show command
var roleShowCmd = &cobra.Command{
	Use:   "show <principal>",
	Short: "Show a principal's role",
	Long: `Show the role currently assigned to a principal.

Example:
  gatectl role show alice`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := showRole(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to show role: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	roleCmd.AddCommand(roleShowCmd)
}

func showRole(principal string) error {
	gormDB, err := db.Connect(db.Config{})
	if err != nil {
		return err
	}

	roles := storegorm.NewRoleStore(gormDB)
	r, found, err := roles.GetRole(context.Background(), identity.Principal(principal))
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("%s has no role assignment (treated as user)\n", principal)
		return nil
	}

	fmt.Printf("%s: %s\n", principal, r)
	return nil
}
