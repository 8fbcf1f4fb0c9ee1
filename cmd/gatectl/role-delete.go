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

// roleDeleteCmd represents the role delete command
var roleDeleteCmd = &cobra.Command{
	Use:   "delete <principal>",
	Short: "Remove a principal's role assignment",
	Long: `Remove a principal's role assignment. The principal is treated as
an ordinary user afterwards.

Example:
  gatectl role delete alice`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := deleteRole(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to delete role: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	roleCmd.AddCommand(roleDeleteCmd)
}

func deleteRole(principal string) error {
	gormDB, err := db.Connect(db.Config{})
	if err != nil {
		return err
	}

	roles := storegorm.NewRoleStore(gormDB)
	if err := roles.DeleteRole(context.Background(), identity.Principal(principal)); err != nil {
		return err
	}

	fmt.Printf("Deleted role assignment for %s\n", principal)
	return nil
}
