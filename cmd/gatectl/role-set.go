package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atelierforma/gatekeeper/pkg/db"
	"github.com/atelierforma/gatekeeper/pkg/identity"
	"github.com/atelierforma/gatekeeper/pkg/role"
	storegorm "github.com/atelierforma/gatekeeper/pkg/store/gorm"
)

// roleSetCmd represents the role set command
var roleSetCmd = &cobra.Command{
	Use:   "set <principal> <role>",
	Short: "Assign a role to a principal",
	Long: `Assign a role to a principal, replacing any previous assignment.

Valid roles: ` + strings.Join(role.RoleStrings(), ", ") + `

Example:
  gatectl role set alice admin`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := setRole(args[0], args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to set role: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	roleCmd.AddCommand(roleSetCmd)
}

func setRole(principal, roleName string) error {
	r, err := role.RoleString(roleName)
	if err != nil {
		return fmt.Errorf("unknown role %q (valid: %s)", roleName, strings.Join(role.RoleStrings(), ", "))
	}

	gormDB, err := db.Connect(db.Config{})
	if err != nil {
		return err
	}

	roles := storegorm.NewRoleStore(gormDB)
	if err := roles.SetRole(context.Background(), identity.Principal(principal), r); err != nil {
		return err
	}

	fmt.Printf("%s: %s\n", principal, r)
	return nil
}
