package main

import (
	"github.com/spf13/cobra"

	auth "github.com/caffeine-addictt/greenbitessg-sub000"
)

var demote bool

var promoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Grant or revoke the admin permission of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		user, err := a.repo.Users().GetByEmail(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		permission := auth.PermissionAdmin
		if demote {
			permission = auth.PermissionUser
		}

		if err := a.repo.Users().SetPermission(cmd.Context(), user.ID, permission); err != nil {
			return err
		}

		cmd.Printf("%s permission set to %d\n", user.Email, permission)
		return nil
	},
}

func init() {
	promoteCmd.Flags().BoolVar(&demote, "demote", false, "remove the admin permission instead")
	rootCmd.AddCommand(promoteCmd)
}
