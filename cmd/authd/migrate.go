package main

import (
	"github.com/spf13/cobra"

	auth "github.com/caffeine-addictt/greenbitessg-sub000"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, dialect, err := auth.OpenDB(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := auth.Migrate(cmd.Context(), db.DB, dialect); err != nil {
			return err
		}

		cmd.Printf("migrations applied (%s)\n", dialect)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
