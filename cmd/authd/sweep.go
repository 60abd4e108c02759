package main

import (
	"sort"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge expired revocations and passkey challenges once",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		counts, err := a.sweeper.RunOnce(cmd.Context())

		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			cmd.Printf("%s: %d removed\n", name, counts[name])
		}

		return err
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
