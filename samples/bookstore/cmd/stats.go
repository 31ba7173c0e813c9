package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show inventory statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to compute statistics: %w", err)
		}

		keys := make([]string, 0, len(stats))
		for k := range stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%-14s %d\n", k, stats[k])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
