package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// defaultConfig is what config init writes out. Setting mongo-uri switches
// the backend from the local store file to a MongoDB deployment.
type defaultConfig struct {
	Store    string `yaml:"store"`
	MongoURI string `yaml:"mongo-uri,omitempty"`
	Database string `yaml:"database"`
}

var configCmd = &cobra.Command{
	Use:   "config init [path]",
	Short: "Write a default config file",
	Long: `Write a default bookstore.yaml config file. The optional path
argument overrides the default location in the current directory.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] != "init" {
			return fmt.Errorf("unknown config subcommand %q", args[0])
		}
		path := "bookstore.yaml"
		if len(args) == 2 {
			path = args[1]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %q already exists", path)
		}

		raw, err := yaml.Marshal(defaultConfig{Store: "bookstore.json", Database: "bookstore"})
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
