package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/docent-go/docent/samples/bookstore/app"
)

var (
	configPath string
	verbose    bool
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bookstore",
	Short: "A small bookstore inventory built on docent",
	Long: `Bookstore is a command-line inventory application demonstrating docent's
typed schema declarations, query and update builders, and the single-file
store driver.

Examples:
  bookstore add --author "Ursula K. Le Guin" --isbn 978-0441007318 "The Left Hand of Darkness"
  bookstore list --genre scifi
  bookstore restock 978-0441007318 --count 10
  bookstore stats`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger = zap.NewNop()
		}
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func loadConfig() error {
	viper.SetDefault("store", "bookstore.json")
	viper.SetDefault("database", "bookstore")
	viper.SetEnvPrefix("BOOKSTORE")
	viper.AutomaticEnv()

	if configPath != "" {
		viper.SetConfigFile(configPath)
		return viper.ReadInConfig()
	}

	viper.SetConfigName("bookstore")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}
	return nil
}

// openApp picks the backend from the config: a MongoDB URI when one is set,
// the local store file otherwise.
func openApp(ctx context.Context) (*app.App, error) {
	if uri := viper.GetString("mongo-uri"); uri != "" {
		return app.OpenMongo(ctx, uri, viper.GetString("database"), logger)
	}
	return app.Open(ctx, viper.GetString("store"), logger)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
