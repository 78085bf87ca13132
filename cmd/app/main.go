package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"RegimeLab/internal/di"
	"RegimeLab/pkg/config"
)

var configPath string

// rootCmd is the base command for the RegimeLab CLI
var rootCmd = &cobra.Command{
	Use:   "regimelab",
	Short: "Market regime detection and regime-conditioned backtests",
	Long: `RegimeLab fits Gaussian hidden Markov models to engineered daily price
features, picks the number of regimes by BIC and evaluates a lagged
regime-conditioned allocation against buy-and-hold.`,
	SilenceUsage: true,
}

// serveCmd starts the HTTP API and the optional scheduler
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and scheduled re-analysis",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		app, cleanup, err := di.InitializeApp(cfg)
		if err != nil {
			return fmt.Errorf("app initialization failed: %w", err)
		}
		defer cleanup()
		return app.Run(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to configuration file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
}

// loadConfig falls back to built-in defaults when the default config file is absent.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		return config.Default()
	}
	return nil, fmt.Errorf("config load failed: %w", err)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
