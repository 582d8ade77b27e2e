package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rzbill/stencil/internal/config"
	"github.com/rzbill/stencil/pkg/log"
	"github.com/rzbill/stencil/pkg/version"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stencil",
	Short: "Stencil - CI/CD template propagation",
	Long: `Stencil renders standardized CI/CD artifacts (pipeline config,
Dockerfile, Helm chart) from a row of onboarding data, validates them,
and publishes them to each application repository behind a pull request.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			cmd.Help()
			return
		}
	},
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.stencil/stencil.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	viper.SetEnvPrefix("STENCIL")
	viper.AutomaticEnv()

	rootCmd.AddCommand(newApplyCmd())
	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newLintCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// loadConfig resolves the runtime configuration for a command invocation.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the logger the configured way, bumped to debug when
// --verbose is set.
func newLogger(cfg *config.Config) log.Logger {
	level := log.ParseLevel(cfg.Log.Level)
	if verbose {
		level = log.DebugLevel
	}

	var formatter log.Formatter = log.NewTextFormatter()
	if cfg.Log.Format == "json" {
		formatter = &log.JSONFormatter{}
	}

	logger := log.NewLogger(log.WithLevel(level), log.WithFormatter(formatter))
	log.SetDefaultLogger(logger)
	return logger
}
