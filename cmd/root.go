// Package cmd implements the tapcore command-line interface. It is a thin
// shell over the extraction core: it loads configuration, wires the
// components together and moves documents between files and stdio.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tapcore/tapcore/pkg/config"
	"github.com/tapcore/tapcore/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tapcore",
	Short: "Extract structured record streams from embedded SQL databases",
	Long: `tapcore discovers the catalog of a file-backed SQL database and
extracts its tables and views as ordered, schema-conformant record
streams with resumable, checkpointed state.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Init(logger.Config{
			Level:    viper.GetString("log_level"),
			Encoding: "json",
		}); err != nil {
			return err
		}

		cfg = config.New(viper.GetString("path"), viper.GetString("database"))
		if err := viper.Unmarshal(cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		return nil
	},
}

// Execute runs the root command. The process exits non-zero when any
// selected stream ended in the failed status.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./tapcore.yaml)")
	rootCmd.PersistentFlags().String("path", "", "filesystem path to the database file")
	rootCmd.PersistentFlags().String("database", "", "logical database name stamped onto discovered entries")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("path", rootCmd.PersistentFlags().Lookup("path"))
	_ = viper.BindPFlag("database", rootCmd.PersistentFlags().Lookup("database"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("tapcore")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("TAPCORE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
}
