package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const app = "studymate"

// Actual version can be specified in build command.
var version = "unknown"

var (
	cfgFile string
	conf    = newViper()

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "StudyMate backend: study partner matching and the AI study assistant",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("%s version: %s\n", app, version)
		},
	}
)

func init() {
	cobra.OnInitialize(func() {
		if err := loadDotEnv(dotEnvFilename); err != nil {
			log.Fatal(err)
		}
	})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a YAML config file (settings can also come from STUDYMATE_* env vars)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	_ = conf.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = conf.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	rootCmd.AddCommand(versionCmd)
}

// bootstrap loads the config and builds the logger for a subcommand.
func bootstrap() (*Config, *zap.Logger, error) {
	cfg, err := loadConfig(conf, cfgFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.JSON, cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("creating a logger: %w", err)
	}
	return cfg, logger, nil
}
