package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/praveen131106/ivr-modern"
	"github.com/praveen131106/ivr-modern/internal/cli"
	"github.com/praveen131106/ivr-modern/internal/config"
	"github.com/praveen131106/ivr-modern/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "ivr",
	Short: "IVR is a train enquiry phone line simulator",
	Long: `IVR simulates a railway enquiry phone line. Callers navigate menus with keypad
digits or free speech; flows are declared in JSON or YAML documents.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML configuration file")
	flags.String("env-file", ".env", "dotenv file loaded before the environment")
	flags.String("flows", "", "Directory of flow documents (default: built-in flows)")
	flags.String("store", "", "Session store: memory, file or redis")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text or json")
	flags.Bool("debug", false, "Log every state transition and turn")
}

// loadConfig layers the command-line flags over the file and environment configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, err := config.Load(path, envFile)
	if err != nil {
		return nil, err
	}

	override := func(flag string, dst *string) {
		if cmd.Flags().Changed(flag) {
			*dst, _ = cmd.Flags().GetString(flag)
		}
	}
	override("flows", &cfg.FlowsDir)
	override("store", &cfg.Store.Driver)
	override("log-level", &cfg.Log.Level)
	override("log-format", &cfg.Log.Format)
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger. Errors are impossible after Validate.
func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := logging.ParseLevel(cfg.Log.Level)
	format, _ := logging.ParseFormat(cfg.Log.Format)
	logger := logging.New(level, format)
	slog.SetDefault(logger)
	return logger
}

// app is what a command works with once configured.
type app struct {
	cfg    *config.Config
	engine *ivr.Engine
	logger *slog.Logger
}

// setup loads the configuration and builds the engine for a command.
func setup(cmd *cobra.Command, opts cli.EngineOptions) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = newLogger(cfg)
	}
	opts.Debug, _ = cmd.Flags().GetBool("debug")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	engine, err := cli.NewEngine(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, engine: engine, logger: opts.Logger}, nil
}
