package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ecoroute/internal/config"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// cli carries the flags shared by every command and the loaded configuration.
type cli struct {
	configPath string
	logLevel   string
	table      string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:           "ecoroute",
		Short:         "Compare commute CO2 emissions and ask a local model about them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
	}
	cmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", config.DefaultPath, "Path to the config file")
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&c.table, "table", "", "Emission table to use (india, urban)")

	cmd.AddCommand(
		newModesCommand(c),
		newCalcCommand(c),
		newCompareCommand(c),
		newPlanCommand(c),
		newAskCommand(c),
		newIngestCommand(c),
		newChatCommand(c),
		newTUICommand(c),
		newServeCommand(c),
	)
	return cmd
}

func (c *cli) load() error {
	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if c.table != "" {
		cfg.Emissions.Table = c.table
		cfg.Emissions.File = ""
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)
	log.Debug().Str("path", c.configPath).Str("mode", cfg.RAG.Mode).Str("store", cfg.RAG.Store).Str("model", cfg.LLM.Model).Msg("Loaded config")

	c.cfg = cfg
	return nil
}
