package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-peppol-as2/internal/config"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "peppol-as2",
		Short:         "PEPPOL AS2 sending client",
		Long:          "Looks up PEPPOL receivers in the SML/SMP, wraps business documents in an SBDH and sends them over AS2.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "peppol-as2.yaml", "configuration file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error), overrides the config file")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (text|json), overrides the config file")

	cmd.AddCommand(NewSendCommand(opts))
	cmd.AddCommand(NewLookupCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewKeyStoreCommand(opts))

	return cmd
}

// load reads the configuration file and creates the logger
func (o *RootOptions) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	return cfg, cfg.NewLogger(cmd.ErrOrStderr()), nil
}
