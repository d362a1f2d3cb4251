package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-peppol-as2/internal/sender"
)

// NewWatchCommand creates the watch command
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Send every SBD file dropped into the outbox folder",
		Long: `Watch folders.sending and send each Standard Business Document placed there.
Sent files are deleted; files that fail are moved to folders.sendingError with
a report. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := rootOpts.load(cmd)
			if err != nil {
				return err
			}
			if cfg.Folders.Sending == "" {
				return errors.New("folders.sending is not configured")
			}

			params, err := cfg.Params()
			if err != nil {
				return err
			}
			opts, err := cfg.ClientOptions(logger)
			if err != nil {
				return err
			}

			s, err := sender.NewFolderSender(&sender.Config{
				SendingDir:   cfg.Folders.Sending,
				ErrorDir:     cfg.Folders.SendingError,
				PollInterval: cfg.Folders.PollInterval,
			}, params, opts, logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := s.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			s.Stop()
			return nil
		},
	}
}
