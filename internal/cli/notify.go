package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/skyfeed/internal/config"
	"github.com/rewired-gh/skyfeed/internal/logger"
	"github.com/rewired-gh/skyfeed/internal/telegram"
)

// NotifyOptions holds flags for the notify command.
type NotifyOptions struct {
	*RootOptions
	RangeFlags
}

// NewNotifyCommand creates the notify command.
func NewNotifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NotifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Compute the event feed and send it as a Telegram digest",
		Long: `Compute the event feed and send it to the configured Telegram chat.
A failed run is reported to the chat before the command exits.

Example:
  skyfeed notify -c skyfeed.yaml --days 7`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotify(opts, cmd)
		},
	}

	opts.RangeFlags.register(cmd)
	return cmd
}

func runNotify(opts *NotifyOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, func(cfg *config.Config) {
		opts.RangeFlags.apply(cmd, cfg)
	})
	if err != nil {
		return err
	}
	if !cfg.Telegram.Enabled {
		return NewExitError(ExitCommandError, "telegram is not enabled in the configuration")
	}

	client, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize Telegram client", err)
	}
	logger.Debug("Telegram client initialized successfully")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	env, err := a.build(ctx)
	if err != nil {
		if sendErr := client.SendError(context.WithoutCancel(ctx), err); sendErr != nil {
			logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
		}
		return err
	}

	if err := client.SendDigest(ctx, env); err != nil {
		return WrapExitError(ExitFailure, "failed to send Telegram digest", err)
	}
	logger.Info("Sent Telegram digest with %d events", len(env.Events))
	return nil
}
