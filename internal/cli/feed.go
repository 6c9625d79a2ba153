package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/skyfeed/internal/config"
	"github.com/rewired-gh/skyfeed/internal/feed"
	"github.com/rewired-gh/skyfeed/internal/logger"
)

// RangeFlags select the feed range and detections. Unset flags keep the
// configured values.
type RangeFlags struct {
	Start      string
	End        string
	Days       int
	Workers    int
	Categories []string
	Bodies     []string
}

func (f *RangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Start, "start", "", "range start (YYYY-MM-DD[ HH:MM[:SS]])")
	cmd.Flags().StringVar(&f.End, "end", "", "range end, exclusive (YYYY-MM-DD[ HH:MM[:SS]])")
	cmd.Flags().IntVar(&f.Days, "days", 0, "range length in days when --end is not set")
	cmd.Flags().IntVarP(&f.Workers, "workers", "w", 0, "number of concurrent detection tasks")
	cmd.Flags().StringSliceVar(&f.Categories, "categories", nil, "categories to detect (comma separated)")
	cmd.Flags().StringSliceVar(&f.Bodies, "bodies", nil, "bodies to scan (comma separated)")
}

func (f *RangeFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("start") {
		cfg.Range.Start = f.Start
	}
	if flags.Changed("end") {
		cfg.Range.End = f.End
	}
	if flags.Changed("days") {
		cfg.Range.Days = f.Days
		if !flags.Changed("end") {
			cfg.Range.End = ""
		}
	}
	if flags.Changed("workers") {
		cfg.Workers = f.Workers
	}
	if flags.Changed("categories") {
		cfg.Categories = f.Categories
	}
	if flags.Changed("bodies") {
		cfg.Bodies = f.Bodies
	}
}

// FeedOptions holds flags for the feed command.
type FeedOptions struct {
	*RootOptions
	RangeFlags
	Format     string
	Output     string
	Envelope   bool
	ClearCache bool
}

// NewFeedCommand creates the feed command.
func NewFeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Compute the event feed and write it as JSON or YAML",
		Long: `Compute the event feed for a date range and write it as JSON or YAML.

Example:
  skyfeed feed --start 2024-01-01 --end 2024-02-01
  skyfeed feed -c skyfeed.yaml --format yaml --envelope -o feed.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeed(opts, cmd)
		},
	}

	opts.RangeFlags.register(cmd)
	cmd.Flags().StringVar(&opts.Format, "format", "", "output format (json|yaml)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (stdout when empty)")
	cmd.Flags().BoolVar(&opts.Envelope, "envelope", false, "wrap events with run metadata")
	cmd.Flags().BoolVar(&opts.ClearCache, "clear-cache", false, "empty the sample cache before the run")

	return cmd
}

func runFeed(opts *FeedOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, func(cfg *config.Config) {
		opts.RangeFlags.apply(cmd, cfg)
		if cmd.Flags().Changed("format") {
			cfg.Output.Format = opts.Format
		}
		if cmd.Flags().Changed("output") {
			cfg.Output.Path = opts.Output
		}
		if cmd.Flags().Changed("envelope") {
			cfg.Output.Envelope = opts.Envelope
		}
	})
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if opts.ClearCache {
		if err := a.clearCache(); err != nil {
			return WrapExitError(ExitFailure, "failed to clear sample cache", err)
		}
	}

	env, err := a.build(cmd.Context())
	if err != nil {
		return err
	}

	var v any = env.Events
	if cfg.Output.Envelope {
		v = env
	}
	if err := writeOutput(cmd.OutOrStdout(), cfg.Output.Path, cfg.Output.Format, v); err != nil {
		return WrapExitError(ExitFailure, "failed to write feed", err)
	}
	return nil
}

// build runs the calendar over the configured range.
func (a *app) build(ctx context.Context) (feed.Envelope, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start, end, err := a.cfg.Period(time.Now())
	if err != nil {
		return feed.Envelope{}, WrapExitError(ExitCommandError, "invalid range", err)
	}
	cal, err := a.calendar()
	if err != nil {
		return feed.Envelope{}, err
	}

	began := time.Now()
	records, err := cal.Feed(ctx, start, end)
	if err != nil {
		return feed.Envelope{}, WrapExitError(ExitFailure, "feed run failed", err)
	}

	env := feed.NewEnvelope(records, start, end)
	logger.With("run_id", env.RunID).Info(fmt.Sprintf("Feed complete: %d records in %v", len(records), time.Since(began).Round(time.Millisecond)))
	return env, nil
}

// writeOutput encodes v to path, or to stdout when path is empty. Files are
// written through a temp file and renamed into place.
func writeOutput(stdout io.Writer, path, format string, v any) error {
	if path == "" {
		return feed.Encode(stdout, format, v)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".skyfeed-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := feed.Encode(tmp, format, v); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move feed into place: %w", err)
	}
	logger.Info("Feed written to %s", path)
	return nil
}
