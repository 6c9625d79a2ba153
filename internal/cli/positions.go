package cli

import (
	"context"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/skyfeed/internal/config"
	"github.com/rewired-gh/skyfeed/internal/feed"
	"github.com/rewired-gh/skyfeed/internal/models"
)

// BodyPosition is one row of the positions command output.
type BodyPosition struct {
	Body       string  `json:"body" yaml:"body"`
	Longitude  float64 `json:"longitude" yaml:"longitude"`
	Sign       string  `json:"sign" yaml:"sign"`
	Degree     float64 `json:"degree" yaml:"degree"`
	Velocity   float64 `json:"velocity" yaml:"velocity"`
	Retrograde bool    `json:"retrograde" yaml:"retrograde"`
}

// PositionsOptions holds flags for the positions command.
type PositionsOptions struct {
	*RootOptions
	At     string
	Format string
	Bodies []string
}

// NewPositionsCommand creates the positions command.
func NewPositionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PositionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Print oracle longitudes and velocities at one instant",
		Long: `Print the geocentric ecliptic longitude, sign and velocity of each body
at one instant, as reported by the configured oracle.

Example:
  skyfeed positions --at "2024-03-20 03:06"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPositions(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.At, "at", "", "instant to sample (now when empty)")
	cmd.Flags().StringVar(&opts.Format, "format", "", "output format (json|yaml)")
	cmd.Flags().StringSliceVar(&opts.Bodies, "bodies", nil, "bodies to sample (comma separated)")

	return cmd
}

func runPositions(opts *PositionsOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, func(cfg *config.Config) {
		if cmd.Flags().Changed("format") {
			cfg.Output.Format = opts.Format
		}
		if cmd.Flags().Changed("bodies") {
			cfg.Bodies = opts.Bodies
		}
	})
	if err != nil {
		return err
	}

	at := time.Now().UTC()
	if opts.At != "" {
		at, err = feed.ParseDateTime(opts.At)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --at", err)
		}
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	bodies, err := cfg.BodyList()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid bodies", err)
	}
	if !cmd.Flags().Changed("bodies") {
		bodies = append(bodies, models.Moon)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rows := make([]BodyPosition, 0, len(bodies))
	for _, b := range bodies {
		lon, err := a.oracle.Longitude(ctx, b, at)
		if err != nil {
			return WrapExitError(ExitFailure, "oracle longitude", err)
		}
		vel, err := a.oracle.Velocity(ctx, b, at)
		if err != nil {
			return WrapExitError(ExitFailure, "oracle velocity", err)
		}
		rows = append(rows, BodyPosition{
			Body:       b.Title(),
			Longitude:  round(lon, 4),
			Sign:       models.Signs[models.SignIndex(lon)],
			Degree:     round(math.Mod(lon, 30), 2),
			Velocity:   round(vel, 4),
			Retrograde: vel < 0,
		})
	}

	if err := feed.Encode(cmd.OutOrStdout(), cfg.Output.Format, rows); err != nil {
		return WrapExitError(ExitFailure, "failed to write positions", err)
	}
	return nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
