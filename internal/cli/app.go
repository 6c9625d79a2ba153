package cli

import (
	"github.com/rewired-gh/skyfeed/internal/calendar"
	"github.com/rewired-gh/skyfeed/internal/config"
	"github.com/rewired-gh/skyfeed/internal/detect"
	"github.com/rewired-gh/skyfeed/internal/ephemeris"
	"github.com/rewired-gh/skyfeed/internal/logger"
	"github.com/rewired-gh/skyfeed/internal/metrics"
	"github.com/rewired-gh/skyfeed/internal/storage"
)

// app holds the collaborators shared by the commands of one invocation.
type app struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	oracle  ephemeris.Oracle
	store   *storage.Storage
}

// loadConfig reads and validates the configuration after applying command
// flag overrides, then initialises logging.
func loadConfig(opts *RootOptions, override func(cfg *config.Config)) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if opts.ConfigPath != "" {
		logger.Info("Configuration loaded from %s", opts.ConfigPath)
	}
	return cfg, nil
}

// newApp builds the oracle chain: source, then call counting, then the
// optional sample cache in front so hits never reach the source.
func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}

	var source ephemeris.Oracle
	switch cfg.Oracle.Kind {
	case "remote":
		remote, err := ephemeris.NewRemote(cfg.Oracle.URL, ephemeris.RemoteOptions{
			Timeout:        cfg.Oracle.Timeout,
			MaxRetries:     cfg.Oracle.MaxRetries,
			RetryDelayBase: cfg.Oracle.RetryDelayBase,
			HTTP2:          cfg.Oracle.HTTP2,
		})
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create remote oracle", err)
		}
		logger.Info("Using remote oracle at %s", cfg.Oracle.URL)
		source = remote
	default:
		logger.Debug("Using offline Kepler oracle")
		source = ephemeris.NewKepler()
	}
	a.oracle = ephemeris.NewInstrumented(source, a.metrics)

	if cfg.Cache.Enabled {
		store, err := storage.New(cfg.Cache.MaxSamples, cfg.Cache.DBPath)
		if err != nil {
			return nil, WrapExitError(ExitFailure, "failed to initialize sample cache", err)
		}
		a.store = store
		a.oracle = ephemeris.NewCached(a.oracle, store, a.metrics)
	}
	return a, nil
}

func (a *app) calendar() (*calendar.Calendar, error) {
	bodies, err := a.cfg.BodyList()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid bodies", err)
	}
	cats, err := a.cfg.CategoryList()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid categories", err)
	}
	profiles, err := a.cfg.ProfileTable()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid profiles", err)
	}

	d := detect.New(a.oracle, profiles, a.cfg.Engine(), a.cfg.DetectSettings(), a.metrics)
	return calendar.New(d, calendar.Options{
		Bodies:      bodies,
		Categories:  cats,
		Workers:     a.cfg.Workers,
		DedupWindow: a.cfg.Search.DedupWindow,
	}, a.metrics), nil
}

// clearCache empties the sample cache. Without a cache it does nothing.
func (a *app) clearCache() error {
	if a.store == nil {
		logger.Warn("Sample cache is disabled, nothing to clear")
		return nil
	}
	if err := a.store.Clear(); err != nil {
		return err
	}
	logger.Info("Sample cache cleared")
	return nil
}

// close trims and closes the cache and exports metrics. Failures are logged.
func (a *app) close() {
	if a.store != nil {
		if err := a.store.Rotate(); err != nil {
			logger.Warn("Failed to rotate sample cache: %v", err)
		}
		if n, err := a.store.Count(); err != nil {
			logger.Warn("Failed to count cached samples: %v", err)
		} else {
			logger.Debug("Sample cache holds %d samples", n)
		}
		if err := a.store.Close(); err != nil {
			logger.Error("Failed to close sample cache: %v", err)
		}
	}
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			logger.Warn("Failed to write metrics textfile: %v", err)
		} else {
			logger.Debug("Metrics written to %s", path)
		}
	}
}
