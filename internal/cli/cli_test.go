package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rewired-gh/skyfeed/internal/feed"
	"github.com/rewired-gh/skyfeed/internal/models"
	"github.com/rewired-gh/skyfeed/internal/storage"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "skyfeed", cmd.Use)

	for _, name := range []string{"feed", "notify", "positions"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "", configFlag.DefValue)

	feedCmd, _, err := cmd.Find([]string{"feed"})
	require.NoError(t, err)
	for _, name := range []string{"start", "end", "days", "workers", "categories", "bodies", "format", "output", "envelope", "clear-cache"} {
		assert.NotNil(t, feedCmd.Flags().Lookup(name), name)
	}
}

func TestFeedCommandWritesJSON(t *testing.T) {
	out, err := execute(t, "feed",
		"--start", "2024-01-01", "--end", "2024-01-08",
		"--categories", "signs,moon_phases", "--bodies", "mars")
	require.NoError(t, err)

	var records []feed.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records))

	descriptions := make(map[string]bool)
	for _, r := range records {
		descriptions[r.Description] = true
		assert.Equal(t, feed.TypePoint, r.Type)
	}
	assert.True(t, descriptions["Mars enters Capricorn"], out)
	assert.True(t, descriptions["Moon is Last Quarter"], out)
}

func TestFeedCommandEnvelopeToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "feed.yaml")
	metricsPath := filepath.Join(dir, "skyfeed.prom")
	t.Setenv("SKYFEED_METRICS_TEXTFILE", metricsPath)

	_, err := execute(t, "feed",
		"--start", "2024-01-01", "--days", "3",
		"--categories", "lunar_days",
		"--format", "yaml", "--envelope", "-o", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var env feed.Envelope
	require.NoError(t, yaml.Unmarshal(data, &env))
	assert.NotEmpty(t, env.RunID)
	assert.Equal(t, "2024-01-01 00:00:00+00:00", env.Start)
	assert.Equal(t, "2024-01-04 00:00:00+00:00", env.End)
	require.NotEmpty(t, env.Events)
	for _, r := range env.Events {
		assert.Equal(t, feed.TypePeriod, r.Type)
	}

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "skyfeed_oracle_calls_total")
}

func TestFeedCommandUsesSampleCache(t *testing.T) {
	t.Setenv("SKYFEED_CACHE_ENABLED", "true")
	t.Setenv("SKYFEED_CACHE_DB_PATH", filepath.Join(t.TempDir(), "samples.db"))

	first, err := execute(t, "feed", "--start", "2024-01-01", "--days", "2", "--categories", "moon_phases")
	require.NoError(t, err)
	second, err := execute(t, "feed", "--start", "2024-01-01", "--days", "2", "--categories", "moon_phases")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFeedCommandClearsSampleCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.db")
	t.Setenv("SKYFEED_CACHE_ENABLED", "true")
	t.Setenv("SKYFEED_CACHE_DB_PATH", path)

	_, err := execute(t, "feed", "--start", "2024-01-01", "--days", "2", "--categories", "moon_phases")
	require.NoError(t, err)

	store, err := storage.New(0, path)
	require.NoError(t, err)
	require.NoError(t, store.Put(models.Pluto, storage.Longitude, time.Unix(0, 0), 300))
	_, found, err := store.Get(models.Pluto, storage.Longitude, time.Unix(0, 0))
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, store.Close())

	_, err = execute(t, "feed", "--start", "2024-01-01", "--days", "2", "--categories", "moon_phases", "--clear-cache")
	require.NoError(t, err)

	store, err = storage.New(0, path)
	require.NoError(t, err)
	defer store.Close()
	_, found, err = store.Get(models.Pluto, storage.Longitude, time.Unix(0, 0))
	require.NoError(t, err)
	assert.False(t, found, "stale sample survived --clear-cache")
	n, err := store.Count()
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestFeedCommandExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"bad format", []string{"feed", "--format", "csv"}, ExitCommandError},
		{"end before start", []string{"feed", "--start", "2024-02-01", "--end", "2024-01-01"}, ExitCommandError},
		{"unknown category", []string{"feed", "--categories", "eclipses"}, ExitCommandError},
		{"missing config file", []string{"feed", "-c", "/nonexistent/skyfeed.yaml"}, ExitCommandError},
		{"notify without telegram", []string{"notify"}, ExitCommandError},
		{"bad instant", []string{"positions", "--at", "noon"}, ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, GetExitCode(err))
		})
	}
}

func TestPositionsCommand(t *testing.T) {
	out, err := execute(t, "positions", "--at", "2024-03-20 03:06", "--bodies", "sun,mars")
	require.NoError(t, err)

	var rows []BodyPosition
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "Sun", rows[0].Body)
	assert.InDelta(t, 0.99, rows[0].Velocity, 0.03)
	assert.False(t, rows[0].Retrograde)
	assert.Equal(t, "Mars", rows[1].Body)
	assert.Equal(t, "Aquarius", rows[1].Sign)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))

	inner := errors.New("oracle down")
	err := WrapExitError(ExitCommandError, "setup", inner)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "setup: oracle down", err.Error())

	cancelled := WrapExitError(ExitFailure, "feed run failed", fmt.Errorf("task: %w", context.Canceled))
	assert.Equal(t, ExitInterrupted, GetExitCode(cancelled))
	assert.Equal(t, "no telegram", NewExitError(ExitCommandError, "no telegram").Error())
}

func TestFeedCommandInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"feed", "--start", "2024-01-01", "--days", "30", "--log-level", "error"})
	err := cmd.ExecuteContext(ctx)
	require.Error(t, err)
	assert.Equal(t, ExitInterrupted, GetExitCode(err))
}
