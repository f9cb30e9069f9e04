package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, 20*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.True(t, cfg.Fetch.DirectFallback)
	assert.Equal(t, []string{"hattrick", "daddylive"}, cfg.Sites.Enabled)
	assert.Equal(t, "Europe/London", cfg.Sites.Daddylive.Timezone)
	assert.Equal(t, "pipe", cfg.Output.HeaderStyle)
	assert.Equal(t, 8, cfg.Resolve.Workers)
	assert.Equal(t, time.Duration(0), cfg.Run.Interval)
	assert.False(t, cfg.Proxy.Enabled)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
sites:
  enabled: [generic, agenda]
  agenda:
    url: https://agenda.example.com/
  generic:
    - name: sportsbox
      url: https://sportsbox.example.com/live
      item_selector: div.match
      title_selector: h3
      time_selector: span.time
      time_layout: "15:04"
      timezone: Europe/Rome
      link_selector: a.watch
output:
  dir: /tmp/out
  header_style: none
proxy:
  enabled: true
  file: proxies.txt
  sources: [file]
run:
  interval: 15m
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"generic", "agenda"}, cfg.Sites.Enabled)
	require.Len(t, cfg.Sites.Generic, 1)
	assert.Equal(t, "sportsbox", cfg.Sites.Generic[0].Name)
	assert.Equal(t, "Europe/Rome", cfg.Sites.Generic[0].Timezone)
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
	assert.Equal(t, "none", cfg.Output.HeaderStyle)
	assert.True(t, cfg.Proxy.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Run.Interval)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown site", "sites:\n  enabled: [nowhere]\n"},
		{"agenda without url", "sites:\n  enabled: [agenda]\n"},
		{"generic without sites", "sites:\n  enabled: [generic]\n"},
		{"bad timezone", "output:\n  timezone: Mars/Olympus\n"},
		{"bad header style", "output:\n  header_style: json\n"},
		{"interval too short", "run:\n  interval: 5s\n"},
		{"bad listen addr", "server:\n  listen_addr: localhost\n"},
		{"duplicate generic", `
sites:
  enabled: [generic]
  generic:
    - {name: a, url: "https://a.example.com", item_selector: li}
    - {name: a, url: "https://b.example.com", item_selector: li}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validation failed")
		})
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("STREAMSCOUT_LOG_LEVEL", "debug")
	t.Setenv("STREAMSCOUT_FETCH_MAX_RETRIES", "7")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 7, cfg.Fetch.MaxRetries)
}

func TestFlagOverride(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.String("output-dir", "", "")
	require.NoError(t, flags.Parse([]string{"--log-level=warn", "--output-dir=/srv/playlists"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/srv/playlists", cfg.Output.Dir)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STREAMSCOUT_OUTPUT_GROUP=Calcio\n"), 0o644))
	t.Setenv("STREAMSCOUT_OUTPUT_GROUP", "")
	require.NoError(t, os.Unsetenv("STREAMSCOUT_OUTPUT_GROUP"))

	require.NoError(t, loadDotEnv(path))

	assert.Equal(t, "Calcio", os.Getenv("STREAMSCOUT_OUTPUT_GROUP"))
}

func TestSaveConfigTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveConfigTemplate(path))

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "playlist.m3u8", cfg.Output.M3UFile)

	assert.Error(t, SaveConfigTemplate(path), "existing file must not be overwritten")
}
