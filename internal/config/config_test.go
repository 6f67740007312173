package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultStreamBaseURL, cfg.StreamBaseURL)
	assert.Len(t, cfg.Roster, 4)
	assert.Equal(t, DefaultDiagramTheme, cfg.Diagram.Theme)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	oldWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().StreamBaseURL, cfg.StreamBaseURL)
	assert.Equal(t, DefaultRoster, cfg.Roster)
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crewdash.yaml")
	data := []byte("stream_base_url: http://stream.example\nroster:\n  - a\n  - b\ndiagram:\n  theme: light\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://stream.example", cfg.StreamBaseURL)
	assert.Equal(t, []string{"a", "b"}, cfg.Roster)
	assert.Equal(t, "light", cfg.Diagram.Theme)
	// untouched keys keep defaults
	assert.Equal(t, DefaultEngineURL, cfg.Diagram.EngineURL)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty roster", func(c *Config) { c.Roster = nil }},
		{"empty roster name", func(c *Config) { c.Roster = []string{"a", ""} }},
		{"duplicate roster name", func(c *Config) { c.Roster = []string{"a", "a"} }},
		{"empty stream url", func(c *Config) { c.StreamBaseURL = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
