package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(write(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.Log.Level)
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(write(t, `
log:
  level: DEBUG
codebook:
  path: books.bin
  layout: inline
export:
  output_dir: out
  convert: true
  kinds: [embedded]
  filter: "^bgm/"
names:
  event_list: events.txt
`))
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.Log.Level)
	assert.Equal(t, "books.bin", cfg.Codebook.Path)
	assert.Equal(t, "inline", cfg.Codebook.Layout)
	assert.Equal(t, "out", cfg.Export.OutputDir)
	assert.True(t, cfg.Export.Convert)
	assert.Equal(t, []string{"embedded"}, cfg.Export.Kinds)
	assert.Equal(t, "^bgm/", cfg.Export.Filter)
	assert.Equal(t, 16, cfg.Export.Concurrency)
	assert.Equal(t, "events.txt", cfg.Names.EventList)
	assert.Equal(t, "haruki-wwise-names.msgpack", cfg.Names.Cache)
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load(write(t, "export:\n  post_convert: ogg\n"))
	assert.Error(t, err)

	_, err = Load(write(t, "codebook:\n  layout: compressed\n"))
	assert.Error(t, err)

	_, err = Load(write(t, "export:\n  concurrency: -1\n"))
	assert.Error(t, err)

	_, err = Load(write(t, "unknown_section: 1\n"))
	assert.Error(t, err)
}
