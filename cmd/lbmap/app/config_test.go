package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/lbmap/pkg/constants"
	"github.com/agentstation/lbmap/pkg/errors"
)

// isolate keeps the developer's config file and .env out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
}

func TestLoadConfigDefaults(t *testing.T) {
	isolate(t)

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "memory", config.Store)
	assert.Equal(t, constants.DefaultTable, config.Table)
	assert.Equal(t, constants.DefaultWriteConcurrency, config.Concurrency)
	assert.Equal(t, constants.DefaultBackendPort, config.BackendPort)
	assert.Equal(t, "auto", config.LogFormat)
	assert.Empty(t, config.LogLevel)
}

func TestLoadConfigEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("LBMAP_STORE", "bolt")
	t.Setenv("LBMAP_STORE_PATH", "/var/lib/lbmap")
	t.Setenv("LBMAP_BACKEND_PORT", "8080")
	t.Setenv("LBMAP_LOG_LEVEL", "debug")

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "bolt", config.Store)
	assert.Equal(t, "/var/lib/lbmap", config.StorePath)
	assert.Equal(t, 8080, config.BackendPort)
	assert.Equal(t, "debug", config.LogLevel)
}

func TestLoadConfigDotEnv(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile(".env", []byte("LBMAP_TABLE=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("LBMAP_TABLE") })

	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", config.Table)
}

func TestLoadConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "lbmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: files\ntable: edge\nbind_port: 8443\n"), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "files", config.Store)
	assert.Equal(t, "edge", config.Table)
	assert.Equal(t, 8443, config.BindPort)
	assert.Equal(t, path, config.ConfigFile)

	// The environment wins over the file.
	t.Setenv("LBMAP_TABLE", "override")
	config, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "override", config.Table)
}

func TestLoadConfigMissingFile(t *testing.T) {
	isolate(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	var configErr *errors.ConfigError
	assert.ErrorAs(t, err, &configErr)
}

func TestUpdateFromFlagsOnlyAppliesChangedFlags(t *testing.T) {
	config := &Config{Store: "bolt", Table: "edge", Format: "json"}

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("store", "memory", "")
	cmd.Flags().String("table", "", "")
	cmd.Flags().String("format", "", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--table", "api"}))

	config.UpdateFromFlags(cmd)
	assert.Equal(t, "bolt", config.Store)
	assert.Equal(t, "api", config.Table)
	assert.Equal(t, "json", config.Format)
}

func TestDetermineLogLevel(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{"default", Config{}, "info"},
		{"verbose", Config{Verbose: true}, "debug"},
		{"quiet", Config{Quiet: true}, "warn"},
		{"quiet wins", Config{Verbose: true, Quiet: true}, "warn"},
		{"explicit wins", Config{Verbose: true, LogLevel: "error"}, "error"},
		{"invalid explicit", Config{LogLevel: "loud"}, "info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, determineLogLevel(&tt.config))
		})
	}
}
