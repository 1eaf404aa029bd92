package completion_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/lbmap/internal/cmd/completion"
	"github.com/agentstation/lbmap/pkg/errors"
)

func TestPathUsesHomebrewPrefix(t *testing.T) {
	prefix := t.TempDir()
	t.Setenv("HOMEBREW_PREFIX", prefix)

	path, err := completion.Path("zsh")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(prefix, "share", "zsh", "site-functions", "_lbmap"), path)

	_, err = completion.Path("tcsh")
	assert.True(t, errors.IsValidationError(err))
}

func TestInstallAndUninstall(t *testing.T) {
	t.Setenv("HOMEBREW_PREFIX", t.TempDir())
	root := &cobra.Command{Use: "lbmap"}
	root.AddCommand(&cobra.Command{Use: "reconcile", Run: func(*cobra.Command, []string) {}})

	var out bytes.Buffer
	path, err := completion.Install(root, "bash", &out)
	require.NoError(t, err)

	script, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(script), "lbmap")
	assert.Contains(t, out.String(), path)

	removed, err := completion.Uninstall("bash", &out)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.NoFileExists(t, path)

	removed, err = completion.Uninstall("bash", &out)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestGenerateRejectsUnknownShell(t *testing.T) {
	err := completion.Generate(&cobra.Command{Use: "lbmap"}, "csh", &bytes.Buffer{})
	assert.True(t, errors.IsValidationError(err))
}
