// Package completion installs and removes shell completion scripts.
package completion

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"
	"github.com/spf13/cobra"

	"github.com/agentstation/lbmap/internal/cmd/constants"
	"github.com/agentstation/lbmap/internal/cmd/emoji"
	"github.com/agentstation/lbmap/pkg/errors"
	pkgconstants "github.com/agentstation/lbmap/pkg/constants"
)

const binary = "lbmap"

// Shells lists the shells with install support.
var Shells = []string{constants.ShellBash, constants.ShellZsh, constants.ShellFish}

// Generate writes the completion script for shell to w.
func Generate(root *cobra.Command, shell string, w io.Writer) error {
	switch shell {
	case constants.ShellBash:
		return root.GenBashCompletionV2(w, true)
	case constants.ShellZsh:
		return root.GenZshCompletion(w)
	case constants.ShellFish:
		return root.GenFishCompletion(w, true)
	case constants.ShellPowerShell:
		return root.GenPowerShellCompletionWithDesc(w)
	default:
		return errors.NewValidationError("shell", shell, "unsupported shell")
	}
}

// Install writes the completion script for shell to its conventional location
// and returns the path written.
func Install(root *cobra.Command, shell string, out io.Writer) (string, error) {
	target, err := Path(shell)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := Generate(root, shell, &buf); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(target), pkgconstants.DirPermissions); err != nil {
		return "", errors.WrapIO("create", filepath.Dir(target), err)
	}
	if err := atomicwriter.WriteFile(target, buf.Bytes(), pkgconstants.FilePermissions); err != nil {
		return "", errors.WrapIO("write", target, err)
	}

	fmt.Fprintf(out, "%s %s completions installed to: %s\n", emoji.Success, shell, target)
	fmt.Fprintf(out, "%s Start a new shell session to enable completions.\n", emoji.Info)
	return target, nil
}

// Uninstall removes the completion script for shell from the install
// location and the common fallback locations. It reports whether anything
// was removed.
func Uninstall(shell string, out io.Writer) (bool, error) {
	target, err := Path(shell)
	if err != nil {
		return false, err
	}

	removed := false
	for _, path := range append([]string{target}, commonPaths(shell)...) {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if err := os.Remove(path); err != nil {
			fmt.Fprintf(out, "%s Could not remove: %s (try: sudo rm %s)\n", emoji.Error, path, path)
			continue
		}
		fmt.Fprintf(out, "%s Removed: %s\n", emoji.Success, path)
		removed = true
	}

	if !removed {
		fmt.Fprintf(out, "%s No %s completions found.\n", emoji.Info, shell)
	}
	return removed, nil
}

// Path returns where Install writes completions for shell. A Homebrew
// prefix wins over the user's home directory.
func Path(shell string) (string, error) {
	var brewRel, homeRel string
	switch shell {
	case constants.ShellBash:
		brewRel = filepath.Join("etc", "bash_completion.d", binary)
		homeRel = filepath.Join(".bash_completion.d", binary)
	case constants.ShellZsh:
		brewRel = filepath.Join("share", "zsh", "site-functions", "_"+binary)
		homeRel = filepath.Join(".zsh", "completions", "_"+binary)
	case constants.ShellFish:
		brewRel = filepath.Join("share", "fish", "vendor_completions.d", binary+".fish")
		homeRel = filepath.Join(".config", "fish", "completions", binary+".fish")
	default:
		return "", errors.NewValidationError("shell", shell, "install supports bash, zsh and fish")
	}

	if prefix := brewPrefix(); prefix != "" {
		return filepath.Join(prefix, brewRel), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapIO("lookup", "home directory", err)
	}
	return filepath.Join(home, homeRel), nil
}

func brewPrefix() string {
	if prefix := os.Getenv("HOMEBREW_PREFIX"); prefix != "" {
		return prefix
	}
	for _, prefix := range []string{"/opt/homebrew", "/usr/local"} {
		if _, err := os.Stat(filepath.Join(prefix, "bin", "brew")); err == nil {
			return prefix
		}
	}
	return ""
}

func commonPaths(shell string) []string {
	switch shell {
	case constants.ShellBash:
		return []string{
			"/etc/bash_completion.d/" + binary,
			"/usr/share/bash-completion/completions/" + binary,
		}
	case constants.ShellZsh:
		return []string{"/usr/local/share/zsh/site-functions/_" + binary}
	case constants.ShellFish:
		return []string{"/usr/share/fish/completions/" + binary + ".fish"}
	}
	return nil
}
