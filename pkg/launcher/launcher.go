// Package launcher resolves, installs, and invokes the external runtime
// that executes staged entry points.
package launcher

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/runzip/runzip/pkg/home"
)

const defaultBaseURL = "https://github.com/astral-sh/uv/releases/download"

// Launcher locates the uv binary inside the runzip home and runs it.
// The home-installed copy is always preferred over anything on PATH so
// invocations stay pinned to one version.
type Launcher struct {
	Home       string
	Version    string
	BaseURL    string
	HTTPClient *http.Client
}

func New(cfg home.Config) *Launcher {
	return &Launcher{
		Home:       cfg.Root,
		Version:    cfg.LauncherVersion,
		BaseURL:    defaultBaseURL,
		HTTPClient: http.DefaultClient,
	}
}

func (l *Launcher) binaryName() string {
	if runtime.GOOS == "windows" {
		return "uv.exe"
	}
	return "uv"
}

// Path prefers the binary directly under the home root; older installs
// placed it in a bin/ subdirectory.
func (l *Launcher) Path() string {
	direct := filepath.Join(l.Home, l.binaryName())
	if _, err := os.Stat(direct); err == nil {
		return direct
	}
	return filepath.Join(l.Home, "bin", l.binaryName())
}

func (l *Launcher) Installed() bool {
	_, err := os.Stat(l.Path())
	return err == nil
}

func (l *Launcher) Command(args ...string) *exec.Cmd {
	return exec.Command(l.Path(), args...)
}

// Run executes the launcher with the parent's stdio wired through and
// returns the child's exit code. A child that exits non-zero is not an
// error; failing to start it is.
func (l *Launcher) Run(args ...string) (int, error) {
	cmd := l.Command(args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 1, fmt.Errorf("run %s: %w", l.Path(), err)
}
