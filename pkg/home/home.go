// Package home resolves the process-wide runzip configuration once, at
// startup, so nothing below the command layer reads the environment.
package home

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	// EnvHome overrides the installation/cache root.
	EnvHome = "RUNZIP_HOME"
	// EnvSignatureKey supplies the fallback verification-key locator.
	EnvSignatureKey = "RUNZIP_SIGNATURE_KEY"

	// DefaultLauncherVersion pins the launcher release installed on
	// demand.
	DefaultLauncherVersion = "0.7.2"

	configFileName = "config.toml"
	defaultDirName = "runzip_home"
	tempDirName    = "temp"
)

// Config is the resolved installation/cache configuration, built once
// and passed down explicitly.
type Config struct {
	Root            string
	TempRoot        string
	LauncherVersion string
	SignatureKeyEnv string
}

// config.toml key mapping to runtime settings.
type fileConfig struct {
	LauncherVersion string `toml:"launcher_version"`
	TempDir         string `toml:"temp_dir"`
}

// Resolve builds the configuration from the environment accessor and an
// optional config.toml inside the home root. A missing or malformed
// config file leaves the defaults standing.
func Resolve(getenv func(string) string) Config {
	root := getenv(EnvHome)
	if root == "" {
		if h, err := os.UserHomeDir(); err == nil {
			root = filepath.Join(h, defaultDirName)
		} else {
			root = defaultDirName
		}
	}

	cfg := Config{
		Root:            root,
		TempRoot:        filepath.Join(root, tempDirName),
		LauncherVersion: DefaultLauncherVersion,
		SignatureKeyEnv: getenv(EnvSignatureKey),
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(
		filepath.Join(root, configFileName), &raw,
	)
	if err != nil {
		return cfg
	}
	if meta.IsDefined("launcher_version") {
		cfg.LauncherVersion = strings.TrimSpace(raw.LauncherVersion)
	}
	if meta.IsDefined("temp_dir") {
		cfg.TempRoot = strings.TrimSpace(raw.TempDir)
	}
	return cfg
}

// StagingDir creates a fresh, exclusive extraction directory for one
// invocation under the temp root.
func (c Config) StagingDir() (string, error) {
	if err := os.MkdirAll(c.TempRoot, 0o755); err != nil {
		return "", fmt.Errorf("create temp root: %w", err)
	}
	dir, err := os.MkdirTemp(c.TempRoot, "runzip-")
	if err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	return dir, nil
}
