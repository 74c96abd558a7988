// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

// Package xdg resolves XDG Base Directory paths for troupe.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "troupe"

// File names looked up in the config directory.
const (
	ConfigFileName   = "config.yaml"
	ManifestFileName = "troupe.yaml"
)

func dir(env string, fallback ...string) string {
	base := os.Getenv(env)
	if base == "" {
		base = filepath.Join(append([]string{os.Getenv("HOME")}, fallback...)...)
	}
	return filepath.Join(base, appName)
}

// ConfigDir returns $XDG_CONFIG_HOME/troupe, defaulting to ~/.config/troupe.
func ConfigDir() string {
	return dir("XDG_CONFIG_HOME", ".config")
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}

// FindManifest returns the first manifest that exists: workDir/troupe.yaml,
// then the one in ConfigDir. It returns "" when neither exists.
func FindManifest(workDir string) (string, error) {
	candidates := []string{
		filepath.Join(workDir, ManifestFileName),
		filepath.Join(ConfigDir(), ManifestFileName),
	}
	for _, path := range candidates {
		info, err := os.Stat(path)
		switch {
		case err == nil && !info.IsDir():
			return path, nil
		case err == nil, errors.Is(err, fs.ErrNotExist):
			continue
		default:
			return "", oops.Code("MANIFEST_LOOKUP_FAILED").With("path", path).Wrap(err)
		}
	}
	return "", nil
}

// EnsureDir creates a directory and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("MKDIR_FAILED").With("path", path).Wrapf(err, "failed to create directory")
	}
	return nil
}
