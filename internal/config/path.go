// Package config holds the run configuration and source-system profiles.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands ~ and environment variables in a file path.
// Object-store URIs (gs://, s3://, az://) only get environment expansion.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.Contains(path, "://") {
		return os.ExpandEnv(path)
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}
