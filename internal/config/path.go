// Package config loads sorter settings from flags, SORTER_ environment
// variables and ~/.config/sorter/config.yaml through viper.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// memoryDatabase is the SQLite name for a database that lives only in memory.
const memoryDatabase = ":memory:"

// ExpandPath resolves a leading ~ to the home directory and then expands
// $VAR references, so database.path and --config accept "~/..." and
// "$XDG_DATA_HOME/..." alike. ":memory:" and ~user forms are left alone.
func ExpandPath(path string) string {
	if path == "" || path == memoryDatabase {
		return path
	}
	if rest, ok := homeRelative(path); ok {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, rest)
		}
	}
	return os.ExpandEnv(path)
}

func homeRelative(path string) (string, bool) {
	switch {
	case path == "~":
		return "", true
	case strings.HasPrefix(path, "~/"):
		return path[2:], true
	}
	return "", false
}
