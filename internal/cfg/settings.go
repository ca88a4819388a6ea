package cfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// Settings is resolved once at startup and handed to whatever needs it.
type Settings struct {
	Server      string `toml:"server" envconfig:"SERVER"`
	Insecure    bool   `toml:"insecure" envconfig:"INSECURE"`
	SecretFile  string `toml:"secret_file" envconfig:"SECRET_FILE"`
	HistoryFile string `toml:"history_file" envconfig:"HISTORY_FILE"`
	LogFile     string `toml:"log_file" envconfig:"LOG_FILE"`
}

// Default returns settings pointing at the public server with the secret
// and history stored under home.
func Default(home string) Settings {
	return Settings{
		Server: CLIENT_DEFAULT_SERVER,
		// The public deployment has always been reached without certificate
		// verification; turning it on is an explicit opt-in.
		Insecure:    true,
		SecretFile:  filepath.Join(home, CLIENT_SECRET_FILE),
		HistoryFile: filepath.Join(home, CLIENT_HISTORY_FILE),
		LogFile:     CLIENT_LOG_FILE,
	}
}

// Load layers defaults, the optional config file and SHOWTERM_* variables,
// in that order.
func Load() (Settings, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Settings{}, fmt.Errorf("resolving home directory: %w", err)
	}
	s := Default(home)

	if path := FilePath(); path != "" {
		if _, err := toml.DecodeFile(path, &s); err != nil {
			return Settings{}, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	if err := envconfig.Process(ENV_PREFIX, &s); err != nil {
		return Settings{}, fmt.Errorf("reading environment: %w", err)
	}

	s.Server = strings.TrimRight(s.Server, "/")
	s.SecretFile = expandTilde(s.SecretFile, home)
	s.HistoryFile = expandTilde(s.HistoryFile, home)
	return s, nil
}

// FilePath returns the config file location if one exists.
func FilePath() string {
	var dir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dir = filepath.Join(xdg, "termshow")
	} else if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".config", "termshow")
	} else {
		return ""
	}

	path := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func expandTilde(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
