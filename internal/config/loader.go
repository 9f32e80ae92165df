package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name under $HOME.
	ConfigDir = ".lorekeeper"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the config file location. LOREKEEPER_CONFIG overrides
// the default ~/.lorekeeper/config.json.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("LOREKEEPER_CONFIG")); explicit != "" {
		return expandHome(explicit)
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("LOREKEEPER_HOME")); h != "" {
		return expandHome(h)
	}
	return os.UserHomeDir()
}

func expandHome(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, p[1:]), nil
}

// Load loads the configuration. Priority: environment > file > defaults.
// A missing file is not an error; the defaults apply.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	LoadEnvFileCandidates()

	path, err := ConfigPath()
	if err == nil {
		data, readErr := os.ReadFile(path)
		switch {
		case readErr == nil:
			resolved := substituteEnvRefs(data)
			if err := json.Unmarshal(resolved, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case !os.IsNotExist(readErr):
			return nil, readErr
		}
	}

	envconfig.Process("LOREKEEPER_PATHS", &cfg.Paths)
	envconfig.Process("LOREKEEPER_MODEL", &cfg.Model)
	envconfig.Process("LOREKEEPER_GAME", &cfg.Game)
	envconfig.Process("LOREKEEPER_OPENAI", &cfg.Providers.OpenAI)
	envconfig.Process("LOREKEEPER_CHANNELS", &cfg.Channels.Slack)
	envconfig.Process("LOREKEEPER_CHANNELS", &cfg.Channels.WhatsApp)
	envconfig.Process("LOREKEEPER_RELAY", &cfg.Relay)

	// Bare OPENAI_API_KEY works without any prefix.
	if cfg.Providers.OpenAI.APIKey == "" {
		cfg.Providers.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	for _, p := range []*string{&cfg.Paths.DataDir, &cfg.Paths.TranscriptDB, &cfg.Channels.WhatsApp.SessionDB} {
		if expanded, err := expandHome(*p); err == nil {
			*p = expanded
		}
	}

	if cfg.Game.HistoryLimit <= 0 {
		cfg.Game.HistoryLimit = 40
	}
	if cfg.Game.CommandPrefix == "" {
		cfg.Game.CommandPrefix = "!"
	}
	if len(cfg.Game.DefaultGenres) == 0 {
		cfg.Game.DefaultGenres = []string{"noir"}
	}

	return cfg, nil
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnvRefs expands ${VAR} references in the raw config bytes so
// secrets can live in the environment instead of the file. Unset variables
// are left as-is.
func substituteEnvRefs(data []byte) []byte {
	return envRefPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := string(envRefPattern.FindSubmatch(match)[1])
		if value, ok := os.LookupEnv(name); ok {
			escaped, err := json.Marshal(value)
			if err != nil {
				return match
			}
			// Strip the quotes json.Marshal adds; the reference sits inside
			// an existing JSON string.
			return escaped[1 : len(escaped)-1]
		}
		return match
	})
}
