package config

import (
	"strings"
)

type Config struct {
	Server     ServerConfig
	Backend    BackendConfig
	OpenRouter OpenRouterConfig
	Convert    ConvertConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port int
	// Token, when set, gates the daemon behind bearer auth.
	Token string
}

type BackendConfig struct {
	// BaseURL is the asynchronous conversion backend (job submission,
	// progress polling, audio download).
	BaseURL string
	// SyncURL is the one-shot conversion endpoint.
	SyncURL string
}

type OpenRouterConfig struct {
	APIKey string
	Model  string
}

type ConvertConfig struct {
	PollIntervalMS int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4080,
		},
		Backend: BackendConfig{
			BaseURL: "http://localhost:5000",
			SyncURL: "http://localhost:5010",
		},
		OpenRouter: OpenRouterConfig{
			Model: "google/gemini-3-flash-preview",
		},
		Convert: ConvertConfig{
			PollIntervalMS: 1000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.vaani.app) and the
// OpenRouter key falls back to macOS Keychain. On Linux the backend is a
// JSON file at $XDG_CONFIG_HOME/vaani/config.json and the key falls back to
// a secrets file under $XDG_DATA_HOME/vaani.
//
// Environment variables (VAANI_*) override backend values on all platforms.
// The OpenRouter key is optional: it is only needed for the AI features, and
// its absence surfaces as an auth error when those are used.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret-store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try the platform secret store for the API key if still empty.
	if cfg.OpenRouter.APIKey == "" {
		if key, err := kc.Get(secretService, secretAccountAPIKey); err == nil && key != "" {
			cfg.OpenRouter.APIKey = key
		}
	}

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
