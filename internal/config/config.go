package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Server  ServerConfig
	OpenAI  OpenAIConfig
	Storage StorageConfig
	Persona PersonaConfig
	MCP     MCPConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type StorageConfig struct {
	DataDir string
}

type PersonaConfig struct {
	// KnowledgeDir holds optional per-persona playbook files
	// (<persona>.md). Empty means built-in instructions only.
	KnowledgeDir string
}

type MCPConfig struct {
	// UserID is the registered user the MCP tools act as.
	UserID string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.aicmo.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/aicmo/config.json
// and secrets must be provided via environment variables.
//
// Environment variables (AICMO_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try platform keychain for API key if still empty.
	if cfg.OpenAI.APIKey == "" {
		if key, err := kc.Get("aicmo", "openai_api_key"); err == nil && key != "" {
			cfg.OpenAI.APIKey = key
		}
	}

	if cfg.OpenAI.APIKey == "" {
		msg := "missing required config: OpenAI API key. " +
			"Set it via environment variable AICMO_OPENAI_API_KEY" +
			apiKeyHint()
		return Config{}, fmt.Errorf("%s", msg)
	}

	return cfg, nil
}

// keychainReader reads from macOS Keychain via the security CLI.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
