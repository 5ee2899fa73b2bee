package domain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type HubConfig struct {
	HubID      string `mapstructure:"hub_id"`
	HubName    string `mapstructure:"hub_name"`
	Address    string `mapstructure:"address"`
	APIBaseURL string `mapstructure:"api_base_url"`

	// Crypto keys
	X25519PrivateKey  string `mapstructure:"x25519_private_key"`
	X25519PublicKey   string `mapstructure:"x25519_public_key"`
	Ed25519PrivateKey string `mapstructure:"ed25519_private_key"`
	Ed25519PublicKey  string `mapstructure:"ed25519_public_key"`

	// Platform push signature verification
	PlatformPushPublicKey string `mapstructure:"platform_push_public_key"`

	// Editor session tokens
	EditorTokenSecret string `mapstructure:"editor_token_secret"`

	// Setup and workspace management
	SetupComplete        bool                  `mapstructure:"setup_complete"`
	WorkspaceAssignments []WorkspaceAssignment `mapstructure:"workspace_assignments"`

	LastConnected string `mapstructure:"last_connected"`
}

// GetLastConnectedTime parses the stored timestamp, yielding the zero time
// for unset or malformed values.
func (c HubConfig) GetLastConnectedTime() time.Time {
	parsed, err := time.Parse(time.RFC3339, c.LastConnected)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

type CryptoKeys struct {
	X25519Private  string `json:"x25519_private"`
	X25519Public   string `json:"x25519_public"`
	Ed25519Private string `json:"ed25519_private"`
	Ed25519Public  string `json:"ed25519_public"`
}

type ConfigManager interface {
	IsSetupComplete(ctx context.Context) bool
	GetConfig(ctx context.Context) (HubConfig, error)
	SaveConfig(ctx context.Context, config HubConfig) error
	ResetConfig(ctx context.Context) error
}

// configField ties a config key to its environment override and default.
// The one table drives env binding, defaults, and persistence so the three
// can never drift apart.
type configField struct {
	key      string
	env      string
	fallback any
}

var configFields = []configField{
	{key: "hub_id", env: "DSENTR_HUB_ID"},
	{key: "hub_name", env: "DSENTR_HUB_NAME", fallback: "dsentr-hub"},
	{key: "address", env: "DSENTR_HUB_ADDRESS", fallback: "http://localhost:8090"},
	{key: "api_base_url", env: "DSENTR_API_URL", fallback: "https://api.dsentr.com"},
	{key: "x25519_private_key", env: "DSENTR_X25519_PRIVATE_KEY"},
	{key: "x25519_public_key", env: "DSENTR_X25519_PUBLIC_KEY"},
	{key: "ed25519_private_key", env: "DSENTR_ED25519_PRIVATE_KEY"},
	{key: "ed25519_public_key", env: "DSENTR_ED25519_PUBLIC_KEY"},
	{key: "platform_push_public_key", env: "DSENTR_PLATFORM_PUSH_PUBLIC_KEY"},
	{key: "editor_token_secret", env: "DSENTR_EDITOR_TOKEN_SECRET"},
	{key: "setup_complete", env: "DSENTR_SETUP_COMPLETE", fallback: false},
	{key: "workspace_assignments"},
	{key: "last_connected"},
}

type configManager struct {
	v *viper.Viper
}

func NewConfigManager() (ConfigManager, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetEnvPrefix("DSENTR")
	v.AutomaticEnv()

	for _, field := range configFields {
		if field.env == "" {
			continue
		}
		if err := v.BindEnv(field.key, field.env); err != nil {
			log.Warn().Err(err).Str("env", field.env).Msg("Failed to bind environment variable")
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.dsentr")

	switch err := v.ReadInConfig(); err.(type) {
	case nil:
		log.Debug().Str("path", v.ConfigFileUsed()).Msg("Loaded config file")
	case viper.ConfigFileNotFoundError:
		log.Debug().Msg("No config file found, relying on environment and defaults")
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return &configManager{v: v}, nil
}

// IsSetupComplete reports whether this hub has been through first-time
// setup. The flag alone is not trusted; a hub without an identity re-runs
// setup.
func (m *configManager) IsSetupComplete(ctx context.Context) bool {
	config, err := m.GetConfig(ctx)
	if err != nil {
		return false
	}

	return config.SetupComplete && config.HubID != ""
}

func (m *configManager) GetConfig(ctx context.Context) (HubConfig, error) {
	var config HubConfig
	if err := m.v.Unmarshal(&config); err != nil {
		return HubConfig{}, fmt.Errorf("unable to decode config: %w", err)
	}

	return config, nil
}

func (m *configManager) SaveConfig(ctx context.Context, config HubConfig) error {
	settings := map[string]any{
		"hub_id":                   config.HubID,
		"hub_name":                 config.HubName,
		"address":                  config.Address,
		"api_base_url":             config.APIBaseURL,
		"x25519_private_key":       config.X25519PrivateKey,
		"x25519_public_key":        config.X25519PublicKey,
		"ed25519_private_key":      config.Ed25519PrivateKey,
		"ed25519_public_key":       config.Ed25519PublicKey,
		"platform_push_public_key": config.PlatformPushPublicKey,
		"editor_token_secret":      config.EditorTokenSecret,
		"setup_complete":           config.SetupComplete,
		"workspace_assignments":    config.WorkspaceAssignments,
		"last_connected":           config.LastConnected,
	}
	for key, value := range settings {
		m.v.Set(key, value)
	}

	configDir, configPath, err := configFilePath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("create config directory %s: %w", configDir, err)
	}

	if err := m.v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("write config to %s: %w", configPath, err)
	}

	return nil
}

func (m *configManager) ResetConfig(ctx context.Context) error {
	_, configPath, err := configFilePath()
	if err != nil {
		return err
	}

	if err := os.Remove(configPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", configPath, err)
	}

	// Clear in-memory state too so a restart inside the same process
	// behaves like a fresh install.
	for _, field := range configFields {
		m.v.Set(field.key, nil)
	}
	applyDefaults(m.v)

	return nil
}

func configFilePath() (dir, file string, err error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("resolve home directory: %w", err)
	}

	dir = filepath.Join(homeDir, ".dsentr")
	return dir, filepath.Join(dir, "config.json"), nil
}

func applyDefaults(v *viper.Viper) {
	for _, field := range configFields {
		if field.fallback != nil {
			v.SetDefault(field.key, field.fallback)
		}
	}
}
