package initialization

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Node selection storage backends.
const (
	NodeStore_Memory     = "memory"
	NodeStore_MongoDB    = "mongodb"
	NodeStore_PostgreSQL = "postgresql"
)

// RuntimeConfig holds the process-level settings that are not part of the
// hub's persisted identity: listen address, node storage backend, push
// channel.
type RuntimeConfig struct {
	HTTPAddress string `mapstructure:"http_address"`

	NodeStore       string `mapstructure:"node_store"`
	MongoDBURI      string `mapstructure:"mongodb_uri"`
	MongoDBDatabase string `mapstructure:"mongodb_database"`
	PostgresURI     string `mapstructure:"postgres_uri"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// runtimeKeys are the settings LoadRuntimeConfig reads. Each one can come
// from the config file or from DSENTR_<KEY> in the environment.
var runtimeKeys = []string{
	"http_address",
	"node_store",
	"mongodb_uri",
	"mongodb_database",
	"postgres_uri",
	"redis_addr",
	"redis_password",
	"redis_db",
}

// LoadRuntimeConfig loads runtime settings from environment variables and
// the same config file the identity lives in.
func LoadRuntimeConfig() (RuntimeConfig, error) {
	v := viper.New()

	setRuntimeDefaults(v)

	v.SetEnvPrefix("DSENTR")
	v.AutomaticEnv()

	// Viper only unmarshals env-backed keys it knows about, so each one is
	// bound explicitly.
	for _, key := range runtimeKeys {
		if err := v.BindEnv(key, "DSENTR_"+strings.ToUpper(key)); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to bind environment variable")
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.dsentr")

	switch err := v.ReadInConfig(); err.(type) {
	case nil:
	case viper.ConfigFileNotFoundError:
		log.Debug().Msg("No config file, runtime settings come from env and defaults")
	default:
		return RuntimeConfig{}, fmt.Errorf("read config file: %w", err)
	}

	var config RuntimeConfig
	if err := v.Unmarshal(&config); err != nil {
		return RuntimeConfig{}, fmt.Errorf("unable to decode runtime config: %w", err)
	}

	if err := validateRuntimeConfig(&config); err != nil {
		return RuntimeConfig{}, err
	}

	return config, nil
}

func setRuntimeDefaults(v *viper.Viper) {
	v.SetDefault("http_address", ":8090")
	v.SetDefault("node_store", NodeStore_Memory)
	v.SetDefault("mongodb_database", "dsentr")
}

// validateRuntimeConfig checks that the chosen backends have the settings
// they need, listing every missing variable at once.
func validateRuntimeConfig(config *RuntimeConfig) error {
	var missingVars []string

	switch config.NodeStore {
	case NodeStore_Memory:
	case NodeStore_MongoDB:
		if config.MongoDBURI == "" {
			missingVars = append(missingVars, "DSENTR_MONGODB_URI")
		}
	case NodeStore_PostgreSQL:
		if config.PostgresURI == "" {
			missingVars = append(missingVars, "DSENTR_POSTGRES_URI")
		}
	default:
		return fmt.Errorf("unknown node store backend %q (expected %s, %s or %s)",
			config.NodeStore, NodeStore_Memory, NodeStore_MongoDB, NodeStore_PostgreSQL)
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missingVars, ", "))
	}

	return nil
}
