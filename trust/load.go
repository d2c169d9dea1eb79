package trust

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment-variable configuration, e.g.
// AUTHGATE_ISSUER_URL, AUTHGATE_JWKS_URL, AUTHGATE_SHARED_SECRET.
const EnvPrefix = "AUTHGATE"

var structValidator = validator.New()

// Load reads configuration from the environment and, when configFile is not
// empty, from a YAML file. Environment values win over file values. A .env
// file in the working directory is loaded first if present.
//
// Load applies defaults and runs struct-level validation, but deliberately
// does not call Validate: a not-yet-complete configuration is loadable, it
// just fails closed at the request boundary.
func Load(configFile string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not surface env-only keys to Unmarshal; each
	// key has to be bound explicitly.
	for _, key := range []string{
		"issuer_url", "shared_secret", "jwks_url", "provider_api_key",
		"admin_url", "audience", "clock_skew", "cache_ttl", "fetch_timeout",
		"known_roles",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling trust config: %w", err)
	}
	cfg.ApplyDefaults()

	if err := structValidator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("trust config failed validation: %w", err)
	}

	return cfg, nil
}
