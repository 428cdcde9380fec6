package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/merchant"
)

// EnvPrefix is the prefix for environment overrides, e.g. SORTER_DATABASE_PATH.
const EnvPrefix = "SORTER"

// DefaultDatabasePath is used when database.path is unset.
const DefaultDatabasePath = "$HOME/.local/share/sorter/sorter.db"

// Config is the resolved application configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Server     ServerConfig     `mapstructure:"server"`
	Import     ImportConfig     `mapstructure:"import"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Reclassify ReclassifyConfig `mapstructure:"reclassify"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig configures `sorter serve`.
type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// ImportConfig configures statement import.
type ImportConfig struct {
	DefaultFormat string `mapstructure:"default_format"`
}

// ClassifierConfig extends the built-in merchant alias table.
type ClassifierConfig struct {
	Aliases []AliasConfig `mapstructure:"aliases"`
}

// AliasConfig is one extra alias entry.
type AliasConfig struct {
	Pattern     string `mapstructure:"pattern"`
	Replacement string `mapstructure:"replacement"`
	Collapse    bool   `mapstructure:"collapse"`
}

// ReclassifyConfig tunes the reclassification workflow.
type ReclassifyConfig struct {
	Workers    int  `mapstructure:"workers"`
	Checkpoint bool `mapstructure:"checkpoint"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("server.addr", ":3001")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("import.default_format", "")
	v.SetDefault("reclassify.workers", runtime.NumCPU())
	v.SetDefault("reclassify.checkpoint", true)
}

// Setup points v at the config file and the environment. An empty cfgFile
// searches ~/.config/sorter and the working directory for config.yaml.
func Setup(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(ExpandPath(cfgFile))
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, ".config", "sorter"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = DefaultDatabasePath
	}
	if cfg.Database.Path != ":memory:" {
		cfg.Database.Path = ExpandPath(cfg.Database.Path)
	}
	if cfg.Reclassify.Workers <= 0 {
		return nil, fmt.Errorf("%w: reclassify.workers must be positive, got %d", common.ErrInvalidConfig, cfg.Reclassify.Workers)
	}
	if _, err := common.ParseLevel(cfg.Logging.Level); err != nil {
		return nil, err
	}
	switch cfg.Logging.Format {
	case "console", "text", "json":
	default:
		return nil, fmt.Errorf("%w: invalid log format %q", common.ErrInvalidConfig, cfg.Logging.Format)
	}
	for i, a := range cfg.Classifier.Aliases {
		if a.Pattern == "" || a.Replacement == "" {
			return nil, fmt.Errorf("%w: classifier.aliases[%d] needs pattern and replacement", common.ErrInvalidConfig, i)
		}
	}
	return &cfg, nil
}

// Normalizer builds the merchant normalizer: the built-in aliases followed by
// the configured ones.
func (c *Config) Normalizer() (*merchant.Normalizer, error) {
	if len(c.Classifier.Aliases) == 0 {
		return merchant.Default(), nil
	}
	aliases := merchant.DefaultAliases()
	for _, a := range c.Classifier.Aliases {
		aliases = append(aliases, merchant.Alias{
			Pattern:     a.Pattern,
			Replacement: a.Replacement,
			Collapse:    a.Collapse,
		})
	}
	n, err := merchant.NewNormalizer(aliases)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	return n, nil
}
