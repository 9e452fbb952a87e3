package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Nominatim  NominatimConfig  `yaml:"nominatim" mapstructure:"nominatim"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Resolver   ResolverConfig   `yaml:"resolver" mapstructure:"resolver"`
	Validator  ValidatorConfig  `yaml:"validator" mapstructure:"validator"`
	Thresholds ThresholdsConfig `yaml:"thresholds" mapstructure:"thresholds"`
	Strategy   StrategyConfig   `yaml:"strategy" mapstructure:"strategy"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// NominatimConfig configures the primary geocoding provider.
type NominatimConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	CountryCodes string  `yaml:"country_codes" mapstructure:"country_codes"`
	RateRPS      float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
}

// GoogleConfig configures the secondary geocoding provider. An empty key
// disables it.
type GoogleConfig struct {
	Key     string  `yaml:"key" mapstructure:"key"`
	Region  string  `yaml:"region" mapstructure:"region"`
	RateRPS float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
}

// ResolverConfig configures the batch orchestrator.
type ResolverConfig struct {
	Workers       int `yaml:"workers" mapstructure:"workers"`
	MinConfidence int `yaml:"min_confidence" mapstructure:"min_confidence"`
	RetryAttempts int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// ValidatorConfig configures result validation.
type ValidatorConfig struct {
	RejectAdminOnly bool `yaml:"reject_admin_only" mapstructure:"reject_admin_only"`
	MinConfidence   int  `yaml:"min_confidence" mapstructure:"min_confidence"`
}

// ThresholdsConfig configures the distance and decision engine.
type ThresholdsConfig struct {
	OKDistanceM         float64 `yaml:"ok_distance_m" mapstructure:"ok_distance_m"`
	SuspiciousDistanceM float64 `yaml:"suspicious_distance_m" mapstructure:"suspicious_distance_m"`
	MinConfidence       int     `yaml:"min_confidence" mapstructure:"min_confidence"`
}

// StrategyConfig configures query planning. High-density localities may be
// listed inline or loaded from a standalone YAML file; the lists merge.
type StrategyConfig struct {
	Country               string   `yaml:"country" mapstructure:"country"`
	HighDensityLocalities []string `yaml:"high_density_localities" mapstructure:"high_density_localities"`
	LocalitiesFile        string   `yaml:"localities_file" mapstructure:"localities_file"`
}

// ServerConfig configures the review API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOCODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "geocode.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("nominatim.base_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("nominatim.user_agent", "geocode-cli/1.0")
	v.SetDefault("nominatim.country_codes", "bg")
	v.SetDefault("nominatim.rate_rps", 1.0)
	v.SetDefault("google.region", "bg")
	v.SetDefault("google.rate_rps", 10.0)
	v.SetDefault("resolver.workers", 4)
	v.SetDefault("resolver.min_confidence", 60)
	v.SetDefault("resolver.retry_attempts", 3)
	v.SetDefault("validator.reject_admin_only", true)
	v.SetDefault("validator.min_confidence", 70)
	v.SetDefault("thresholds.ok_distance_m", 1000)
	v.SetDefault("thresholds.suspicious_distance_m", 5000)
	v.SetDefault("thresholds.min_confidence", 60)
	v.SetDefault("strategy.country", "България")
	v.SetDefault("strategy.high_density_localities", []string{
		"СОФИЯ", "ПЛОВДИВ", "ВАРНА", "БУРГАС", "РУСЕ", "СТАРА ЗАГОРА",
	})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
