// Package config loads the application configuration: built-in defaults,
// then an optional YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port            int           `yaml:"port" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"readTimeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" validate:"gte=0"`
	IdleTimeout     time.Duration `yaml:"idleTimeout" validate:"gte=0"`
	AllowOrigins    string        `yaml:"allowOrigins"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" validate:"gte=0"`
}

type CTANConfig struct {
	BaseURL    string        `yaml:"baseURL" validate:"required,url"`
	Consortium string        `yaml:"consortium" validate:"required,numeric"`
	Lang       string        `yaml:"lang" validate:"required,oneof=ES EN"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
	Radius     int           `yaml:"radius" validate:"gt=0,lte=5000"`
}

type RedisConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port" validate:"gt=0,lte=65535"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db" validate:"gte=0"`
	TLSEnabled bool   `yaml:"tls"`
	KeyPrefix  string `yaml:"keyPrefix"`
}

type CacheConfig struct {
	Backend string        `yaml:"backend" validate:"oneof=memory redis"`
	TTL     time.Duration `yaml:"ttl" validate:"gt=0"`
	Redis   RedisConfig   `yaml:"redis"`
}

type LocationConfig struct {
	DefaultLatitude  float64       `yaml:"defaultLatitude" validate:"gte=-90,lte=90"`
	DefaultLongitude float64       `yaml:"defaultLongitude" validate:"gte=-180,lte=180"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
	IPLookupURL      string        `yaml:"ipLookupURL" validate:"omitempty,url"`
	GeocoderURL      string        `yaml:"geocoderURL" validate:"omitempty,url"`
	UserAgent        string        `yaml:"userAgent"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	CTAN     CTANConfig     `yaml:"ctan"`
	Cache    CacheConfig    `yaml:"cache"`
	Location LocationConfig `yaml:"location"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns the configuration used when nothing is overridden
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     120 * time.Second,
			AllowOrigins:    "*",
			ShutdownTimeout: 10 * time.Second,
		},
		CTAN: CTANConfig{
			BaseURL:    "https://api.ctan.es/v1",
			Consortium: "1",
			Lang:       "ES",
			Timeout:    10 * time.Second,
			Radius:     500,
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     24 * time.Hour,
			Redis: RedisConfig{
				Host:      "localhost",
				Port:      6379,
				KeyPrefix: "ctan:",
			},
		},
		Location: LocationConfig{
			DefaultLatitude:  37.3886303,
			DefaultLongitude: -5.9953403,
			Timeout:          5 * time.Second,
			IPLookupURL:      "http://ip-api.com/json/",
			GeocoderURL:      "https://nominatim.openstreetmap.org/reverse",
			UserAgent:        "ctanbus/1.0",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration. The YAML file at path is optional; a
// missing file is not an error, a malformed one is.
func Load(path string) (AppConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every section against its constraints
func Validate(cfg AppConfig) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Cache.Backend == "redis" && cfg.Cache.Redis.Host == "" {
		return errors.New("invalid configuration: cache.redis.host is required for the redis backend")
	}
	return nil
}

func applyEnv(cfg *AppConfig) error {
	var err error
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" && err == nil {
			n, convErr := strconv.Atoi(v)
			if convErr != nil {
				err = fmt.Errorf("invalid %s: %w", key, convErr)
				return
			}
			*dst = n
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" && err == nil {
			d, convErr := time.ParseDuration(v)
			if convErr != nil {
				err = fmt.Errorf("invalid %s: %w", key, convErr)
				return
			}
			*dst = d
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true"
		}
	}

	setInt("API_PORT", &cfg.Server.Port)
	setString("CORS_ALLOW_ORIGINS", &cfg.Server.AllowOrigins)

	setString("CTAN_BASE_URL", &cfg.CTAN.BaseURL)
	setString("CTAN_CONSORTIUM", &cfg.CTAN.Consortium)
	setString("CTAN_LANG", &cfg.CTAN.Lang)
	setDuration("CTAN_TIMEOUT", &cfg.CTAN.Timeout)
	setInt("CTAN_RADIUS", &cfg.CTAN.Radius)

	setString("CACHE_BACKEND", &cfg.Cache.Backend)
	setDuration("CACHE_TTL", &cfg.Cache.TTL)
	setString("REDIS_HOST", &cfg.Cache.Redis.Host)
	setInt("REDIS_PORT", &cfg.Cache.Redis.Port)
	setString("REDIS_PASSWORD", &cfg.Cache.Redis.Password)
	setInt("REDIS_DB", &cfg.Cache.Redis.DB)
	setBool("REDIS_TLS_ENABLED", &cfg.Cache.Redis.TLSEnabled)
	setString("REDIS_KEY_PREFIX", &cfg.Cache.Redis.KeyPrefix)

	setDuration("LOCATION_TIMEOUT", &cfg.Location.Timeout)
	setString("IP_LOOKUP_URL", &cfg.Location.IPLookupURL)
	setString("GEOCODER_URL", &cfg.Location.GeocoderURL)

	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)

	return err
}

// Path returns the config file location from CONFIG_FILE, or config.yml
func Path() string {
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		return p
	}
	return "config.yml"
}
