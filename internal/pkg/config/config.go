package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Source names accepted by the "source" key.
const (
	SourceOpenData = "opendata"
	SourcePostgres = "postgres"
)

// Filter styles accepted by opendata.filter_style.
const (
	FilterBBox   = "bbox"
	FilterInBBox = "in_bbox"
)

// Config holds all application configuration.
type Config struct {
	Source    string          `mapstructure:"source"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	OpenData  OpenDataConfig  `mapstructure:"opendata"`
	Map       MapConfig       `mapstructure:"map"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
	RateLimit    int `mapstructure:"rate_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OpenDataConfig points at the records endpoint of the restroom dataset.
type OpenDataConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	FilterStyle string        `mapstructure:"filter_style"`
	ResultLimit int           `mapstructure:"result_limit"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RatePerSec  float64       `mapstructure:"rate_per_sec"`
	Burst       int           `mapstructure:"burst"`
}

// MapConfig holds the map provider credential and the initial camera.
type MapConfig struct {
	AccessToken     string        `mapstructure:"access_token"`
	Style           string        `mapstructure:"style"`
	CenterLat       float64       `mapstructure:"center_lat"`
	CenterLon       float64       `mapstructure:"center_lon"`
	Zoom            float64       `mapstructure:"zoom"`
	LocateZoom      float64       `mapstructure:"locate_zoom"`
	FlyDuration     time.Duration `mapstructure:"fly_duration"`
	LocationTimeout time.Duration `mapstructure:"location_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TemporalConfig struct {
	HostPort  string        `mapstructure:"host_port"`
	Namespace string        `mapstructure:"namespace"`
	TaskQueue string        `mapstructure:"task_queue"`
	Interval  time.Duration `mapstructure:"interval"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Load reads configuration from .env, an optional config file and
// environment variables, in increasing order of precedence.
func Load(service string) (*Config, error) {
	_ = godotenv.Load() // OK if missing

	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: TOILETMAP_OPENDATA_BASE_URL → opendata.base_url
	v.SetEnvPrefix("TOILETMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("source", SourceOpenData)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("opendata.base_url",
		"https://opendata.paris.fr/api/explore/v2.1/catalog/datasets/sanisettesparis/records")
	v.SetDefault("opendata.filter_style", FilterInBBox)
	v.SetDefault("opendata.result_limit", 100)
	v.SetDefault("opendata.timeout", 10*time.Second)
	v.SetDefault("opendata.rate_per_sec", 5.0)
	v.SetDefault("opendata.burst", 10)
	v.SetDefault("map.access_token", "")
	v.SetDefault("map.style", "mapbox://styles/mapbox/streets-v12")
	v.SetDefault("map.center_lat", 48.8566)
	v.SetDefault("map.center_lon", 2.3522)
	v.SetDefault("map.zoom", 13.0)
	v.SetDefault("map.locate_zoom", 15.0)
	v.SetDefault("map.fly_duration", 2*time.Second)
	v.SetDefault("map.location_timeout", 10*time.Second)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "toiletmap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "toiletmap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "toiletmap-mirror")
	v.SetDefault("temporal.interval", time.Hour)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.RateLimit <= 0 {
		errs = append(errs, "server.rate_limit must be positive")
	}

	switch c.Source {
	case SourceOpenData, SourcePostgres:
	default:
		errs = append(errs, fmt.Sprintf("source must be %q or %q, got %q", SourceOpenData, SourcePostgres, c.Source))
	}

	if u, err := url.Parse(c.OpenData.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("opendata.base_url must be an absolute URL, got %q", c.OpenData.BaseURL))
	}
	switch c.OpenData.FilterStyle {
	case FilterBBox, FilterInBBox:
	default:
		errs = append(errs, fmt.Sprintf("opendata.filter_style must be %q or %q, got %q", FilterBBox, FilterInBBox, c.OpenData.FilterStyle))
	}
	if c.OpenData.ResultLimit < 1 || c.OpenData.ResultLimit > 100 {
		errs = append(errs, fmt.Sprintf("opendata.result_limit must be 1-100, got %d", c.OpenData.ResultLimit))
	}
	if c.OpenData.Timeout <= 0 {
		errs = append(errs, "opendata.timeout must be positive")
	}
	if c.OpenData.RatePerSec <= 0 {
		errs = append(errs, "opendata.rate_per_sec must be positive")
	}
	if c.OpenData.Burst <= 0 {
		errs = append(errs, "opendata.burst must be positive")
	}

	if c.Map.CenterLat < -90 || c.Map.CenterLat > 90 || c.Map.CenterLon < -180 || c.Map.CenterLon > 180 {
		errs = append(errs, fmt.Sprintf("map center %v,%v is out of range", c.Map.CenterLat, c.Map.CenterLon))
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 22 {
		errs = append(errs, fmt.Sprintf("map.zoom must be 0-22, got %v", c.Map.Zoom))
	}
	if c.Map.LocationTimeout <= 0 {
		errs = append(errs, "map.location_timeout must be positive")
	}

	if c.Source == SourcePostgres {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
