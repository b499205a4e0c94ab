// Package config loads region-cli settings from config.yaml, .env and
// REGION_* environment variables, and sets up the global logger.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Layers   []LayerConfig  `yaml:"layers" mapstructure:"layers"`
	Points   PointsConfig   `yaml:"points" mapstructure:"points"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Download DownloadConfig `yaml:"download" mapstructure:"download"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// LayerConfig names one boundary layer and where to load it from.
type LayerConfig struct {
	Name      string `yaml:"name" mapstructure:"name"`
	Path      string `yaml:"path" mapstructure:"path"`             // .shp or .zip, local or http(s)
	CodeField string `yaml:"code_field" mapstructure:"code_field"` // DBF attribute holding the region code
	Column    string `yaml:"column" mapstructure:"column"`         // output column; defaults to Name
}

// OutputColumn returns the column name written for this layer.
func (l LayerConfig) OutputColumn() string {
	if l.Column != "" {
		return l.Column
	}
	return l.Name
}

// PointsConfig describes the point input file.
type PointsConfig struct {
	Path          string `yaml:"path" mapstructure:"path"`
	Delimiter     string `yaml:"delimiter" mapstructure:"delimiter"`
	Sheet         string `yaml:"sheet" mapstructure:"sheet"`
	IDColumn      string `yaml:"id_column" mapstructure:"id_column"`
	RetiredColumn string `yaml:"retired_column" mapstructure:"retired_column"`
	LonColumn     string `yaml:"lon_column" mapstructure:"lon_column"`
	LatColumn     string `yaml:"lat_column" mapstructure:"lat_column"`
	GroupBy       string `yaml:"group_by" mapstructure:"group_by"`
	SkipZero      bool   `yaml:"skip_zero" mapstructure:"skip_zero"`
}

// DelimiterRune returns the first rune of Delimiter, or '|'.
func (p PointsConfig) DelimiterRune() rune {
	for _, r := range p.Delimiter {
		return r
	}
	return '|'
}

// OutputConfig selects where assignments go.
type OutputConfig struct {
	Path  string   `yaml:"path" mapstructure:"path"`
	Sinks []string `yaml:"sinks" mapstructure:"sinks"` // psv, sqlite, postgres
}

// HasSink reports whether name is one of the configured sinks.
func (o OutputConfig) HasSink(name string) bool {
	for _, s := range o.Sinks {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return true
		}
	}
	return false
}

// BatchConfig tunes the classification worker pool.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	ChunkSize   int `yaml:"chunk_size" mapstructure:"chunk_size"`
}

// ServerConfig configures the lookup server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// StoreConfig configures the SQLite and PostgreSQL sinks.
type StoreConfig struct {
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
	Upsert      bool   `yaml:"upsert" mapstructure:"upsert"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	SaveLayers  bool   `yaml:"save_layers" mapstructure:"save_layers"`
}

// DownloadConfig configures fetching of http(s) layer paths.
type DownloadConfig struct {
	CacheDir   string        `yaml:"cache_dir" mapstructure:"cache_dir"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads .env (if present), then configuration from file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REGION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("points.path", "")
	v.SetDefault("points.sheet", "")
	v.SetDefault("points.delimiter", "|")
	v.SetDefault("points.id_column", "id")
	v.SetDefault("points.retired_column", "date_retired")
	v.SetDefault("points.lon_column", "longitude")
	v.SetDefault("points.lat_column", "latitude")
	v.SetDefault("points.group_by", "")
	v.SetDefault("points.skip_zero", true)
	v.SetDefault("output.path", "assignments.psv")
	v.SetDefault("output.sinks", []string{"psv"})
	v.SetDefault("batch.concurrency", 1)
	v.SetDefault("batch.chunk_size", 1000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("store.sqlite_path", "region.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.table", "region_assignments")
	v.SetDefault("store.upsert", false)
	v.SetDefault("store.batch_size", 5000)
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.save_layers", false)
	v.SetDefault("download.cache_dir", ".region-cache")
	v.SetDefault("download.timeout", "10m")
	v.SetDefault("download.max_retries", 3)
	v.SetDefault("download.user_agent", "region-cli/1.0")

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
