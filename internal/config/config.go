// Package config provides configuration for the bag browser services.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bagbrowser/bagbrowser/internal/query"
)

// Mode represents the service mode to run.
type Mode string

const (
	ModeAll    Mode = "all"
	ModeServe  Mode = "serve"
	ModeIngest Mode = "ingest"
)

// Source types for manifest ingestion.
const (
	SourceLocal = "local"
	SourceS3    = "s3"
)

// Config holds the configuration for all bag browser services.
type Config struct {
	// Mode selects the services to run: all, serve, ingest
	Mode Mode `json:"mode" yaml:"mode"`

	// DataDir is the base directory for local state
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// DatabasePath is the SQLite cache file; defaults to {data_dir}/bags.db
	DatabasePath string `json:"database_path" yaml:"database_path"`

	HTTP   HTTPConfig   `json:"http" yaml:"http"`
	Query  QueryConfig  `json:"query" yaml:"query"`
	Ingest IngestConfig `json:"ingest" yaml:"ingest"`
	Log    LogConfig    `json:"log" yaml:"log"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Addr         string        `json:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// QueryConfig holds query and result cache configuration.
type QueryConfig struct {
	// PageSize is the number of bags per page
	PageSize int `json:"page_size" yaml:"page_size"`

	// CacheSize is the number of query results kept in memory
	CacheSize int `json:"cache_size" yaml:"cache_size"`

	// PrefixMatch is "inclusive" (>=) or "strict" (>)
	PrefixMatch string `json:"prefix_match" yaml:"prefix_match"`
}

// IngestConfig holds manifest ingestion configuration.
type IngestConfig struct {
	// Interval between freshen runs when the ingest daemon is enabled
	Interval time.Duration `json:"interval" yaml:"interval"`

	// BatchSize is the number of bags committed per transaction
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// FetchBatch is the number of manifests fetched concurrently
	FetchBatch int `json:"fetch_batch" yaml:"fetch_batch"`

	Source SourceConfig `json:"source" yaml:"source"`
}

// SourceConfig describes where storage manifests are read from.
type SourceConfig struct {
	// Type is the source type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the manifest root for the local type
	Path string `json:"path" yaml:"path"`

	// Prefix is prepended to every manifest key
	Prefix string `json:"prefix" yaml:"prefix"`

	Bucket       string `json:"bucket" yaml:"bucket"`
	Region       string `json:"region" yaml:"region"`
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	UsePathStyle bool   `json:"use_path_style" yaml:"use_path_style"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Debug bool `json:"debug" yaml:"debug"`
	Human bool `json:"human" yaml:"human"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Mode:    ModeAll,
		DataDir: "./data/bagbrowser",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Query: QueryConfig{
			PageSize:    query.DefaultPageSize,
			CacheSize:   query.DefaultCacheSize,
			PrefixMatch: string(query.DefaultPrefixMatch),
		},
		Ingest: IngestConfig{
			Interval:   time.Hour,
			BatchSize:  1,
			FetchBatch: 32,
			Source: SourceConfig{
				Type: SourceLocal,
			},
		},
	}
}

// Resolve fills paths derived from DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/bagbrowser"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.DataDir, "bags.db")
	}
	if c.Ingest.Source.Type == SourceLocal && c.Ingest.Source.Path == "" {
		c.Ingest.Source.Path = filepath.Join(c.DataDir, "manifests")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeAll, ModeServe, ModeIngest:
	default:
		return fmt.Errorf("invalid mode: %s (must be all, serve, or ingest)", c.Mode)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Query.PageSize < 1 {
		return fmt.Errorf("query.page_size must be positive, got %d", c.Query.PageSize)
	}
	if c.Query.CacheSize < 1 {
		return fmt.Errorf("query.cache_size must be positive, got %d", c.Query.CacheSize)
	}
	if _, err := query.ParsePrefixMatch(c.Query.PrefixMatch); err != nil {
		return fmt.Errorf("query.prefix_match: %w", err)
	}

	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("ingest.batch_size must be positive, got %d", c.Ingest.BatchSize)
	}
	if c.Ingest.FetchBatch < 1 {
		return fmt.Errorf("ingest.fetch_batch must be positive, got %d", c.Ingest.FetchBatch)
	}
	if c.ShouldRunIngest() && c.Ingest.Interval <= 0 {
		return fmt.Errorf("ingest.interval must be positive, got %s", c.Ingest.Interval)
	}

	switch c.Ingest.Source.Type {
	case SourceLocal:
	case SourceS3:
		if c.Ingest.Source.Bucket == "" {
			return fmt.Errorf("ingest.source.bucket is required when source type is s3")
		}
	default:
		return fmt.Errorf("invalid ingest source type: %s (must be local or s3)", c.Ingest.Source.Type)
	}

	return nil
}

// ShouldRunServe returns true if the HTTP API should run.
func (c *Config) ShouldRunServe() bool {
	return c.Mode == ModeAll || c.Mode == ModeServe
}

// ShouldRunIngest returns true if the periodic ingest daemon should run.
func (c *Config) ShouldRunIngest() bool {
	return c.Mode == ModeAll || c.Mode == ModeIngest
}

// PrefixMatch returns the parsed query.prefix_match setting.
func (c *Config) PrefixMatch() query.PrefixMatch {
	m, err := query.ParsePrefixMatch(c.Query.PrefixMatch)
	if err != nil {
		return query.DefaultPrefixMatch
	}
	return m
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv applies BAGBROWSER_* environment overrides to cfg.
// Unparseable numeric, boolean and duration values are reported as errors.
func LoadFromEnv(cfg *Config) error {
	setStr := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) error {
		v := os.Getenv(name)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
		return nil
	}
	setBool := func(name string, dst *bool) error {
		v := os.Getenv(name)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = b
		return nil
	}
	setDuration := func(name string, dst *time.Duration) error {
		v := os.Getenv(name)
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = d
		return nil
	}

	var mode string
	setStr("BAGBROWSER_MODE", &mode)
	if mode != "" {
		cfg.Mode = Mode(mode)
	}
	setStr("BAGBROWSER_DATA_DIR", &cfg.DataDir)
	setStr("BAGBROWSER_DATABASE_PATH", &cfg.DatabasePath)
	setStr("BAGBROWSER_HTTP_ADDR", &cfg.HTTP.Addr)
	setStr("BAGBROWSER_QUERY_PREFIX_MATCH", &cfg.Query.PrefixMatch)
	setStr("BAGBROWSER_SOURCE_TYPE", &cfg.Ingest.Source.Type)
	setStr("BAGBROWSER_SOURCE_PATH", &cfg.Ingest.Source.Path)
	setStr("BAGBROWSER_SOURCE_PREFIX", &cfg.Ingest.Source.Prefix)
	setStr("BAGBROWSER_S3_BUCKET", &cfg.Ingest.Source.Bucket)
	setStr("BAGBROWSER_S3_REGION", &cfg.Ingest.Source.Region)
	setStr("BAGBROWSER_S3_ENDPOINT", &cfg.Ingest.Source.Endpoint)

	for _, set := range []func() error{
		func() error { return setInt("BAGBROWSER_QUERY_PAGE_SIZE", &cfg.Query.PageSize) },
		func() error { return setInt("BAGBROWSER_QUERY_CACHE_SIZE", &cfg.Query.CacheSize) },
		func() error { return setInt("BAGBROWSER_INGEST_BATCH_SIZE", &cfg.Ingest.BatchSize) },
		func() error { return setInt("BAGBROWSER_INGEST_FETCH_BATCH", &cfg.Ingest.FetchBatch) },
		func() error { return setDuration("BAGBROWSER_INGEST_INTERVAL", &cfg.Ingest.Interval) },
		func() error { return setBool("BAGBROWSER_S3_USE_PATH_STYLE", &cfg.Ingest.Source.UsePathStyle) },
		func() error { return setBool("BAGBROWSER_LOG_DEBUG", &cfg.Log.Debug) },
		func() error { return setBool("BAGBROWSER_LOG_HUMAN", &cfg.Log.Human) },
	} {
		if err := set(); err != nil {
			return err
		}
	}
	return nil
}

// EnsureDirectories creates the data directory and the parent of the database file.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		filepath.Dir(c.DatabasePath),
	}
	if c.Ingest.Source.Type == SourceLocal {
		dirs = append(dirs, c.Ingest.Source.Path)
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
