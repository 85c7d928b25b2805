package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bagbrowser/bagbrowser/internal/query"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Query.PageSize != 250 || cfg.Query.CacheSize != query.DefaultCacheSize {
		t.Errorf("query defaults = %+v", cfg.Query)
	}
	if cfg.DatabasePath != filepath.Join(cfg.DataDir, "bags.db") {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.PrefixMatch() != query.PrefixInclusive {
		t.Errorf("PrefixMatch = %q", cfg.PrefixMatch())
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bagbrowser.yaml")
	body := `
mode: serve
data_dir: /var/lib/bagbrowser
query:
  page_size: 100
  prefix_match: strict
ingest:
  interval: 15m
  source:
    type: s3
    bucket: wellcomecollection-storage
    prefix: manifests
    use_path_style: true
log:
  human: true
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Mode != ModeServe || cfg.Query.PageSize != 100 || cfg.PrefixMatch() != query.PrefixStrict {
		t.Errorf("cfg = %+v", cfg)
	}
	// Unset keys keep their defaults.
	if cfg.Query.CacheSize != query.DefaultCacheSize || cfg.Ingest.BatchSize != 1 {
		t.Errorf("defaults lost: %+v %+v", cfg.Query, cfg.Ingest)
	}
	if cfg.Ingest.Interval != 15*time.Minute {
		t.Errorf("Interval = %s", cfg.Ingest.Interval)
	}
	src := cfg.Ingest.Source
	if src.Type != SourceS3 || src.Bucket != "wellcomecollection-storage" || src.Prefix != "manifests" || !src.UsePathStyle {
		t.Errorf("source = %+v", src)
	}
	if !cfg.Log.Human || cfg.Log.Debug {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.ShouldRunIngest() || !cfg.ShouldRunServe() {
		t.Error("serve mode should run only the API")
	}
}

func TestLoadFromFile_JSONAndErrors(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "cfg.json")
	os.WriteFile(jsonPath, []byte(`{"mode":"ingest","query":{"cache_size":8}}`), 0644)
	cfg, err := LoadFromFile(jsonPath)
	if err != nil {
		t.Fatalf("LoadFromFile json: %v", err)
	}
	if cfg.Mode != ModeIngest || cfg.Query.CacheSize != 8 {
		t.Errorf("cfg = %+v", cfg)
	}

	tomlPath := filepath.Join(dir, "cfg.toml")
	os.WriteFile(tomlPath, []byte(`mode = "all"`), 0644)
	if _, err := LoadFromFile(tomlPath); err == nil {
		t.Error("expected error for unsupported format")
	}

	if _, err := LoadFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BAGBROWSER_MODE", "ingest")
	t.Setenv("BAGBROWSER_DATABASE_PATH", "/tmp/cache/bags.db")
	t.Setenv("BAGBROWSER_QUERY_PAGE_SIZE", "50")
	t.Setenv("BAGBROWSER_INGEST_INTERVAL", "5m")
	t.Setenv("BAGBROWSER_S3_USE_PATH_STYLE", "true")
	t.Setenv("BAGBROWSER_LOG_DEBUG", "1")

	cfg := DefaultConfig()
	if err := LoadFromEnv(cfg); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Mode != ModeIngest || cfg.DatabasePath != "/tmp/cache/bags.db" || cfg.Query.PageSize != 50 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Ingest.Interval != 5*time.Minute || !cfg.Ingest.Source.UsePathStyle || !cfg.Log.Debug {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadFromEnv_BadValue(t *testing.T) {
	t.Setenv("BAGBROWSER_QUERY_CACHE_SIZE", "lots")

	err := LoadFromEnv(DefaultConfig())
	if err == nil || !strings.Contains(err.Error(), "BAGBROWSER_QUERY_CACHE_SIZE") {
		t.Errorf("err = %v, want one naming the variable", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"mode", func(c *Config) { c.Mode = "compact" }},
		{"page size", func(c *Config) { c.Query.PageSize = 0 }},
		{"cache size", func(c *Config) { c.Query.CacheSize = -1 }},
		{"prefix match", func(c *Config) { c.Query.PrefixMatch = "fuzzy" }},
		{"batch size", func(c *Config) { c.Ingest.BatchSize = 0 }},
		{"fetch batch", func(c *Config) { c.Ingest.FetchBatch = 0 }},
		{"interval", func(c *Config) { c.Ingest.Interval = 0 }},
		{"source type", func(c *Config) { c.Ingest.Source.Type = "ftp" }},
		{"s3 bucket", func(c *Config) { c.Ingest.Source.Type = SourceS3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Resolve()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(root, "data")
	cfg.DatabasePath = filepath.Join(root, "db", "bags.db")
	cfg.Resolve()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.DataDir, filepath.Dir(cfg.DatabasePath), cfg.Ingest.Source.Path} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s was not created", dir)
		}
	}
}
