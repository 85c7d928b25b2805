package app

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	httpapi "github.com/bagbrowser/bagbrowser/internal/api/http"
	"github.com/bagbrowser/bagbrowser/internal/config"
	"github.com/bagbrowser/bagbrowser/internal/manifest"
	"github.com/bagbrowser/bagbrowser/internal/storage"
	"github.com/bagbrowser/bagbrowser/pkg/types"
)

func testConfig(t *testing.T, mode config.Mode) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Mode = mode
	cfg.DataDir = t.TempDir()
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Ingest.Interval = time.Hour
	return cfg
}

func writeManifest(t *testing.T, root string, id types.BagIdentifier, names ...string) {
	t.Helper()
	local, err := storage.NewLocalStorage(root)
	if err != nil {
		t.Fatal(err)
	}

	var m types.StorageManifest
	m.Space = id.Space
	m.Info.ExternalIdentifier = id.ExternalIdentifier
	m.Version = id.Version
	m.CreatedDate = "2019-12-16T10:01:44.021334Z"
	for _, n := range names {
		m.Manifest.Files = append(m.Manifest.Files, types.ManifestFile{Name: n, Path: "data/" + n, Size: 1000})
	}
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}

	path := manifest.NewStorageSource(local, "", 1).ObjectPath(id)
	if err := local.Put(context.Background(), path, raw); err != nil {
		t.Fatal(err)
	}
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestApp_IngestsAndServes(t *testing.T) {
	cfg := testConfig(t, config.ModeAll)
	cfg.Resolve()
	writeManifest(t, cfg.Ingest.Source.Path,
		types.BagIdentifier{Space: "digitised", ExternalIdentifier: "b1", Version: 1}, "a.xml", "b.JP2")
	writeManifest(t, cfg.Ingest.Source.Path,
		types.BagIdentifier{Space: "digitised", ExternalIdentifier: "b1", Version: 2}, "a.xml")

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Stop(ctx)

	deadline := time.Now().Add(10 * time.Second)
	for {
		last, stats, runErr := a.Daemon().LastRun()
		if !last.IsZero() {
			if runErr != nil {
				t.Fatalf("ingest run failed: %v", runErr)
			}
			if stats.Stored != 2 {
				t.Fatalf("stored = %d, want 2", stats.Stored)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("ingest daemon did not complete a run")
		}
		time.Sleep(20 * time.Millisecond)
	}

	base := "http://" + a.Addr()

	var bags httpapi.BagsResponse
	if code := getJSON(t, base+"/spaces/digitised/bags", &bags); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if bags.Totals.Bags != 2 || bags.Totals.FileCount != 3 || bags.FileExtTally[".jp2"] != 1 {
		t.Errorf("response = %+v", bags)
	}

	var view httpapi.BagView
	if code := getJSON(t, base+"/bags/digitised/b1/v1", &view); code != http.StatusOK {
		t.Fatalf("bag status = %d", code)
	}
	if view.FileExtTally[".xml"] != 1 || view.FileExtTally[".jp2"] != 1 {
		t.Errorf("bag tally = %v", view.FileExtTally)
	}

	var m types.StorageManifest
	if code := getJSON(t, base+"/bags/digitised/b1/v2/metadata", &m); code != http.StatusOK {
		t.Fatalf("metadata status = %d", code)
	}
	if m.Version != 2 || len(m.Manifest.Files) != 1 {
		t.Errorf("metadata = %+v", m)
	}
	if code := getJSON(t, base+"/bags/digitised/b1/v3/metadata", nil); code != http.StatusNotFound {
		t.Errorf("missing metadata status = %d, want 404", code)
	}

	if err := a.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := a.Stop(ctx); err != nil {
		t.Errorf("second Stop: %v", err)
	}
	if _, err := http.Get(base + "/health"); err == nil {
		t.Error("server still accepting connections after Stop")
	}
}

func TestApp_ServeModeHasNoDaemon(t *testing.T) {
	cfg := testConfig(t, config.ModeServe)
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Stop(ctx)

	if a.Daemon() != nil {
		t.Error("serve mode started an ingest daemon")
	}
	if err := a.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}

	var health httpapi.HealthResponse
	if code := getJSON(t, "http://"+a.Addr()+"/health", &health); code != http.StatusOK || health.Mode != "serve" {
		t.Errorf("health = %d %+v", code, health)
	}
}

func TestApp_IngestModeHasNoHTTP(t *testing.T) {
	cfg := testConfig(t, config.ModeIngest)
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Stop(ctx)

	if a.Addr() != "" {
		t.Errorf("ingest mode listens on %s", a.Addr())
	}
	if a.Catalog() == nil || a.Daemon() == nil {
		t.Error("catalog and daemon should be running")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t, "compact")
	if _, err := New(cfg); err == nil {
		t.Error("expected error for invalid mode")
	}
}

func TestStart_BadDatabasePath(t *testing.T) {
	cfg := testConfig(t, config.ModeServe)
	cfg.DatabasePath = filepath.Join(cfg.DataDir, "bags.db")
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// A directory where the database file should be.
	cfg.DatabasePath = cfg.DataDir

	if err := a.Start(context.Background()); err == nil {
		a.Stop(context.Background())
		t.Fatal("expected Start to fail")
	}
	if a.Addr() != "" {
		t.Error("HTTP server started despite the catalog failure")
	}
}
