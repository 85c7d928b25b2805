package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bagbrowser/bagbrowser/internal/manifest"
	"github.com/bagbrowser/bagbrowser/internal/storage"
	"github.com/bagbrowser/bagbrowser/pkg/types"
)

func writeManifest(t *testing.T, root string, id types.BagIdentifier, created string, names ...string) {
	t.Helper()
	local, err := storage.NewLocalStorage(root)
	if err != nil {
		t.Fatal(err)
	}
	var m types.StorageManifest
	m.Space = id.Space
	m.Info.ExternalIdentifier = id.ExternalIdentifier
	m.Version = id.Version
	m.CreatedDate = created
	for _, n := range names {
		m.Manifest.Files = append(m.Manifest.Files, types.ManifestFile{Name: n, Path: "data/" + n, Size: 1500})
	}
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := local.Put(context.Background(), manifest.NewStorageSource(local, "", 1).ObjectPath(id), raw); err != nil {
		t.Fatal(err)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := Run(args, &out)
	return out.String(), err
}

func TestRun_FreshenSpacesQuery(t *testing.T) {
	dir := t.TempDir()
	manifests := filepath.Join(dir, "manifests")
	db := filepath.Join(dir, "bags.db")

	writeManifest(t, manifests, types.BagIdentifier{Space: "digitised", ExternalIdentifier: "b1", Version: 1},
		"2019-12-16T10:01:44.021334Z", "a.xml", "b.jp2")
	writeManifest(t, manifests, types.BagIdentifier{Space: "digitised", ExternalIdentifier: "b2", Version: 1},
		"2019-12-17T10:01:44.021334Z", "a.xml")
	writeManifest(t, manifests, types.BagIdentifier{Space: "born-digital", ExternalIdentifier: "PP/1", Version: 1},
		"2019-12-18T10:01:44.021334Z", "doc.pdf")

	out, err := run(t, "freshen", "-data-dir", dir, "-db", db, "-path", manifests)
	if err != nil {
		t.Fatalf("freshen: %v", err)
	}
	if !strings.Contains(out, "stored 3") {
		t.Errorf("freshen output = %q", out)
	}

	out, err = run(t, "freshen", "-data-dir", dir, "-db", db, "-path", manifests)
	if err != nil {
		t.Fatalf("second freshen: %v", err)
	}
	if !strings.Contains(out, "already cached 3, stored 0") {
		t.Errorf("second freshen output = %q", out)
	}

	out, err = run(t, "spaces", "-data-dir", dir, "-db", db)
	if err != nil {
		t.Fatalf("spaces: %v", err)
	}
	if out != "born-digital\t1\ndigitised\t2\n" {
		t.Errorf("spaces output = %q", out)
	}

	out, err = run(t, "query", "-data-dir", dir, "-db", db, "-space", "digitised", "-prefix", "b1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("query output = %q", out)
	}
	if lines[0] != "1 bags, 2 files, 3.0 kB (page 1 of 1)" {
		t.Errorf("summary = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "digitised/b1/v1\t") {
		t.Errorf("row = %q", lines[1])
	}
}

func TestRun_QueryValidation(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, "query", "-data-dir", dir); err == nil {
		t.Error("expected error without -space")
	}
	if _, err := run(t, "query", "-data-dir", dir, "-space", "x", "-page", "-2"); err == nil {
		t.Error("expected error for negative page")
	}
}

func TestRun_Misc(t *testing.T) {
	if _, err := run(t); err == nil {
		t.Error("expected usage error with no args")
	}
	if _, err := run(t, "compact"); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("unknown command error = %v", err)
	}

	out, err := run(t, "version")
	if err != nil || !strings.HasPrefix(out, "bagbrowser version ") {
		t.Errorf("version = %q, %v", out, err)
	}

	if _, err := run(t, "freshen", "-data-dir", t.TempDir(), "-source", "ftp"); err == nil {
		t.Error("expected error for an unknown source type")
	}
}
