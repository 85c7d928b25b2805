package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func newTestLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	return s
}

func TestLocalStorage_PutGet(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	if err := s.Put(ctx, "digitised/b1/v1.json", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, err := s.Get(ctx, "digitised/b1/v1.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("Get = %q", data)
	}

	exists, err := s.Exists(ctx, "digitised/b1/v1.json")
	if err != nil || !exists {
		t.Errorf("Exists = %v, %v", exists, err)
	}
	exists, err = s.Exists(ctx, "digitised/b1")
	if err != nil || exists {
		t.Errorf("directories are not objects: Exists = %v, %v", exists, err)
	}
}

func TestLocalStorage_GetNotFound(t *testing.T) {
	s := newTestLocal(t)
	_, err := s.Get(context.Background(), "missing.json")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("err = %v, want ErrObjectNotFound", err)
	}
}

func TestLocalStorage_ListObjects(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()
	for _, p := range []string{
		"manifests/digitised/b2/v1.json",
		"manifests/digitised/b1/v2.json",
		"manifests/digitised/b1/v1.json",
		"manifests/born-digital/PP/CRI/1/v1.json",
		"other/x.json",
	} {
		if err := s.Put(ctx, p, []byte("{}")); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		prefix string
		want   []string
	}{
		{"manifests/digitised/", []string{
			"manifests/digitised/b1/v1.json",
			"manifests/digitised/b1/v2.json",
			"manifests/digitised/b2/v1.json",
		}},
		{"manifests/digitised/b1", []string{
			"manifests/digitised/b1/v1.json",
			"manifests/digitised/b1/v2.json",
		}},
		{"manifests/born", []string{"manifests/born-digital/PP/CRI/1/v1.json"}},
		{"nothing/", nil},
	}
	for _, tt := range tests {
		got, err := s.ListObjects(ctx, tt.prefix)
		if err != nil {
			t.Fatalf("ListObjects(%q): %v", tt.prefix, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ListObjects(%q) = %v, want %v", tt.prefix, got, tt.want)
		}
	}

	all, err := s.ListObjects(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Errorf("ListObjects(\"\") returned %d objects, want 5", len(all))
	}
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	s := newTestLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Get(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get err = %v", err)
	}
	if _, err := s.ListObjects(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("ListObjects err = %v", err)
	}
}
