package remote

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franz/ridgemont-catalog/internal/util"
)

func TestDirStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewDirStore(root)
	if err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(src, []byte("audio bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	key := "Frozen Cloud/Glass Weather/Horizon.mp3"
	if store.Exists(ctx, key) {
		t.Fatal("Key should not exist before upload")
	}
	if !store.UploadFile(ctx, src, key, "audio/mpeg") {
		t.Fatal("UploadFile failed")
	}
	if !store.Exists(ctx, key) {
		t.Fatal("Key should exist after upload")
	}
	data, err := os.ReadFile(filepath.Join(root, "Frozen Cloud", "Glass Weather", "Horizon.mp3"))
	if err != nil || string(data) != "audio bytes" {
		t.Errorf("Stored object = %q, %v", data, err)
	}

	// no temp files left behind
	entries, _ := os.ReadDir(filepath.Join(root, "Frozen Cloud", "Glass Weather"))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".part") {
			t.Errorf("Leftover temp file %s", e.Name())
		}
	}
}

func TestDirStoreJSON(t *testing.T) {
	ctx := context.Background()
	store, err := NewDirStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	type listing struct {
		LastUpdated string   `json:"lastUpdated"`
		Tracks      []string `json:"tracks"`
	}

	var out listing
	if store.GetJSON(ctx, "tracks.json", &out) {
		t.Fatal("GetJSON should fail for a missing object")
	}

	in := listing{LastUpdated: "2026-10-17", Tracks: []string{"a", "b"}}
	if !store.UploadJSON(ctx, in, "tracks.json") {
		t.Fatal("UploadJSON failed")
	}
	if !store.GetJSON(ctx, "tracks.json", &out) {
		t.Fatal("GetJSON failed")
	}
	if out.LastUpdated != in.LastUpdated || len(out.Tracks) != 2 {
		t.Errorf("GetJSON = %+v", out)
	}

	// overwrite replaces content
	in.Tracks = nil
	if !store.UploadJSON(ctx, in, "tracks.json") {
		t.Fatal("second UploadJSON failed")
	}
	out = listing{}
	store.GetJSON(ctx, "tracks.json", &out)
	if len(out.Tracks) != 0 {
		t.Errorf("Expected overwritten listing, got %+v", out)
	}
}

func TestDirStoreRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewDirStore(filepath.Join(root, "bucket"))
	if err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"../escape.json", "a/../../b.json", "", "a//b.json"} {
		if store.UploadJSON(ctx, map[string]int{"x": 1}, key) {
			t.Errorf("UploadJSON(%q) should fail", key)
		}
		if !store.Exists(ctx, key) {
			t.Errorf("Exists(%q) should answer true for an unusable key", key)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "escape.json")); err == nil {
		t.Error("Object escaped the store root")
	}
}

func TestDirStoreUploadMissingSource(t *testing.T) {
	store, err := NewDirStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if store.UploadFile(context.Background(), "/nonexistent/file.wav", "a/b/c.wav", "audio/wav") {
		t.Error("UploadFile should fail when the source is missing")
	}
	if store.Exists(context.Background(), "a/b/c.wav") {
		t.Error("Failed upload must not leave an object")
	}
}

func TestNewBackendSelection(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
		prefix  string
	}{
		{"dir", Config{Backend: "dir", Dir: t.TempDir()}, nil, "dir://"},
		{"dir without path", Config{Backend: "dir"}, util.ErrInvalidConfig, ""},
		{"r2 missing creds", Config{Backend: "r2", AccountID: "abc"}, util.ErrInvalidConfig, ""},
		{"r2", Config{Backend: "r2", AccountID: "abc", AccessKeyID: "k", SecretAccessKey: "s"}, nil, "r2://ridgemont-studio"},
		{"r2 custom bucket", Config{AccountID: "abc", AccessKeyID: "k", SecretAccessKey: "s", Bucket: "demo"}, nil, "r2://demo"},
		{"unknown", Config{Backend: "ftp"}, util.ErrInvalidConfig, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(&tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if !strings.HasPrefix(store.String(), tt.prefix) {
				t.Errorf("String() = %q, want prefix %q", store.String(), tt.prefix)
			}
		})
	}
}
