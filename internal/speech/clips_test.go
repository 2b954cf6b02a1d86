package speech

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtensionForMime(t *testing.T) {
	tests := map[string]string{
		"audio/ogg":              ".ogg",
		"audio/ogg; codecs=opus": ".ogg",
		"audio/wav":              ".wav",
		"audio/x-wav":            ".wav",
		"audio/mpeg":             ".mp3",
		"":                       ".mp3",
	}
	for mime, want := range tests {
		if got := ExtensionForMime(mime); got != want {
			t.Fatalf("ExtensionForMime(%q) = %q, want %q", mime, got, want)
		}
	}
}

func TestClipStoreWriteAndRemove(t *testing.T) {
	store, err := NewClipStore(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	a, err := store.Write([]byte("one"), "audio/wav")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := store.Write([]byte("two"), "audio/wav")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if a == b {
		t.Fatal("clip names must be unique")
	}
	if !strings.HasPrefix(filepath.Base(a), clipPrefix) {
		t.Fatalf("clip %s lacks prefix", a)
	}
	if store.Live() != 2 {
		t.Fatalf("Live = %d, want 2", store.Live())
	}

	data, err := os.ReadFile(a)
	if err != nil || string(data) != "one" {
		t.Fatalf("read back %q, %v", data, err)
	}

	if err := store.Remove(a); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// Removing twice is fine.
	if err := store.Remove(a); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if store.Live() != 1 {
		t.Fatalf("Live = %d, want 1", store.Live())
	}
}

func TestClipStoreSweepOnlyTouchesClips(t *testing.T) {
	dir := t.TempDir()
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("keep"), 0o600); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(dir, clipPrefix+"123-abc.mp3")
	if err := os.WriteFile(stale, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}

	store, err := NewClipStore(dir, testLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	n, err := store.Sweep()
	if err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v; want 1, nil", n, err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Fatalf("unrelated file removed: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale clip survived: %v", err)
	}
}
