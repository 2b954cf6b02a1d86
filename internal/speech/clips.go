package speech

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hammamikhairi/navcompanion/internal/logger"
)

// clipPrefix marks files owned by a ClipStore so Sweep never touches
// anything else in the directory.
const clipPrefix = "nav-clip-"

// ClipStore holds transient synthesized audio on disk while it plays.
// Every clip gets a unique timestamped name so overlapping sessions never
// collide, and is removed once its session ends. Thread-safe.
type ClipStore struct {
	dir string
	log *logger.Logger

	mu   sync.Mutex
	live map[string]struct{}
}

// NewClipStore creates the directory if needed.
func NewClipStore(dir string, log *logger.Logger) (*ClipStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "navcompanion-clips")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating clip dir: %w", err)
	}
	return &ClipStore{dir: dir, log: log, live: make(map[string]struct{})}, nil
}

// Dir returns the directory clips are written to.
func (c *ClipStore) Dir() string { return c.dir }

// ExtensionForMime maps a synthesis mime type to a file extension.
func ExtensionForMime(mime string) string {
	m := strings.ToLower(mime)
	switch {
	case strings.Contains(m, "ogg"):
		return ".ogg"
	case strings.Contains(m, "wav"):
		return ".wav"
	default:
		return ".mp3"
	}
}

// Write persists audio and returns its path.
func (c *ClipStore) Write(audio []byte, mime string) (string, error) {
	name := fmt.Sprintf("%s%d-%s%s", clipPrefix, time.Now().UnixNano(), uuid.NewString()[:8], ExtensionForMime(mime))
	path := filepath.Join(c.dir, name)
	if err := os.WriteFile(path, audio, 0o600); err != nil {
		// A partial file may exist.
		_ = os.Remove(path)
		return "", fmt.Errorf("writing clip: %w", err)
	}

	c.mu.Lock()
	c.live[path] = struct{}{}
	n := len(c.live)
	c.mu.Unlock()

	c.log.Debug("clips: stored %s (%d bytes, %d live)", name, len(audio), n)
	return path, nil
}

// Remove deletes a clip. Missing files are not an error.
func (c *ClipStore) Remove(path string) error {
	c.mu.Lock()
	delete(c.live, path)
	c.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing clip: %w", err)
	}
	c.log.Debug("clips: removed %s", filepath.Base(path))
	return nil
}

// Live returns the number of clips written and not yet removed.
func (c *ClipStore) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

// Sweep removes clips left behind by a previous process that did not
// shut down cleanly. Call once at startup.
func (c *ClipStore) Sweep() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("reading clip dir: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), clipPrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		c.log.Info("clips: swept %d stale clips from %s", removed, c.dir)
	}
	return removed, nil
}
