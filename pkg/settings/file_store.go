package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store persists one settings object per device key.
type Store interface {
	Get(deviceID string) (Settings, error)
	Put(deviceID string, s Settings) error
}

// FileStore keeps settings as one JSON file per device under a directory,
// the service-side analog of per-device local storage. Writes replace the
// whole object.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("settings dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Get reads the device's settings, returning defaults when none are stored.
func (f *FileStore) Get(deviceID string) (Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path(deviceID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("read settings: %w", err)
	}
	s := Default()
	if err := json.Unmarshal(data, &s); err != nil {
		// Corrupt file behaves like an empty one.
		return Default(), nil
	}
	return s, nil
}

// Put replaces the stored settings object for the device.
func (f *FileStore) Put(deviceID string, s Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(f.path(deviceID), data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func (f *FileStore) path(deviceID string) string {
	name := sanitizeDeviceID(deviceID)
	if name == "" {
		name = "default"
	}
	return filepath.Join(f.dir, name+".json")
}

func sanitizeDeviceID(id string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(id) {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
