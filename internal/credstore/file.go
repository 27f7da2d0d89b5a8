package credstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	agerrors "github.com/felixgeelhaar/agriconnect/internal/errors"
)

// DefaultFileName is the credentials document inside the config directory.
const DefaultFileName = "credentials.json"

// FileStore keeps credentials in a JSON document readable only by the owner.
//
// Writes go to a temporary file that is renamed over the target, so a crash
// mid-write leaves either the old or the new document.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path. The directory is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns ~/.agriconnect/credentials.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".agriconnect", DefaultFileName)
}

// Path returns the backing file location.
func (f *FileStore) Path() string {
	return f.path
}

// Save writes all four keys.
func (f *FileStore) Save(_ context.Context, snap Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(snap.toMap(), "", "  ")
	if err != nil {
		return agerrors.NewStoreWriteError(f.path, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return agerrors.NewStoreWriteError(f.path, err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.json")
	if err != nil {
		return agerrors.NewStoreWriteError(f.path, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return agerrors.NewStoreWriteError(f.path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return agerrors.NewStoreWriteError(f.path, err)
	}
	if err := tmp.Close(); err != nil {
		return agerrors.NewStoreWriteError(f.path, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return agerrors.NewStoreWriteError(f.path, err)
	}
	return nil
}

// Load reads the document. A missing file loads as an empty snapshot.
func (f *FileStore) Load(_ context.Context) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, agerrors.NewStoreReadError(f.path, err)
	}

	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return Snapshot{}, agerrors.NewStoreReadError(f.path, err)
	}
	return snapshotFromMap(values), nil
}

// Clear removes the document.
func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return agerrors.Wrap(agerrors.ErrCodeStoreClearFailed, "failed to remove credentials", err)
	}
	return nil
}
