package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore keeps the record of a long-lived client in a private JSON file.
type FileStore struct {
	path      string
	retention time.Duration
	now       func() time.Time

	mu sync.Mutex
}

type fileState struct {
	Token              string    `json:"token,omitempty"`
	User               *User     `json:"user,omitempty"`
	ExpiresAt          time.Time `json:"expires_at,omitzero"`
	SavedAt            time.Time `json:"saved_at,omitzero"`
	RememberedUsername string    `json:"remembered_username,omitempty"`
}

// NewFileStore returns a store backed by path. The file is created on first save.
func NewFileStore(path string, retention time.Duration) *FileStore {
	return &FileStore{path: path, retention: normalizeRetention(retention), now: time.Now}
}

// DefaultFilePath returns the per-user state file location.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "authstate", "session.json"), nil
}

// Path returns the backing file path.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Load(context.Context) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, err := f.read()
	if err != nil {
		return Record{}, err
	}
	if st.Token == "" && st.User == nil {
		return Record{}, nil
	}
	if f.now().Sub(st.SavedAt) > f.retention {
		return Record{}, nil
	}
	return Record{Token: st.Token, User: st.User, ExpiresAt: st.ExpiresAt}, nil
}

func (f *FileStore) Save(_ context.Context, r Record) error {
	return f.update(func(st *fileState) {
		st.Token = r.Token
		st.User = r.User.Clone()
		st.ExpiresAt = r.ExpiresAt
		st.SavedAt = f.now()
	})
}

func (f *FileStore) Clear(context.Context) error {
	return f.update(func(st *fileState) {
		st.Token = ""
		st.User = nil
		st.ExpiresAt = time.Time{}
		st.SavedAt = time.Time{}
	})
}

func (f *FileStore) RememberUsername(_ context.Context, username string) error {
	return f.update(func(st *fileState) { st.RememberedUsername = username })
}

func (f *FileStore) RememberedUsername(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, err := f.read()
	if err != nil && !errors.Is(err, ErrCorruptRecord) {
		return "", err
	}
	return st.RememberedUsername, nil
}

func (f *FileStore) ForgetUsername(context.Context) error {
	return f.update(func(st *fileState) { st.RememberedUsername = "" })
}

func (f *FileStore) read() (fileState, error) {
	var st fileState
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return st, nil
		}
		return st, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return fileState{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return st, nil
}

func (f *FileStore) update(mutate func(*fileState)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, err := f.read()
	if err != nil && !errors.Is(err, ErrCorruptRecord) {
		return err
	}
	mutate(&st)

	if st.Token == "" && st.User == nil && st.RememberedUsername == "" {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return nil
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
