// Package jsonfile persists users as a single JSON object keyed by email.
// Every mutation rewrites the whole file.
package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// Store owns the credential file. Writers are serialised by an in-process
// mutex and an exclusive flock on "<path>.lock" (so several processes may
// share one file); the file itself is replaced with an atomic rename, so
// readers never see a half-written document and need no lock.
type Store struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

type record struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Open prepares the store at path, creating the file as "{}" if it does not
// exist yet.
func Open(path string) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("abs users file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir users dir: %w", err)
	}
	s := &Store{path: abs, lock: flock.New(abs + ".lock")}

	err = s.update(func(map[string]record) (bool, error) { return false, nil })
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the absolute path of the backing file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) snapshot() (map[string]record, error) {
	return s.read()
}

// update runs fn over the current contents under an exclusive lock and
// writes the result back when fn reports a change.
func (s *Store) update(fn func(users map[string]record) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock users file: %w", err)
	}
	defer s.lock.Unlock()

	users, err := s.read()
	if err != nil {
		return err
	}
	_, statErr := os.Stat(s.path)
	changed, err := fn(users)
	if err != nil {
		return err
	}
	if !changed && statErr == nil {
		return nil
	}
	return s.write(users)
}

func (s *Store) read() (map[string]record, error) {
	users := map[string]record{}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return users, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return users, nil
	}
	if err := json.Unmarshal(b, &users); err != nil {
		return nil, fmt.Errorf("parse users file: %w", err)
	}
	return users, nil
}

func (s *Store) write(users map[string]record) error {
	b, err := json.MarshalIndent(users, "", "    ")
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp users file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write users file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync users file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close users file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace users file: %w", err)
	}
	return nil
}
