// Copyright 2025 The Tunctl Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store implements a file-backed key-value store holding a single
// JSON document, guarded by an advisory file lock shared across processes.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	tunctlErrors "github.com/tunctl/tunctl/pkg/errors"
	"github.com/tunctl/tunctl/pkg/log"
)

const (
	lockTimeout       = 5 * time.Second
	lockRetryInterval = 100 * time.Millisecond
)

// Store points at the JSON document and its companion lock file. It holds no
// data itself: all reads and writes happen through a Session
type Store struct {
	fs       afero.Fs
	path     string
	lockPath string
}

// New returns a store backed by the JSON document at path. If lockPath is
// empty the store is not guarded against concurrent processes
func New(fs afero.Fs, path, lockPath string) *Store {
	return &Store{
		fs:       fs,
		path:     path,
		lockPath: lockPath,
	}
}

// Begin acquires the store lock, blocking up to a bounded timeout, and returns
// a session. Data is loaded lazily on first access inside the session and the
// cached copy is discarded when the session is closed, so every new session
// re-reads the document from disk
func (s *Store) Begin(ctx context.Context) (*Session, error) {
	var fl *flock.Flock
	if s.lockPath != "" {
		if err := os.MkdirAll(filepath.Dir(s.lockPath), 0700); err != nil {
			return nil, err
		}

		fl = flock.New(s.lockPath)
		lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
		defer cancel()

		locked, err := fl.TryLockContext(lockCtx, lockRetryInterval)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				log.Debugf("gave up locking %s: %v", s.lockPath, err)
				return nil, fmt.Errorf("%w after %s: %s", tunctlErrors.ErrLockTimeout, lockTimeout, s.lockPath)
			}
			return nil, err
		}
		if !locked {
			return nil, fmt.Errorf("%w after %s: %s", tunctlErrors.ErrLockTimeout, lockTimeout, s.lockPath)
		}
	}

	return &Session{store: s, lock: fl}, nil
}

// Session is a locked view of the store. It is not safe for concurrent use
// within a process; cross-process exclusion is what the lock provides
type Session struct {
	store  *Store
	lock   *flock.Flock
	data   map[string]json.RawMessage
	loaded bool
}

func (sn *Session) load() error {
	if sn.loaded {
		return nil
	}

	sn.data = map[string]json.RawMessage{}
	exists, err := afero.Exists(sn.store.fs, sn.store.path)
	if err != nil {
		return err
	}

	if exists {
		b, err := afero.ReadFile(sn.store.fs, sn.store.path)
		if err != nil {
			return err
		}
		if len(b) > 0 {
			if err := json.Unmarshal(b, &sn.data); err != nil {
				return fmt.Errorf("malformed state file %s: %w", sn.store.path, err)
			}
		}
	}

	sn.loaded = true
	return nil
}

func (sn *Session) save() error {
	b, err := json.Marshal(sn.data)
	if err != nil {
		return err
	}

	if err := sn.store.fs.MkdirAll(filepath.Dir(sn.store.path), 0700); err != nil {
		return err
	}

	return afero.WriteFile(sn.store.fs, sn.store.path, b, 0600)
}

// Get returns the value for key, or ErrNotFound if absent
func (sn *Session) Get(key string) (json.RawMessage, error) {
	if err := sn.load(); err != nil {
		return nil, err
	}

	v, ok := sn.data[key]
	if !ok {
		return nil, fmt.Errorf("key '%s': %w", key, tunctlErrors.ErrNotFound)
	}

	return v, nil
}

// Set saves a value for key
func (sn *Session) Set(key string, value json.RawMessage) error {
	if err := sn.load(); err != nil {
		return err
	}

	sn.data[key] = value
	return nil
}

// Delete removes key from the store
func (sn *Session) Delete(key string) error {
	if err := sn.load(); err != nil {
		return err
	}

	delete(sn.data, key)
	return nil
}

// Keys lists all keys. Order is not significant
func (sn *Session) Keys() ([]string, error) {
	if err := sn.load(); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(sn.data))
	for k := range sn.data {
		keys = append(keys, k)
	}

	return keys, nil
}

// Close flushes the document to disk, releases the lock and discards the
// cached data
func (sn *Session) Close() error {
	var saveErr error
	if sn.loaded {
		saveErr = sn.save()
	}

	if sn.lock != nil {
		if err := sn.lock.Unlock(); err != nil && saveErr == nil {
			saveErr = err
		}
	}

	sn.data = nil
	sn.loaded = false
	return saveErr
}
