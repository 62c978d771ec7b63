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

package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tunctlErrors "github.com/tunctl/tunctl/pkg/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(afero.NewMemMapFs(), filepath.Join("state", "state.json"), "")
}

func TestGetMissingKey(t *testing.T) {
	s := newTestStore(t)
	session, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer session.Close()

	_, err = session.Get("nope")
	assert.ErrorIs(t, err, tunctlErrors.ErrNotFound)
}

func TestSetGetDelete(t *testing.T) {
	s := newTestStore(t)
	session, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.Set("a", json.RawMessage(`{"x":1}`)))
	require.NoError(t, session.Set("b", json.RawMessage(`"two"`)))

	v, err := session.Get("a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(v))

	keys, err := session.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	require.NoError(t, session.Delete("a"))
	_, err = session.Get("a")
	assert.ErrorIs(t, err, tunctlErrors.ErrNotFound)
}

func TestDurabilityAcrossSessions(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.Join("state", "state.json")

	s := New(fs, path, "")
	session, err := s.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, session.Set("key", json.RawMessage(`{"host":"example.com","port":22}`)))
	require.NoError(t, session.Close())

	// A new store on the same file simulates a new process
	s2 := New(fs, path, "")
	session2, err := s2.Begin(context.Background())
	require.NoError(t, err)
	defer session2.Close()

	v, err := session2.Get("key")
	require.NoError(t, err)
	assert.JSONEq(t, `{"host":"example.com","port":22}`, string(v))
}

func TestSessionDiscardsCacheOnClose(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.Join("state", "state.json")
	s := New(fs, path, "")

	session, err := s.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, session.Set("key", json.RawMessage(`1`)))
	require.NoError(t, session.Close())

	// Another process writes the file between our sessions
	require.NoError(t, afero.WriteFile(fs, path, []byte(`{"key":2}`), 0600))

	session, err = s.Begin(context.Background())
	require.NoError(t, err)
	defer session.Close()

	v, err := session.Get("key")
	require.NoError(t, err)
	assert.Equal(t, `2`, string(v))
}

func TestNoopSessionDoesNotClobberFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.Join("state", "state.json")
	require.NoError(t, fs.MkdirAll("state", 0700))
	require.NoError(t, afero.WriteFile(fs, path, []byte(`{"key":1}`), 0600))

	s := New(fs, path, "")
	session, err := s.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, session.Close())

	b, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":1}`, string(b))
}

func TestMalformedStateFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.Join("state", "state.json")
	require.NoError(t, fs.MkdirAll("state", 0700))
	require.NoError(t, afero.WriteFile(fs, path, []byte(`not json`), 0600))

	s := New(fs, path, "")
	session, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer session.Close()

	_, err = session.Get("key")
	assert.ErrorContains(t, err, "malformed state file")
}

func TestLockContention(t *testing.T) {
	dir := t.TempDir()
	fs := afero.NewOsFs()
	path := filepath.Join(dir, "state.json")
	lockPath := filepath.Join(dir, ".lock")

	s := New(fs, path, lockPath)
	session, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer session.Close()

	// A second session on the same lock cannot make progress. The cancelled
	// context stands in for the bounded wait so the test doesn't take 5s
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	other := New(fs, path, lockPath)
	_, err = other.Begin(ctx)
	assert.ErrorIs(t, err, tunctlErrors.ErrLockTimeout)
}

func TestLockFailureIsNotReportedAsTimeout(t *testing.T) {
	dir := t.TempDir()
	fs := afero.NewOsFs()

	// A lock file that can never be opened fails immediately; that failure
	// must surface verbatim instead of masquerading as a timeout
	s := New(fs, filepath.Join(dir, "state.json"), filepath.Join(dir, "bad\x00name"))
	_, err := s.Begin(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, tunctlErrors.ErrLockTimeout)
}

func TestLockReleasedOnClose(t *testing.T) {
	dir := t.TempDir()
	fs := afero.NewOsFs()
	path := filepath.Join(dir, "state.json")
	lockPath := filepath.Join(dir, ".lock")

	s := New(fs, path, lockPath)
	session, err := s.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, session.Set("key", json.RawMessage(`true`)))
	require.NoError(t, session.Close())

	other := New(fs, path, lockPath)
	session2, err := other.Begin(context.Background())
	require.NoError(t, err)
	defer session2.Close()

	v, err := session2.Get("key")
	require.NoError(t, err)
	assert.Equal(t, `true`, string(v))
}
