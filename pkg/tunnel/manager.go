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

// Package tunnel manages the lifecycle of ssh tunnels across independent
// command invocations: idempotent open, liveness refresh, drift detection and
// termination, backed by a locked state file shared by all processes.
package tunnel

import (
	"context"
	"errors"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	tunctlErrors "github.com/tunctl/tunctl/pkg/errors"
	"github.com/tunctl/tunctl/pkg/log"
	"github.com/tunctl/tunctl/pkg/model"
	"github.com/tunctl/tunctl/pkg/process"
	"github.com/tunctl/tunctl/pkg/store"
)

const (
	stateFileName = "state.json"
	lockFileName  = ".lock"
)

// Manager owns the tunnel state store. A spawned tunnel process is owned by
// its persisted record, not by any in-process object: it deliberately outlives
// the invocation that created it
type Manager struct {
	store *store.Store

	// Spawn, IsRunning and Terminate drive the ssh subprocesses. They default
	// to the real implementations and can be replaced in tests
	Spawn     func(spec *model.TunnelSpec, ports map[string]int) (int, error)
	IsRunning func(pid int) bool
	Terminate func(pid int) error
}

// NewManager returns a manager whose state lives under stateDir
func NewManager(fs afero.Fs, stateDir string) *Manager {
	return &Manager{
		store:     store.New(fs, filepath.Join(stateDir, stateFileName), filepath.Join(stateDir, lockFileName)),
		Spawn:     spawnSSH,
		IsRunning: process.IsRunning,
		Terminate: process.Terminate,
	}
}

// newUnlockedManager is used by tests to run the state machine on an in-memory
// filesystem without a lock file or a real ssh binary
func newUnlockedManager(fs afero.Fs, stateDir string) *Manager {
	return &Manager{
		store:     store.New(fs, filepath.Join(stateDir, stateFileName), ""),
		Spawn:     spawnSSH,
		IsRunning: process.IsRunning,
		Terminate: process.Terminate,
	}
}

// Begin opens a locked session against the state store. Every read and write
// of tunnel state happens inside exactly one session
func (m *Manager) Begin(ctx context.Context) (*Session, error) {
	kv, err := m.store.Begin(ctx)
	if err != nil {
		return nil, err
	}

	return &Session{m: m, records: recordStore{kv: kv}}, nil
}

// Session is a locked view of the tunnel state. Sessions must be ended to
// flush state and release the lock
type Session struct {
	m       *Manager
	records recordStore
}

// End flushes the state file and releases the lock
func (s *Session) End() error {
	return s.records.kv.Close()
}

// Tunnels returns all records, each refreshed and persisted first. Every
// listing is potentially a write because the refresh can change the recorded
// status
func (s *Session) Tunnels() ([]Record, error) {
	keys, err := s.records.keys()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	tunnels := make([]Record, 0, len(keys))
	for _, key := range keys {
		rec, err := s.records.get(key)
		if err != nil {
			return nil, err
		}

		s.refresh(&rec.Status)
		if err := s.records.set(key, rec); err != nil {
			return nil, err
		}

		tunnels = append(tunnels, rec)
	}

	return tunnels, nil
}

// Tunnel returns the refreshed record for a locator, or nil if none exists
func (s *Session) Tunnel(locator model.Locator) (*Record, error) {
	rec, err := s.records.get(locator.String())
	if err != nil {
		if errors.Is(err, tunctlErrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	s.refresh(&rec.Status)
	if err := s.records.set(locator.String(), rec); err != nil {
		return nil, err
	}

	return &rec, nil
}

// Open ensures a tunnel matching spec is running. Requesting a tunnel that is
// already open with an unchanged spec is a no-op. A broken, closed or drifted
// tunnel is replaced: the prior process (if any) is terminated first and a new
// one spawned under a fresh id
func (s *Session) Open(spec model.TunnelSpec) (model.TunnelStatus, error) {
	key := spec.Locator.String()
	specHash := spec.Hash()

	existing, err := s.records.get(key)
	found := true
	if err != nil {
		if !errors.Is(err, tunctlErrors.ErrNotFound) {
			return model.TunnelStatus{}, err
		}
		found = false
	}

	// The persisted status may be stale: the process can have died since the
	// last refresh, and a dead tunnel must never satisfy the idempotency check
	if found {
		s.refresh(&existing.Status)
	}

	if found && existing.Status.Status == model.TunnelOpen && existing.Status.SpecHash == specHash {
		log.Debugf("tunnel for '%s' is already open", spec.Locator)
		return existing.Status, nil
	}

	if found {
		s.shutdown(&existing.Status)
	}

	status := model.TunnelStatus{
		ID:         model.NewTunnelID(),
		Status:     model.TunnelClosed,
		LocalPorts: map[string]int{},
		SpecHash:   specHash,
	}

	// Provisional checkpoint: a crash mid-open leaves an inspectable record
	if err := s.records.set(key, Record{Spec: spec, Status: status}); err != nil {
		return status, err
	}

	ports := make(map[string]int, len(spec.Forwardings))
	for alias := range spec.Forwardings {
		ports[alias] = model.AllocateLocalPort()
	}

	pid, err := s.m.Spawn(&spec, ports)
	if err != nil {
		return status, err
	}

	status.Status = model.TunnelOpen
	status.SSHPid = pid
	status.LocalPorts = ports

	if err := s.records.set(key, Record{Spec: spec, Status: status}); err != nil {
		return status, err
	}

	return status, nil
}

// Close terminates the tunnel for a locator. It always ends in closed, even
// if nothing was open; an unknown locator yields a synthetic empty closed
// status rather than an error
func (s *Session) Close(locator model.Locator) (model.TunnelStatus, error) {
	key := locator.String()

	rec, err := s.records.get(key)
	if err != nil {
		if errors.Is(err, tunctlErrors.ErrNotFound) {
			log.Infof("no tunnel found for '%s'", locator)
			return model.EmptyTunnelStatus(), nil
		}
		return model.TunnelStatus{}, err
	}

	s.refresh(&rec.Status)
	if rec.Status.Status == model.TunnelOpen {
		log.Debugf("closing tunnel for '%s'", locator)
	} else {
		log.Debugf("tunnel for '%s' is already closed", locator)
	}

	s.shutdown(&rec.Status)
	if err := s.records.set(key, rec); err != nil {
		return rec.Status, err
	}

	return rec.Status, nil
}

// refresh probes the recorded process. A record whose process is gone is
// reclassified as broken; its ports remain recorded for display until the
// next open or close
func (s *Session) refresh(status *model.TunnelStatus) {
	if status.SSHPid == 0 {
		return
	}

	if s.m.IsRunning(status.SSHPid) {
		status.Status = model.TunnelOpen
		return
	}

	status.Status = model.TunnelBroken
	status.SSHPid = 0
}

// shutdown terminates the recorded process, treating an already-dead process
// as terminated, and transitions the status to closed
func (s *Session) shutdown(status *model.TunnelStatus) {
	if status.SSHPid != 0 {
		if err := s.m.Terminate(status.SSHPid); err != nil {
			log.Infof("error terminating ssh process %d: %s", status.SSHPid, err)
		}
	}

	status.Status = model.TunnelClosed
	status.SSHPid = 0
	status.LocalPorts = map[string]int{}
}
