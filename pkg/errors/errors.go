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

package errors

import (
	"errors"
	"fmt"
)

// UserError is meant for errors displayed to the user. It can include a message and a hint
type UserError struct {
	E    error
	Hint string
}

// Error returns the error message
func (u UserError) Error() string {
	return u.E.Error()
}

func (u UserError) Unwrap() error {
	return u.E
}

// ProfileNotFoundError is raised when the requested profile is not declared in
// the profile configuration file
type ProfileNotFoundError struct {
	Profile    string
	ConfigFile string
}

// Error returns the error message
func (e ProfileNotFoundError) Error() string {
	return fmt.Sprintf("profile '%s' not found in '%s'", e.Profile, e.ConfigFile)
}

func (ProfileNotFoundError) Unwrap() error {
	return ErrProfileNotFound
}

var (
	// ErrNotFound is raised when an object is not found
	ErrNotFound = errors.New("not found")

	// ErrLockTimeout is raised when the state file lock cannot be acquired in time
	ErrLockTimeout = errors.New("timed out waiting for the state file lock")

	// ErrProfileNotFound is raised when the requested profile is not declared
	ErrProfileNotFound = errors.New("profile not found")

	// ErrNoProfileConfig is raised when no profile configuration file can be located
	ErrNoProfileConfig = errors.New("no profile configuration file found")

	// ErrNoTunnelConfig is raised when a tunnel operation targets a profile without a tunnel section
	ErrNoTunnelConfig = errors.New("profile does not have a tunnel configuration")

	// ErrAPIServerNotReady is raised when the cluster API server doesn't answer within the grace period
	ErrAPIServerNotReady = errors.New("kubernetes API server is not responding")
)
