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

package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	// TunnelOpen means the ssh process was alive at the last refresh
	TunnelOpen = "open"
	// TunnelBroken means the recorded ssh process no longer exists
	TunnelBroken = "broken"
	// TunnelClosed means the tunnel was explicitly closed
	TunnelClosed = "closed"
)

// Local port range for forwardings. Allocation is an optimistic random draw
// with no pre-bind probe; a collision with an already-bound port surfaces as a
// broken tunnel on the next refresh
const (
	minLocalPort = 10000
	maxLocalPort = 20000
)

// Locator identifies one intended tunneled connection: the profile
// configuration file it was declared in and the profile alias
type Locator struct {
	ConfigFile string `json:"config_file"`
	Profile    string `json:"profile"`
}

// String renders the locator as the state file key
func (l Locator) String() string {
	return fmt.Sprintf("%s:%s", l.ConfigFile, l.Profile)
}

// Forwarding is one aliased host:port reachable through a tunnel once it is open
type Forwarding struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// TunnelSpec defines an ssh tunnel that is to be opened. It is an immutable
// value compared by content, never by identity
type TunnelSpec struct {
	Locator      Locator               `json:"locator"`
	Forwardings  map[string]Forwarding `json:"forwardings"`
	User         string                `json:"user"`
	Host         string                `json:"host"`
	IdentityFile string                `json:"identity_file,omitempty"`
}

// Hash returns a deterministic digest of the spec's content. Forwarding
// aliases are sorted so the digest is independent of map iteration order
func (s *TunnelSpec) Hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "locator=%s\n", s.Locator)
	fmt.Fprintf(h, "user=%s\n", s.User)
	fmt.Fprintf(h, "host=%s\n", s.Host)
	fmt.Fprintf(h, "identity_file=%s\n", s.IdentityFile)

	aliases := make([]string, 0, len(s.Forwardings))
	for alias := range s.Forwardings {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		f := s.Forwardings[alias]
		fmt.Fprintf(h, "forward %s=%s:%d\n", alias, f.Host, f.Port)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Proxy renders the ssh endpoint the tunnel goes through
func (s *TunnelSpec) Proxy() string {
	return fmt.Sprintf("%s@%s", s.User, s.Host)
}

// TunnelStatus represents the current status of a tunnel
type TunnelStatus struct {
	// ID is an opaque unique string assigned when the tunnel is opened
	ID string `json:"id"`

	// Status is one of open, broken or closed
	Status string `json:"status"`

	// SSHPid is the process id of the ssh tunnel, 0 when no process is recorded
	SSHPid int `json:"ssh_pid,omitempty"`

	// LocalPorts maps forwarding alias to the allocated local port. Only
	// populated while the tunnel is open
	LocalPorts map[string]int `json:"local_ports"`

	// SpecHash is the digest of the last TunnelSpec applied, used to detect
	// configuration drift
	SpecHash string `json:"spec_hash"`
}

// EmptyTunnelStatus returns the synthetic closed status used when no record
// exists for a locator
func EmptyTunnelStatus() TunnelStatus {
	return TunnelStatus{
		Status:     TunnelClosed,
		LocalPorts: map[string]int{},
	}
}

// NewTunnelID generates a new unique tunnel ID
func NewTunnelID() string {
	return fmt.Sprintf("tun-%s", strings.Split(uuid.NewString(), "-")[0])
}

// AllocateLocalPort draws a local port for a forwarding
func AllocateLocalPort() int {
	return minLocalPort + rand.Intn(maxLocalPort-minLocalPort)
}
