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

// Package activation turns a connection profile into a usable kubeconfig:
// it opens the profile's ssh tunnel if one is declared, rewrites the
// kubeconfig to route through it and waits for the API server to answer.
package activation

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/tunctl/tunctl/pkg/config"
	tunctlErrors "github.com/tunctl/tunctl/pkg/errors"
	"github.com/tunctl/tunctl/pkg/kubeconfig"
	"github.com/tunctl/tunctl/pkg/log"
	"github.com/tunctl/tunctl/pkg/model"
	"github.com/tunctl/tunctl/pkg/profile"
	"github.com/tunctl/tunctl/pkg/tunnel"
)

// ForwardingAlias names the single forwarding every profile tunnel carries:
// the cluster API server
const ForwardingAlias = "kubernetes"

const (
	// grace period for the API server probe when the tunnel was just
	// (re)started vs. reused or not tunneled at all
	restartedGrace = 30 * time.Second
	reusedGrace    = 2 * time.Second

	probeInterval = 1 * time.Second
	probeTimeout  = 2 * time.Second
)

// Activated is the result of activating a profile
type Activated struct {
	// Kubeconfig is the path of the kubeconfig to use for this profile
	Kubeconfig string

	// Tunnel is the status of the profile's tunnel, nil when the profile
	// doesn't declare one
	Tunnel *model.TunnelStatus
}

// Manager combines the profile configuration, the tunnel manager and the
// kubeconfig manager into the single entry point commands use
type Manager struct {
	Config  *profile.Config
	Tunnels *tunnel.Manager

	kube   *kubeconfig.Manager
	client *http.Client
}

// Load discovers the profile configuration starting at cwd and wires up the
// managers around it
func Load(fs afero.Fs, cwd string) (*Manager, error) {
	cfg, err := profile.Discover(fs, cwd)
	if err != nil {
		return nil, err
	}

	return NewManager(fs, cfg), nil
}

// NewManager wires up the managers for an already-loaded configuration
func NewManager(fs afero.Fs, cfg *profile.Config) *Manager {
	return &Manager{
		Config:  cfg,
		Tunnels: tunnel.NewManager(fs, config.GetStateDir()),
		kube:    kubeconfig.NewManager(fs, filepath.Dir(cfg.Path), config.GetProfilesStateDir()),
		client: &http.Client{
			Timeout: probeTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

// TunnelSpec builds the tunnel spec for a profile, forwarding the cluster API
// server through the profile's declared ssh endpoint
func (m *Manager) TunnelSpec(profileName string, t *profile.SSHTunnel, target model.Forwarding) model.TunnelSpec {
	identity := t.IdentityFile
	if identity != "" && !filepath.IsAbs(identity) {
		identity = filepath.Join(filepath.Dir(m.Config.Path), identity)
	}

	return model.TunnelSpec{
		Locator: model.Locator{
			ConfigFile: m.Config.Path,
			Profile:    profileName,
		},
		Forwardings:  map[string]model.Forwarding{ForwardingAlias: target},
		User:         t.User,
		Host:         t.Host,
		IdentityFile: identity,
	}
}

// OpenTunnel opens the tunnel for a profile without touching its kubeconfig.
// The forwarding target is the API endpoint the profile's kubeconfig points at
func (m *Manager) OpenTunnel(ctx context.Context, profileName string, p profile.Profile) (model.TunnelStatus, error) {
	raw, err := m.kube.Raw(profileName, p.Kubeconfig, false)
	if err != nil {
		return model.TunnelStatus{}, err
	}

	spec := m.TunnelSpec(profileName, p.Tunnel, model.Forwarding{Host: raw.APIHost, Port: raw.APIPort})

	session, err := m.Tunnels.Begin(ctx)
	if err != nil {
		return model.TunnelStatus{}, err
	}

	status, err := session.Open(spec)
	if err != nil {
		_ = session.End()
		return status, err
	}

	return status, session.End()
}

// Activate ensures the kubeconfig and tunnel (if any) for the profile are
// available and returns the kubeconfig routed through the tunnel
func (m *Manager) Activate(ctx context.Context, profileName string) (*Activated, error) {
	p, err := m.Config.Profile(profileName)
	if err != nil {
		return nil, err
	}

	raw, err := m.kube.Raw(profileName, p.Kubeconfig, false)
	if err != nil {
		return nil, err
	}

	host := raw.APIHost
	port := raw.APIPort
	grace := reusedGrace
	description := ""

	var status *model.TunnelStatus
	if p.Tunnel != nil {
		spec := m.TunnelSpec(profileName, p.Tunnel, model.Forwarding{Host: raw.APIHost, Port: raw.APIPort})

		session, err := m.Tunnels.Begin(ctx)
		if err != nil {
			return nil, err
		}

		existing, err := session.Tunnel(spec.Locator)
		if err != nil {
			_ = session.End()
			return nil, err
		}
		wasOpen := existing != nil && existing.Status.Status == model.TunnelOpen
		existingID := ""
		if existing != nil {
			existingID = existing.Status.ID
		}

		st, err := session.Open(spec)
		if err != nil {
			_ = session.End()
			return nil, err
		}
		if err := session.End(); err != nil {
			return nil, err
		}

		host = "localhost"
		port = st.LocalPorts[ForwardingAlias]
		status = &st
		description = fmt.Sprintf(" → %s → %s:%d", spec.Proxy(), raw.APIHost, raw.APIPort)
		grace = probeGrace(wasOpen, existingID, st.ID)
	}

	apiServer := fmt.Sprintf("https://%s:%d", host, port)
	log.Infof("checking for API server connectivity (%s%s)", apiServer, description)
	if err := m.waitForAPIServer(ctx, apiServer, grace); err != nil {
		return nil, err
	}

	path, err := m.kube.Rewrite(profileName, raw, host, port)
	if err != nil {
		return nil, err
	}

	return &Activated{Kubeconfig: path, Tunnel: status}, nil
}

// probeGrace returns how long the API server probe may take. A tunnel that was
// just spawned or replaced needs time to connect; a reused live tunnel and a
// direct connection answer almost immediately
func probeGrace(wasOpen bool, previousID, currentID string) time.Duration {
	if !wasOpen || previousID != currentID {
		return restartedGrace
	}
	return reusedGrace
}

// waitForAPIServer probes the API server over https until it answers or the
// grace period is exhausted. Any HTTP response counts as reachable, including
// an authentication error
func (m *Manager) waitForAPIServer(ctx context.Context, apiServer string, grace time.Duration) error {
	attempts := int(grace / probeInterval)
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(probeInterval):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiServer, nil)
		if err != nil {
			return err
		}

		resp, err := m.client.Do(req)
		if err == nil {
			resp.Body.Close()
			return nil
		}

		log.Debugf("API server %s not ready: %s", apiServer, err)
		lastErr = err
	}

	return tunctlErrors.UserError{
		E:    fmt.Errorf("%w at %s: %v", tunctlErrors.ErrAPIServerNotReady, apiServer, lastErr),
		Hint: "Check that the remote API server is up and your tunnel configuration points at the right host",
	}
}
