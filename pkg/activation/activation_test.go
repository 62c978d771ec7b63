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

package activation

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tunctlErrors "github.com/tunctl/tunctl/pkg/errors"
	"github.com/tunctl/tunctl/pkg/model"
	"github.com/tunctl/tunctl/pkg/profile"
	"k8s.io/client-go/tools/clientcmd"
)

func testConfig() *profile.Config {
	return &profile.Config{
		Path: "/work/tunctl-profiles.yaml",
		Profiles: map[string]profile.Profile{
			"dev": {
				Kubeconfig: profile.LocalKubeconfig{Path: "kubeconfig.yaml"},
			},
		},
	}
}

func kubeconfigPointingAt(server string) string {
	return fmt.Sprintf(`apiVersion: v1
kind: Config
current-context: dev
clusters:
- cluster:
    server: %s
  name: dev-cluster
contexts:
- context:
    cluster: dev-cluster
    user: dev-user
  name: dev
users:
- name: dev-user
  user:
    token: secret
`, server)
}

func testConfigWithTunnel() *profile.Config {
	return &profile.Config{
		Path: "/work/tunctl-profiles.yaml",
		Profiles: map[string]profile.Profile{
			"prod": {
				Kubeconfig: profile.LocalKubeconfig{Path: "kubeconfig.yaml"},
				Tunnel:     &profile.SSHTunnel{User: "deploy", Host: "bastion.example.com"},
			},
		},
	}
}

// roundTripperFunc lets a test answer the API server probe directly
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestTunnelSpecBuilding(t *testing.T) {
	t.Setenv("TUNCTL_FOLDER", t.TempDir())

	m := NewManager(afero.NewMemMapFs(), testConfig())
	spec := m.TunnelSpec("dev", &profile.SSHTunnel{
		User:         "deploy",
		Host:         "bastion.example.com",
		IdentityFile: ".ssh/id_ed25519",
	}, model.Forwarding{Host: "10.0.0.5", Port: 6443})

	assert.Equal(t, model.Locator{ConfigFile: "/work/tunctl-profiles.yaml", Profile: "dev"}, spec.Locator)
	assert.Equal(t, "deploy@bastion.example.com", spec.Proxy())
	// Identity files are resolved relative to the profile configuration file
	assert.Equal(t, "/work/.ssh/id_ed25519", spec.IdentityFile)
	assert.Equal(t, map[string]model.Forwarding{
		ForwardingAlias: {Host: "10.0.0.5", Port: 6443},
	}, spec.Forwardings)
}

func TestActivateWithoutTunnel(t *testing.T) {
	t.Setenv("TUNCTL_FOLDER", t.TempDir())

	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}))
	defer ts.Close()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/kubeconfig.yaml", []byte(kubeconfigPointingAt(ts.URL)), 0600))

	m := NewManager(fs, testConfig())
	activated, err := m.Activate(context.Background(), "dev")
	require.NoError(t, err)
	require.Nil(t, activated.Tunnel)

	b, err := afero.ReadFile(fs, activated.Kubeconfig)
	require.NoError(t, err)
	cfg, err := clientcmd.Load(b)
	require.NoError(t, err)
	assert.Equal(t, ts.URL, cfg.Clusters["dev-cluster"].Server)
}

func TestActivateWithTunnel(t *testing.T) {
	t.Setenv("TUNCTL_FOLDER", t.TempDir())

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/kubeconfig.yaml", []byte(kubeconfigPointingAt("https://10.0.0.5:6443")), 0600))

	m := NewManager(fs, testConfigWithTunnel())

	pid := 4242
	alive := map[int]bool{}
	spawned := 0
	m.Tunnels.Spawn = func(spec *model.TunnelSpec, ports map[string]int) (int, error) {
		spawned++
		pid++
		alive[pid] = true
		return pid, nil
	}
	m.Tunnels.IsRunning = func(p int) bool { return alive[p] }
	m.Tunnels.Terminate = func(p int) error {
		delete(alive, p)
		return nil
	}

	var probed string
	m.client = &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		probed = r.URL.String()
		return &http.Response{StatusCode: http.StatusUnauthorized, Body: http.NoBody}, nil
	})}

	activated, err := m.Activate(context.Background(), "prod")
	require.NoError(t, err)
	require.NotNil(t, activated.Tunnel)
	assert.Equal(t, model.TunnelOpen, activated.Tunnel.Status)
	assert.Equal(t, 1, spawned)

	port := activated.Tunnel.LocalPorts[ForwardingAlias]
	require.NotZero(t, port)
	assert.Equal(t, fmt.Sprintf("https://localhost:%d", port), probed)

	b, err := afero.ReadFile(fs, activated.Kubeconfig)
	require.NoError(t, err)
	cfg, err := clientcmd.Load(b)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("https://localhost:%d", port), cfg.Clusters["dev-cluster"].Server)

	// Activating again reuses the live tunnel instead of respawning
	again, err := m.Activate(context.Background(), "prod")
	require.NoError(t, err)
	require.NotNil(t, again.Tunnel)
	assert.Equal(t, activated.Tunnel.ID, again.Tunnel.ID)
	assert.Equal(t, 1, spawned)
}

func TestProbeGrace(t *testing.T) {
	tests := []struct {
		name       string
		wasOpen    bool
		previousID string
		currentID  string
		expected   time.Duration
	}{
		{name: "first open", wasOpen: false, previousID: "", currentID: "tun-1", expected: restartedGrace},
		{name: "reused live tunnel", wasOpen: true, previousID: "tun-1", currentID: "tun-1", expected: reusedGrace},
		{name: "replaced on drift", wasOpen: true, previousID: "tun-1", currentID: "tun-2", expected: restartedGrace},
		{name: "reopened after broken", wasOpen: false, previousID: "tun-1", currentID: "tun-2", expected: restartedGrace},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, probeGrace(tt.wasOpen, tt.previousID, tt.currentID))
		})
	}
}

func TestActivateUnknownProfile(t *testing.T) {
	t.Setenv("TUNCTL_FOLDER", t.TempDir())

	m := NewManager(afero.NewMemMapFs(), testConfig())
	_, err := m.Activate(context.Background(), "ghost")
	assert.ErrorIs(t, err, tunctlErrors.ErrProfileNotFound)
}

func TestWaitForAPIServerUnreachable(t *testing.T) {
	t.Setenv("TUNCTL_FOLDER", t.TempDir())

	m := NewManager(afero.NewMemMapFs(), testConfig())
	err := m.waitForAPIServer(context.Background(), "https://127.0.0.1:1", probeInterval)
	require.Error(t, err)
	assert.ErrorIs(t, err, tunctlErrors.ErrAPIServerNotReady)

	var uErr tunctlErrors.UserError
	assert.ErrorAs(t, err, &uErr)
}

func TestWaitForAPIServerHonorsContext(t *testing.T) {
	t.Setenv("TUNCTL_FOLDER", t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewManager(afero.NewMemMapFs(), testConfig())
	start := time.Now()
	err := m.waitForAPIServer(ctx, "https://127.0.0.1:1", restartedGrace)
	require.Error(t, err)
	assert.Less(t, time.Since(start), restartedGrace)
}
