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

package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestUnmarshalProfileWithSSHKubeconfig(t *testing.T) {
	content := `
kubeconfig:
  type: ssh
  user: root
  host: cluster.example.com
  path: /etc/rancher/k3s/k3s.yaml
  context: k3s
tunnel:
  user: deploy
  host: bastion.example.com
  identity_file: .ssh/id_ed25519
`
	var p Profile
	require.NoError(t, yaml.Unmarshal([]byte(content), &p))

	source, ok := p.Kubeconfig.(SSHKubeconfig)
	require.True(t, ok, "expected an SSHKubeconfig source")
	assert.Equal(t, "root", source.User)
	assert.Equal(t, "cluster.example.com", source.Host)
	assert.Equal(t, "/etc/rancher/k3s/k3s.yaml", source.Path)
	assert.Equal(t, "k3s", source.Context)

	require.NotNil(t, p.Tunnel)
	assert.Equal(t, "deploy", p.Tunnel.User)
	assert.Equal(t, "bastion.example.com", p.Tunnel.Host)
	assert.Equal(t, ".ssh/id_ed25519", p.Tunnel.IdentityFile)
}

func TestUnmarshalProfileWithLocalKubeconfig(t *testing.T) {
	content := `
kubeconfig:
  type: local
  path: kubeconfig.yaml
  context: dev
`
	var p Profile
	require.NoError(t, yaml.Unmarshal([]byte(content), &p))

	source, ok := p.Kubeconfig.(LocalKubeconfig)
	require.True(t, ok, "expected a LocalKubeconfig source")
	assert.Equal(t, "kubeconfig.yaml", source.Path)
	assert.Equal(t, "dev", source.Context)
	assert.Nil(t, p.Tunnel)
}

func TestUnmarshalProfileDefaultsToLocal(t *testing.T) {
	var p Profile
	require.NoError(t, yaml.Unmarshal([]byte(`tunnel: {user: deploy, host: bastion}`), &p))

	assert.Equal(t, LocalKubeconfig{}, p.Kubeconfig)
	require.NotNil(t, p.Tunnel)
}

func TestUnmarshalProfileRejectsUnknownKubeconfigType(t *testing.T) {
	var p Profile
	err := yaml.Unmarshal([]byte("kubeconfig:\n  type: gcs\n"), &p)
	assert.ErrorContains(t, err, "unsupported kubeconfig type 'gcs'")
}
