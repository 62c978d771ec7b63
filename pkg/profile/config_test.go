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
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tunctlErrors "github.com/tunctl/tunctl/pkg/errors"
)

const sampleConfig = `
default:
  tunnel:
    user: deploy
    host: bastion.example.com
staging:
  kubeconfig:
    type: local
    path: kubeconfig.staging.yaml
`

func TestFindConfigFileWalksParents(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/work/project/sub", 0700))
	require.NoError(t, afero.WriteFile(fs, filepath.Join("/work", ConfigFileName), []byte(sampleConfig), 0600))

	path, err := FindConfigFile(fs, "/work/project/sub")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/work", ConfigFileName), path)
}

func TestFindConfigFilePrefersClosest(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/work/project", 0700))
	require.NoError(t, afero.WriteFile(fs, filepath.Join("/work", ConfigFileName), []byte(sampleConfig), 0600))
	require.NoError(t, afero.WriteFile(fs, filepath.Join("/work/project", ConfigFileName), []byte(sampleConfig), 0600))

	path, err := FindConfigFile(fs, "/work/project")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/work/project", ConfigFileName), path)
}

func TestFindConfigFileFallsBackToHome(t *testing.T) {
	t.Setenv("TUNCTL_HOME", "/home/me")

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/elsewhere", 0700))
	require.NoError(t, afero.WriteFile(fs, filepath.Join("/home/me", ".config", "tunctl", ConfigFileName), []byte(sampleConfig), 0600))

	path, err := FindConfigFile(fs, "/elsewhere")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/me", ".config", "tunctl", ConfigFileName), path)
}

func TestFindConfigFileMissing(t *testing.T) {
	t.Setenv("TUNCTL_HOME", "/home/me")

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/elsewhere", 0700))

	_, err := FindConfigFile(fs, "/elsewhere")
	require.Error(t, err)
	assert.ErrorIs(t, err, tunctlErrors.ErrNoProfileConfig)

	var uErr tunctlErrors.UserError
	assert.ErrorAs(t, err, &uErr)
}

func TestLoadConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.Join("/work", ConfigFileName)
	require.NoError(t, afero.WriteFile(fs, path, []byte(sampleConfig), 0600))

	cfg, err := Load(fs, path)
	require.NoError(t, err)
	assert.Len(t, cfg.Profiles, 2)

	p, err := cfg.Profile("default")
	require.NoError(t, err)
	require.NotNil(t, p.Tunnel)
	assert.Equal(t, "bastion.example.com", p.Tunnel.Host)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.Join("/work", ConfigFileName)
	require.NoError(t, afero.WriteFile(fs, path, []byte("default: ["), 0600))

	_, err := Load(fs, path)
	assert.ErrorContains(t, err, "invalid profile configuration")
}

func TestProfileNotFound(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.Join("/work", ConfigFileName)
	require.NoError(t, afero.WriteFile(fs, path, []byte(sampleConfig), 0600))

	cfg, err := Load(fs, path)
	require.NoError(t, err)

	_, err = cfg.Profile("ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, tunctlErrors.ErrProfileNotFound)
	assert.ErrorContains(t, err, "profile 'ghost' not found")
}
