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

// Package kubeconfig resolves the kubeconfig for a profile, whether it lives
// on disk or on a remote host, and rewrites it to route through a tunnel.
package kubeconfig

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/tunctl/tunctl/pkg/config"
	"github.com/tunctl/tunctl/pkg/log"
	"github.com/tunctl/tunctl/pkg/profile"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
)

const (
	rawFileName     = "kubeconfig.orig"
	tunnelsFileName = "kubeconfig.local"
)

// Raw describes a profile's kubeconfig before any rewriting: where it is and
// which API endpoint its selected context points at
type Raw struct {
	Path    string
	Context string
	APIHost string
	APIPort int
}

// Manager caches per-profile kubeconfigs under its state directory
type Manager struct {
	fs       afero.Fs
	cwd      string
	stateDir string

	fetch func(user, host, identityFile, path string) ([]byte, error)
}

// NewManager returns a manager resolving relative paths against cwd and
// caching fetched kubeconfigs under stateDir
func NewManager(fs afero.Fs, cwd, stateDir string) *Manager {
	return &Manager{
		fs:       fs,
		cwd:      cwd,
		stateDir: stateDir,
		fetch:    fetchOverSSH,
	}
}

// Raw resolves the kubeconfig for a profile. A local source is used in place;
// an ssh source is fetched once and cached until forceRefresh
func (m *Manager) Raw(profileName string, source profile.KubeconfigSource, forceRefresh bool) (*Raw, error) {
	var path, context string

	switch src := source.(type) {
	case profile.LocalKubeconfig:
		path = m.localKubeconfigPath(src)
		context = src.Context
		if ok, _ := afero.Exists(m.fs, path); !ok {
			return nil, fmt.Errorf("kubeconfig file '%s' does not exist", path)
		}
		log.Debugf("using local kubeconfig file '%s'", path)

	case profile.SSHKubeconfig:
		path = filepath.Join(m.stateDir, profileName, rawFileName)
		context = src.Context

		exists, _ := afero.Exists(m.fs, path)
		if !exists || forceRefresh {
			log.Infof("fetching kubeconfig via ssh (%s@%s:%s)", src.User, src.Host, src.Path)
			identity := src.IdentityFile
			if identity != "" && !filepath.IsAbs(identity) {
				identity = filepath.Join(m.cwd, identity)
			}

			content, err := m.fetch(src.User, src.Host, identity, src.Path)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to fetch kubeconfig from %s@%s", src.User, src.Host)
			}

			if err := m.fs.MkdirAll(filepath.Dir(path), 0700); err != nil {
				return nil, err
			}
			if err := afero.WriteFile(m.fs, path, content, 0600); err != nil {
				return nil, err
			}
		} else {
			log.Debugf("reusing cached kubeconfig at '%s'", path)
		}

	default:
		return nil, fmt.Errorf("unsupported kubeconfig source %T", source)
	}

	cfg, err := m.loadTrimmed(path, context)
	if err != nil {
		return nil, err
	}

	cluster := cfg.Clusters[cfg.Contexts[cfg.CurrentContext].Cluster]
	host, port, err := parseServer(cluster.Server)
	if err != nil {
		return nil, err
	}

	return &Raw{
		Path:    path,
		Context: cfg.CurrentContext,
		APIHost: host,
		APIPort: port,
	}, nil
}

// Rewrite points the kubeconfig's server at host:port and writes the result
// next to the profile's cached state, returning the new path
func (m *Manager) Rewrite(profileName string, raw *Raw, host string, port int) (string, error) {
	cfg, err := m.loadTrimmed(raw.Path, raw.Context)
	if err != nil {
		return "", err
	}

	cluster := cfg.Clusters[cfg.Contexts[cfg.CurrentContext].Cluster]
	cluster.Server = fmt.Sprintf("https://%s:%d", host, port)

	out, err := clientcmd.Write(*cfg)
	if err != nil {
		return "", err
	}

	path := filepath.Join(m.stateDir, profileName, tunnelsFileName)
	if err := m.fs.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", err
	}
	if err := afero.WriteFile(m.fs, path, out, 0600); err != nil {
		return "", err
	}

	return path, nil
}

func (m *Manager) localKubeconfigPath(src profile.LocalKubeconfig) string {
	if src.Path != "" {
		if filepath.IsAbs(src.Path) {
			return src.Path
		}
		return filepath.Join(m.cwd, src.Path)
	}

	if v := os.Getenv("KUBECONFIG"); v != "" {
		return v
	}

	return filepath.Join(config.GetUserHomeDir(), ".kube", "config")
}

// loadTrimmed loads a kubeconfig and trims it down to a single context. With
// an empty context the current context is kept
func (m *Manager) loadTrimmed(path, context string) (*clientcmdapi.Config, error) {
	b, err := afero.ReadFile(m.fs, path)
	if err != nil {
		return nil, err
	}

	cfg, err := clientcmd.Load(b)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid kubeconfig %s", path)
	}

	if context != "" {
		cfg.CurrentContext = context
	}
	if cfg.CurrentContext == "" {
		return nil, fmt.Errorf("kubeconfig %s has no current context", path)
	}

	ctx, ok := cfg.Contexts[cfg.CurrentContext]
	if !ok {
		return nil, fmt.Errorf("context '%s' not found in kubeconfig %s", cfg.CurrentContext, path)
	}

	cluster, ok := cfg.Clusters[ctx.Cluster]
	if !ok {
		return nil, fmt.Errorf("cluster '%s' not found in kubeconfig %s", ctx.Cluster, path)
	}

	authInfo, ok := cfg.AuthInfos[ctx.AuthInfo]
	if !ok {
		return nil, fmt.Errorf("user '%s' not found in kubeconfig %s", ctx.AuthInfo, path)
	}

	cfg.Contexts = map[string]*clientcmdapi.Context{cfg.CurrentContext: ctx}
	cfg.Clusters = map[string]*clientcmdapi.Cluster{ctx.Cluster: cluster}
	cfg.AuthInfos = map[string]*clientcmdapi.AuthInfo{ctx.AuthInfo: authInfo}

	return cfg, nil
}

func parseServer(server string) (string, int, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", 0, fmt.Errorf("invalid cluster server address '%s': %w", server, err)
	}

	port := 443
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid cluster server port '%s': %w", p, err)
		}
	}

	return u.Hostname(), port, nil
}

// fetchOverSSH reads a file from a remote host with a one-shot ssh command
func fetchOverSSH(user, host, identityFile, path string) ([]byte, error) {
	args := []string{}
	if identityFile != "" {
		args = append(args, "-i", identityFile)
	}
	args = append(args, fmt.Sprintf("%s@%s", user, host), "cat", path)

	return exec.Command("ssh", args...).Output()
}
