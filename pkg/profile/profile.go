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

// Package profile loads the connection profiles that declare how to reach
// each Kubernetes cluster: where its kubeconfig comes from and whether the
// API server must be reached through an ssh tunnel.
package profile

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Profile is one Kubernetes connection profile
type Profile struct {
	// Kubeconfig describes how the kubeconfig for this cluster is obtained
	Kubeconfig KubeconfigSource

	// Tunnel describes the ssh tunnel to reach the cluster API, nil when the
	// API server is directly reachable
	Tunnel *SSHTunnel
}

// SSHTunnel is the ssh endpoint a profile tunnels through
type SSHTunnel struct {
	User         string `yaml:"user"`
	Host         string `yaml:"host"`
	IdentityFile string `yaml:"identity_file,omitempty"`
}

// KubeconfigSource is a closed set of ways to obtain a kubeconfig: local file
// or fetched over ssh. Consumers dispatch on the concrete type
type KubeconfigSource interface {
	kubeconfigSource()
}

// LocalKubeconfig uses a kubeconfig file that already exists on this machine,
// either at an explicit path or the default location
type LocalKubeconfig struct {
	// Path to the kubeconfig file, relative to the profile configuration
	// file. Empty falls back to KUBECONFIG or ~/.kube/config
	Path string `yaml:"path,omitempty"`

	// Context to select, empty means the current context
	Context string `yaml:"context,omitempty"`
}

func (LocalKubeconfig) kubeconfigSource() {}

// SSHKubeconfig fetches the kubeconfig from a remote host over ssh
type SSHKubeconfig struct {
	User         string `yaml:"user"`
	Host         string `yaml:"host"`
	IdentityFile string `yaml:"identity_file,omitempty"`

	// Path of the kubeconfig on the remote host
	Path string `yaml:"path"`

	// Context to select, empty means the current context
	Context string `yaml:"context,omitempty"`
}

func (SSHKubeconfig) kubeconfigSource() {}

// UnmarshalYAML decodes a profile, dispatching the kubeconfig source on its
// type tag
func (p *Profile) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Kubeconfig yaml.Node  `yaml:"kubeconfig"`
		Tunnel     *SSHTunnel `yaml:"tunnel"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	p.Tunnel = raw.Tunnel

	if raw.Kubeconfig.IsZero() {
		p.Kubeconfig = LocalKubeconfig{}
		return nil
	}

	var head struct {
		Type string `yaml:"type"`
	}
	if err := raw.Kubeconfig.Decode(&head); err != nil {
		return err
	}

	switch head.Type {
	case "", "local":
		var source LocalKubeconfig
		if err := raw.Kubeconfig.Decode(&source); err != nil {
			return err
		}
		p.Kubeconfig = source
	case "ssh":
		var source SSHKubeconfig
		if err := raw.Kubeconfig.Decode(&source); err != nil {
			return err
		}
		p.Kubeconfig = source
	default:
		return fmt.Errorf("unsupported kubeconfig type '%s' (expected 'local' or 'ssh')", head.Type)
	}

	return nil
}
