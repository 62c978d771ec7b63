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
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/tunctl/tunctl/pkg/config"
	tunctlErrors "github.com/tunctl/tunctl/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the profile configuration file looked up from the working
// directory upwards
const ConfigFileName = "tunctl-profiles.yaml"

// Config is a loaded profile configuration file
type Config struct {
	// Path is the absolute path of the file the profiles were loaded from
	Path string

	// Profiles maps profile alias to its declaration
	Profiles map[string]Profile
}

// FindConfigFile locates the profile configuration file: the working
// directory and each of its parents, then the home directory, then the
// ~/.config/tunctl fallback
func FindConfigFile(fs afero.Fs, cwd string) (string, error) {
	dir, err := filepath.Abs(cwd)
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if ok, _ := afero.Exists(fs, candidate); ok {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	home := config.GetUserHomeDir()
	for _, candidate := range []string{
		filepath.Join(home, ConfigFileName),
		filepath.Join(home, ".config", "tunctl", ConfigFileName),
	} {
		if ok, _ := afero.Exists(fs, candidate); ok {
			return candidate, nil
		}
	}

	return "", tunctlErrors.UserError{
		E:    fmt.Errorf("%w: '%s' is not in '%s', any of its parent directories or your home directory", tunctlErrors.ErrNoProfileConfig, ConfigFileName, cwd),
		Hint: fmt.Sprintf("Create a '%s' declaring your connection profiles", ConfigFileName),
	}
}

// Load reads the profile configuration from path
func Load(fs afero.Fs, path string) (*Config, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}

	profiles := map[string]Profile{}
	if err := yaml.Unmarshal(b, &profiles); err != nil {
		return nil, errors.Wrapf(err, "invalid profile configuration %s", path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	return &Config{Path: abs, Profiles: profiles}, nil
}

// Discover finds and loads the profile configuration starting at cwd
func Discover(fs afero.Fs, cwd string) (*Config, error) {
	path, err := FindConfigFile(fs, cwd)
	if err != nil {
		return nil, err
	}

	return Load(fs, path)
}

// Profile returns the declaration for name
func (c *Config) Profile(name string) (Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, tunctlErrors.UserError{
			E:    tunctlErrors.ProfileNotFoundError{Profile: name, ConfigFile: c.Path},
			Hint: fmt.Sprintf("Run '%s list' to see the profiles declared in your configuration", config.GetBinaryName()),
		}
	}

	return p, nil
}
