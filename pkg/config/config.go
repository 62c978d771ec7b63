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

package config

import (
	"log"
	"os"
	"path/filepath"
	"runtime"
)

const (
	tunctlFolderName = ".tunctl"
	tunnelsDirName   = "tunnels"
	profilesDirName  = "profiles"

	// TunctlFolderEnvVar overrides the location of the tunctl folder
	TunctlFolderEnvVar = "TUNCTL_FOLDER"

	// ProfileEnvVar selects the profile used when no argument is given
	ProfileEnvVar = "TUNCTL_PROFILE"

	// DefaultProfile is the profile used when neither an argument nor
	// TUNCTL_PROFILE is set
	DefaultProfile = "default"
)

// VersionString the version of the cli
var VersionString string

// GetBinaryName returns the name of the binary
func GetBinaryName() string {
	return filepath.Base(os.Args[0])
}

// GetTunctlHome returns the path of the tunctl folder
func GetTunctlHome() string {
	if v, ok := os.LookupEnv(TunctlFolderEnvVar); ok {
		if _, err := os.Stat(v); err != nil {
			log.Fatalf("%s doesn't exist: %s", TunctlFolderEnvVar, v)
		}

		return v
	}

	home := GetUserHomeDir()
	d := filepath.Join(home, tunctlFolderName)

	if err := os.MkdirAll(d, 0700); err != nil {
		log.Fatalf("failed to create %s: %s", d, err)
	}

	return d
}

// GetStateDir returns the directory where the tunnel state and its lock live
func GetStateDir() string {
	d := filepath.Join(GetTunctlHome(), tunnelsDirName)
	if err := os.MkdirAll(d, 0700); err != nil {
		log.Fatalf("failed to create %s: %s", d, err)
	}

	return d
}

// GetProfilesStateDir returns the directory where per-profile kubeconfigs are cached
func GetProfilesStateDir() string {
	d := filepath.Join(GetTunctlHome(), profilesDirName)
	if err := os.MkdirAll(d, 0700); err != nil {
		log.Fatalf("failed to create %s: %s", d, err)
	}

	return d
}

// GetProfileName resolves the profile to act on from the command argument,
// the TUNCTL_PROFILE environment variable or the default
func GetProfileName(args []string) string {
	if len(args) > 0 {
		return args[0]
	}

	if v, ok := os.LookupEnv(ProfileEnvVar); ok && v != "" {
		return v
	}

	return DefaultProfile
}

// GetUserHomeDir returns the OS home dir
func GetUserHomeDir() string {
	if v, ok := os.LookupEnv("TUNCTL_HOME"); ok {
		return v
	}

	if runtime.GOOS == "windows" {
		home, err := homedirWindows()
		if err != nil {
			log.Fatalf("couldn't determine your home directory: %s", err)
		}

		return home
	}

	return os.Getenv("HOME")
}

func homedirWindows() (string, error) {
	if home := os.Getenv("HOME"); home != "" {
		return home, nil
	}

	if home := os.Getenv("USERPROFILE"); home != "" {
		return home, nil
	}

	drive := os.Getenv("HOMEDRIVE")
	homePath := os.Getenv("HOMEPATH")
	if drive == "" || homePath == "" {
		return "", os.ErrNotExist
	}

	return drive + homePath, nil
}
