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

package cmd

import (
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tunctl/tunctl/pkg/activation"
	"github.com/tunctl/tunctl/pkg/config"
	tunctlErrors "github.com/tunctl/tunctl/pkg/errors"
	"github.com/tunctl/tunctl/pkg/log"
)

// Open opens the tunnel to the cluster targeted by a profile
func Open() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open [profile]",
		Short: "Open the ssh tunnel for a profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(ccmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()
			profileName := config.GetProfileName(args)

			cwd, err := os.Getwd()
			if err != nil {
				return err
			}

			manager, err := activation.Load(fs, cwd)
			if err != nil {
				return err
			}

			p, err := manager.Config.Profile(profileName)
			if err != nil {
				return err
			}

			if p.Tunnel == nil {
				return tunctlErrors.UserError{
					E:    tunctlErrors.ErrNoTunnelConfig,
					Hint: "Add a 'tunnel' section to the profile to reach its cluster through ssh",
				}
			}

			status, err := manager.OpenTunnel(ccmd.Context(), profileName, p)
			if err != nil {
				return err
			}

			log.Success("tunnel '%s' for profile '%s' is %s", status.ID, profileName, status.Status)
			return nil
		},
	}

	return cmd
}
