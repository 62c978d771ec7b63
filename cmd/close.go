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
	"github.com/tunctl/tunctl/pkg/config"
	"github.com/tunctl/tunctl/pkg/log"
	"github.com/tunctl/tunctl/pkg/model"
	"github.com/tunctl/tunctl/pkg/profile"
	"github.com/tunctl/tunctl/pkg/tunnel"
)

// Close closes the tunnel for a profile, or every tunnel with --all
func Close() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "close [profile]",
		Short: "Close the ssh tunnel for a profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(ccmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()
			manager := tunnel.NewManager(fs, config.GetStateDir())

			if all {
				session, err := manager.Begin(ccmd.Context())
				if err != nil {
					return err
				}

				tunnels, err := session.Tunnels()
				if err != nil {
					_ = session.End()
					return err
				}

				for _, rec := range tunnels {
					if _, err := session.Close(rec.Spec.Locator); err != nil {
						_ = session.End()
						return err
					}
				}
				if err := session.End(); err != nil {
					return err
				}

				log.Success("closed %d tunnel(s)", len(tunnels))
				return nil
			}

			cwd, err := os.Getwd()
			if err != nil {
				return err
			}

			cfg, err := profile.Discover(fs, cwd)
			if err != nil {
				return err
			}

			profileName := config.GetProfileName(args)
			locator := model.Locator{ConfigFile: cfg.Path, Profile: profileName}

			session, err := manager.Begin(ccmd.Context())
			if err != nil {
				return err
			}

			status, err := session.Close(locator)
			if err != nil {
				_ = session.End()
				return err
			}
			if err := session.End(); err != nil {
				return err
			}

			log.Success("tunnel for profile '%s' is %s", profileName, status.Status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "close every tunnel, regardless of profile configuration file")

	return cmd
}
