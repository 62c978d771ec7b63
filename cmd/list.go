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
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tunctl/tunctl/pkg/config"
	"github.com/tunctl/tunctl/pkg/model"
	"github.com/tunctl/tunctl/pkg/profile"
	"github.com/tunctl/tunctl/pkg/tunnel"
)

// List shows the status of all tunnels, refreshing every record first
func List() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tunnels and their status",
		RunE: func(ccmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()

			cwd, err := os.Getwd()
			if err != nil {
				return err
			}

			cfg, err := profile.Discover(fs, cwd)
			if err != nil {
				if !all {
					return err
				}
				cfg = nil
			}

			manager := tunnel.NewManager(fs, config.GetStateDir())
			session, err := manager.Begin(ccmd.Context())
			if err != nil {
				return err
			}

			tunnels, err := session.Tunnels()
			if err != nil {
				_ = session.End()
				return err
			}
			if err := session.End(); err != nil {
				return err
			}

			tunnels = backfillProfiles(tunnels, cfg)

			sort.Slice(tunnels, func(i, j int) bool {
				a, b := tunnels[i].Spec.Locator, tunnels[j].Spec.Locator
				if a.Profile != b.Profile {
					return a.Profile < b.Profile
				}
				return a.ConfigFile < b.ConfigFile
			})

			w := tabwriter.NewWriter(os.Stdout, 1, 1, 2, ' ', 0)
			fmt.Fprintf(w, "Profile\tTunnel ID\tStatus\tProxy\tForwardings\n")
			for _, rec := range tunnels {
				if !all && (cfg == nil || rec.Spec.Locator.ConfigFile != cfg.Path) {
					continue
				}

				name := rec.Spec.Locator.Profile
				if all {
					name = fmt.Sprintf("%s (%s)", name, rec.Spec.Locator.ConfigFile)
				}

				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, valueOrDash(rec.Status.ID), rec.Status.Status, rec.Spec.Proxy(), formatForwardings(rec))
			}
			w.Flush()

			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "show tunnels from every profile configuration file")

	return cmd
}

// backfillProfiles appends an empty closed row for every profile in the
// current configuration that declares a tunnel but has no record yet
func backfillProfiles(tunnels []tunnel.Record, cfg *profile.Config) []tunnel.Record {
	if cfg == nil {
		return tunnels
	}

	seen := map[string]bool{}
	for _, rec := range tunnels {
		if rec.Spec.Locator.ConfigFile == cfg.Path {
			seen[rec.Spec.Locator.Profile] = true
		}
	}

	for name, p := range cfg.Profiles {
		if seen[name] || p.Tunnel == nil {
			continue
		}

		tunnels = append(tunnels, tunnel.Record{
			Spec: model.TunnelSpec{
				Locator: model.Locator{
					ConfigFile: cfg.Path,
					Profile:    name,
				},
				Forwardings: map[string]model.Forwarding{},
				User:        p.Tunnel.User,
				Host:        p.Tunnel.Host,
			},
			Status: model.EmptyTunnelStatus(),
		})
	}

	return tunnels
}

func formatForwardings(rec tunnel.Record) string {
	if len(rec.Spec.Forwardings) == 0 {
		return "-"
	}

	aliases := make([]string, 0, len(rec.Spec.Forwardings))
	for alias := range rec.Spec.Forwardings {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	parts := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		f := rec.Spec.Forwardings[alias]
		local := "?"
		if port, ok := rec.Status.LocalPorts[alias]; ok {
			local = fmt.Sprintf("%d", port)
		}
		parts = append(parts, fmt.Sprintf("localhost:%s → %s:%d", local, f.Host, f.Port))
	}

	return strings.Join(parts, ", ")
}

func valueOrDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
