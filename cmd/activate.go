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

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tunctl/tunctl/pkg/activation"
	"github.com/tunctl/tunctl/pkg/config"
)

// Activate makes a profile's cluster reachable and prints the path of the
// kubeconfig to use, so wrapper tooling can consume it:
//
//	KUBECONFIG=$(tunctl activate prod) kubectl get nodes
func Activate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activate [profile]",
		Short: "Open the profile's tunnel and print the kubeconfig routed through it",
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

			activated, err := manager.Activate(ccmd.Context(), profileName)
			if err != nil {
				return err
			}

			fmt.Println(activated.Kubeconfig)
			return nil
		},
	}

	return cmd
}
