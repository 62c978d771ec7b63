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
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tunctl/tunctl/pkg/config"
	tunctlErrors "github.com/tunctl/tunctl/pkg/errors"
	"github.com/tunctl/tunctl/pkg/log"
)

var logLevel string

// Execute runs the root command and returns the process exit code
func Execute() int {
	root := &cobra.Command{
		Use:           fmt.Sprintf("%s COMMAND [ARG...]", config.GetBinaryName()),
		Short:         "Manage ssh tunnels to Kubernetes clusters",
		SilenceErrors: true,
		PersistentPreRun: func(ccmd *cobra.Command, args []string) {
			log.SetLevel(logLevel)
			ccmd.SilenceUsage = true
		},
	}

	root.PersistentFlags().StringVarP(&logLevel, "loglevel", "l", "warn", "amount of information outputted (debug, info, warn, error)")

	root.AddCommand(
		List(),
		Open(),
		Close(),
		Activate(),
		Version(),
	)

	if err := root.Execute(); err != nil {
		var uErr tunctlErrors.UserError
		if errors.As(err, &uErr) {
			log.Fail("%s", uErr.Error())
			if uErr.Hint != "" {
				log.Hint("    %s", uErr.Hint)
			}
		} else {
			log.Fail("%s", err.Error())
		}
		return 1
	}

	return 0
}
