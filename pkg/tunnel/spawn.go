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

package tunnel

import (
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/tunctl/tunctl/pkg/log"
	"github.com/tunctl/tunctl/pkg/model"
)

// spawnSSH starts one multiplexed ssh process implementing all forwardings
// for a locator. The launch is non-blocking: the process is detached into its
// own process group so it survives the invoking command, and a failed launch
// only becomes visible as a broken tunnel on a later refresh
func spawnSSH(spec *model.TunnelSpec, ports map[string]int) (int, error) {
	args := []string{"-N", "-L", forwardingArg(spec, ports)}
	if spec.IdentityFile != "" {
		args = append(args, "-i", spec.IdentityFile)
	}
	args = append(args, spec.Proxy())

	cmd := exec.Command("ssh", args...)
	cmd.SysProcAttr = detachedSysProcAttr()

	log.Debugf("opening ssh tunnel for '%s': $ ssh %s", spec.Locator, strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return 0, err
	}

	// Reap the process if it exits while this invocation is still alive
	go func() {
		_ = cmd.Wait()
	}()

	return cmd.Process.Pid, nil
}

// forwardingArg renders the comma-joined local:host:port triples for -L
func forwardingArg(spec *model.TunnelSpec, ports map[string]int) string {
	aliases := make([]string, 0, len(spec.Forwardings))
	for alias := range spec.Forwardings {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	triples := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		f := spec.Forwardings[alias]
		triples = append(triples, fmt.Sprintf("%d:%s:%d", ports[alias], f.Host, f.Port))
	}

	return strings.Join(triples, ",")
}
