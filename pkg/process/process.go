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

package process

import (
	"github.com/shirou/gopsutil/process"
	"github.com/tunctl/tunctl/pkg/log"
)

// IsRunning reports whether pid refers to a live process, without affecting it
func IsRunning(pid int) bool {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}

	running, err := p.IsRunning()
	if err != nil {
		log.Debugf("error probing process %d: %s", pid, err)
		return false
	}

	return running
}

// Terminate sends a termination signal to pid. A process that is already gone
// is not an error
func Terminate(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		log.Debugf("process not running: %d", pid)
		return nil
	}

	if err := p.Terminate(); err != nil {
		running, runErr := p.IsRunning()
		if runErr == nil && !running {
			return nil
		}

		return err
	}

	return nil
}
