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

package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/tunctl/tunctl/cmd"
	"github.com/tunctl/tunctl/pkg/config"
	"github.com/tunctl/tunctl/pkg/log"
)

func main() {
	log.Init(logrus.WarnLevel, config.GetTunctlHome(), config.GetBinaryName())
	os.Exit(cmd.Execute())
}
