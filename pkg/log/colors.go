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

package log

import (
	"fmt"

	"github.com/fatih/color"
)

var (
	// RedString adds the red ansi color and applies the format
	RedString = color.New(color.FgHiRed).SprintfFunc()

	// GreenString adds the green ansi color and applies the format
	GreenString = color.New(color.FgHiGreen).SprintfFunc()

	// YellowString adds the yellow ansi color and applies the format
	YellowString = color.New(color.FgHiYellow).SprintfFunc()

	// BlueString adds the blue ansi color and applies the format
	BlueString = color.New(color.FgHiBlue).SprintfFunc()

	successSymbol     = color.New(color.BgGreen, color.FgBlack).Sprint(" ✓ ")
	errorSymbol       = color.New(color.BgHiRed, color.FgBlack).Sprint(" ✕ ")
	informationSymbol = BlueString(" ⓘ ")
)

// Red writes a line in red
func Red(format string, args ...interface{}) {
	fmt.Println(RedString(format, args...))
}

// Yellow writes a line in yellow
func Yellow(format string, args ...interface{}) {
	fmt.Println(YellowString(format, args...))
}

// Green writes a line in green
func Green(format string, args ...interface{}) {
	fmt.Println(GreenString(format, args...))
}

// Success prints a message with the success symbol
func Success(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", successSymbol, GreenString(format, args...))
}

// Information prints a message with the information symbol
func Information(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", informationSymbol, BlueString(format, args...))
}

// Fail prints a message with the error symbol
func Fail(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", errorSymbol, RedString(format, args...))
}

// Hint prints a message in blue, for follow-up suggestions
func Hint(format string, args ...interface{}) {
	fmt.Println(BlueString(format, args...))
}
