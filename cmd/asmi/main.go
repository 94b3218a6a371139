// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/statecraft/asmi/analysis/config"
	"github.com/statecraft/asmi/cmd/asmi/derive"
	"github.com/statecraft/asmi/cmd/asmi/dump"
	"github.com/statecraft/asmi/cmd/asmi/instrument"
	"github.com/statecraft/asmi/cmd/asmi/tools"
	"github.com/statecraft/asmi/internal/formatutil"
)

const usage = `asmi: Abstract State Machine Instrumentation
Usage:
  asmi [tool] [options] <package path(s)>
Tools:
  - derive: derives the abstract states of the state machines of the packages and prints their counts
  - instrument: writes sources reporting the abstract states to the runtime agent
  - dump: prints the listing of the analyzed procedures annotated with their abstract states
Examples:
  Print the abstract states: asmi derive -config config.yaml ./...
  Instrument a program: asmi instrument -config config.yaml -output-dir out ./...`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "error: expected subcommand\n%s\n", usage)
		os.Exit(2)
	}

	// hardcode help flag
	if snd := os.Args[1]; snd == "-help" || snd == "--help" {
		fmt.Println(usage)
		return
	}

	// hardcode version flag
	if snd := os.Args[1]; snd == "-version" || snd == "--version" {
		fmt.Println(config.Version)
		return
	}

	args := os.Args[2:]
	switch cmd := os.Args[1]; cmd {
	case "derive":
		flags, err := derive.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := derive.Run(flags); err != nil {
			errExit(err)
		}
	case "instrument":
		flags, err := instrument.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := instrument.Run(flags); err != nil {
			errExit(err)
		}
	case "dump":
		flags, err := dump.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := dump.Run(flags); err != nil {
			errExit(err)
		}
	default:
		fmt.Fprintf(os.Stderr, "error: unexpected command: %v\n", cmd)
		fmt.Fprintf(os.Stderr, "usage:\n%s\n", usage)
		os.Exit(2)
	}
}

func errExit(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", formatutil.Red("error:"), err)
	hint := tools.HintForErrorMessage(err.Error())
	if hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	os.Exit(2)
}
