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

/*
Package instrument implements the asmi instrument tool, which derives the abstract states of your packages and
writes sources reporting them to the runtime agent.

Usage:

	asmi instrument [flags] -config config.yaml ./...

The flags are:

	-config path      a path to the configuration file selecting the classes and entry points

	-output-dir path  the directory of the instrumented sources, overrides the config

	-verbose=false    setting verbose mode, overrides config file options if set
*/
package instrument

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/statecraft/asmi/analysis/srcinstr"
	"github.com/statecraft/asmi/analysis/statemachine"
	"github.com/statecraft/asmi/cmd/asmi/tools"
	"github.com/statecraft/asmi/internal/formatutil"
)

const usage = ` Instrument the state machines of your packages.
Usage:
  asmi instrument [options] <package path(s)>
Examples:
  % asmi instrument -config config.yaml -output-dir out ./...
`

// DefaultOutputDir is where the instrumented sources are written when neither the flags nor the config set it
const DefaultOutputDir = "asmi-out"

// Flags represents the parsed flags of the instrument tool
type Flags struct {
	tools.CommonFlags
	outputDir string
}

// NewFlags returns the parsed flags of the instrument tool with args
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("instrument")
	outputDir := flags.FlagSet.String("output-dir", "", "directory of the instrumented sources, overrides the config")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse("instrument", args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, outputDir: *outputDir}, nil
}

// Run runs the instrumentation with flags. The instrumented procedures are validated before any source is written.
func Run(flags Flags) error {
	s, err := tools.Load(flags.CommonFlags)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := statemachine.NewAnalyzer(s.Program, s.Config, s.Logger)
	res, err := a.Batch(ctx, s.Program, true)
	if err != nil {
		return err
	}
	s.Logger.Infof(statemachine.Aggregate(res.Counts).String())

	outputDir := flags.outputDir
	if outputDir == "" {
		outputDir = s.Config.OutputDir
	}
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	rw := srcinstr.New(s.Config.AgentPackage, s.Logger)
	written, err := rw.WriteFiles(srcinstr.FilesOf(s.Loaded.Packages), res.Plans(), outputDir)
	if err != nil {
		return fmt.Errorf("could not write instrumented sources: %w", err)
	}
	s.Logger.Infof("%s %d procedures in %d files under %s", formatutil.Green("instrumented"), len(res.Rows),
		len(written), outputDir)
	return nil
}
