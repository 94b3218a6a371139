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
Package derive implements the asmi derive tool, which derives the abstract states of the state machines of your
packages and prints one row per analyzed procedure.

Usage:

	asmi derive [flags] -config config.yaml ./...

The flags are:

	-config path      a path to the configuration file selecting the classes and entry points

	-csv=false        write the analysis result file to the reports directory, overrides the config

	-verbose=false    setting verbose mode, overrides config file options if set
*/
package derive

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/statecraft/asmi/analysis/statemachine"
	"github.com/statecraft/asmi/cmd/asmi/tools"
	"github.com/statecraft/asmi/internal/formatutil"
)

const usage = ` Derive the abstract states of the state machines of your packages.
Usage:
  asmi derive [options] <package path(s)>
Examples:
  % asmi derive -config config.yaml ./...
`

// Flags represents the parsed flags of the derive tool
type Flags struct {
	tools.CommonFlags
	csv bool
}

// NewFlags returns the parsed flags of the derive tool with args
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("derive")
	csv := flags.FlagSet.Bool("csv", false, "write the analysis result file, overrides the config")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse("derive", args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, csv: *csv}, nil
}

// Run runs the derivation with flags
func Run(flags Flags) error {
	s, err := tools.Load(flags.CommonFlags)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	a := statemachine.NewAnalyzer(s.Program, s.Config, s.Logger)
	res, err := a.Batch(ctx, s.Program, false)
	if err != nil {
		return fmt.Errorf("derivation failed: %w", err)
	}
	s.Logger.Infof(formatutil.Faint(fmt.Sprintf("derivation took %.2fs", time.Since(start).Seconds())))

	statemachine.WriteTable(os.Stdout, res.Rows)
	s.Logger.Infof(statemachine.Aggregate(res.Counts).String())

	if flags.csv || s.Config.DumpAnalysisResult {
		filename, err := statemachine.DumpCSV(s.Config, res.Rows)
		if err != nil {
			return err
		}
		s.Logger.Infof("analysis result written to %s", formatutil.Green(filename))
	}
	return nil
}
