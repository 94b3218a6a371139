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
Package dump implements the asmi dump tool, which prints the listing of the analyzed procedures with the abstract
state of each instruction.

Usage:

	asmi dump [flags] -config config.yaml ./...

The flags are:

	-class regex         only print the procedures of the classes matching regex

	-instrumented=false  print the procedures after instrumentation
*/
package dump

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/statecraft/asmi/analysis/asm"
	"github.com/statecraft/asmi/analysis/ir"
	"github.com/statecraft/asmi/analysis/statemachine"
	"github.com/statecraft/asmi/cmd/asmi/tools"
	"github.com/statecraft/asmi/internal/formatutil"
)

const usage = ` Print the listing of the analyzed procedures annotated with their abstract states.
Usage:
  asmi dump [options] <package path(s)>
Examples:
  % asmi dump -class 'Worker$' ./...
`

// Flags represents the parsed flags of the dump tool
type Flags struct {
	tools.CommonFlags
	class        string
	instrumented bool
}

// NewFlags returns the parsed flags of the dump tool with args
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("dump")
	class := flags.FlagSet.String("class", "", "only print the procedures of the classes matching this regex")
	instrumented := flags.FlagSet.Bool("instrumented", false, "print the procedures after instrumentation")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse("dump", args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, class: *class, instrumented: *instrumented}, nil
}

// Run prints the listings with flags
func Run(flags Flags) error {
	var filter *regexp.Regexp
	if flags.class != "" {
		r, err := regexp.Compile(flags.class)
		if err != nil {
			return fmt.Errorf("invalid class regex %q: %w", flags.class, err)
		}
		filter = r
	}
	s, err := tools.Load(flags.CommonFlags)
	if err != nil {
		return err
	}
	a := statemachine.NewAnalyzer(s.Program, s.Config, s.Logger)
	res, err := a.Batch(context.Background(), s.Program, flags.instrumented)
	if err != nil {
		return err
	}
	return Fprint(os.Stdout, res, filter)
}

// Fprint writes the listing of every procedure of res whose class matches filter, which may be nil
func Fprint(w io.Writer, res *statemachine.BatchResult, filter *regexp.Regexp) error {
	for _, p := range res.Processors {
		if filter != nil && !filter.MatchString(p.Name()) {
			continue
		}
		for _, r := range p.Results() {
			fmt.Fprintf(w, "%s %s\n", formatutil.Bold("// class"), p.Name())
			if err := ir.Fprint(w, r.Procedure, stateAnnotation(r)); err != nil {
				return err
			}
		}
	}
	return nil
}

func stateAnnotation(r *asm.Result) func(*ir.Instruction) string {
	return func(i *ir.Instruction) string {
		id, ok := r.ID(i)
		if !ok {
			return ""
		}
		if r.IsEntry(i) {
			return fmt.Sprintf("entry state %d", id)
		}
		return fmt.Sprintf("state %d", id)
	}
}
