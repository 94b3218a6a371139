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

package statemachine

import (
	"context"
	"fmt"
	"math"

	"github.com/statecraft/asmi/analysis/ir"
	"github.com/statecraft/asmi/analysis/srcinstr"
	"golang.org/x/sync/errgroup"
)

// BatchResult is the result of the analysis of a whole program
type BatchResult struct {
	// Processors are the processors of the target classes with entry points, then of the main functions
	Processors []*Processor
	// Rows has one row per analyzed procedure, in processor order
	Rows []Row
	// Counts are the numbers of abstract states of the analyzed procedures, in the order of Rows
	Counts []int
}

// Batch analyzes every target class and configured main function of prog, NumWorkers processors at a time. When
// instrumentFlag is set, the procedures are instrumented after their analysis. The first error cancels the batch.
func (a *Analyzer) Batch(ctx context.Context, prog *ir.Program, instrumentFlag bool) (*BatchResult, error) {
	var processors []*Processor
	for _, c := range prog.Classes {
		if !a.Target(c) {
			a.Logger.Tracef("skipping class %s", c)
			continue
		}
		if p := a.NewProcessor(c); p != nil {
			a.Logger.Infof("analyzing class %s (%d entry points)", c, len(p.Entries))
			processors = append(processors, p)
		}
	}
	for _, fn := range prog.Functions {
		if a.Config.IsMainPackage(fn.Package) {
			processors = append(processors, a.NewMainProcessor(fn))
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	workers := a.Config.NumWorkers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)
	for _, p := range processors {
		p := p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := p.IdentifyAbstractStates(); err != nil {
				return err
			}
			if instrumentFlag {
				if err := p.Instrument(); err != nil {
					return fmt.Errorf("instrumentation of %s failed: %w", p.Name(), err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &BatchResult{Processors: processors}
	for _, p := range processors {
		for _, row := range p.Rows() {
			res.Rows = append(res.Rows, row)
			res.Counts = append(res.Counts, row.ASV)
		}
	}
	return res, nil
}

// Plans returns the source instrumentation of every analyzed procedure of the batch
func (r *BatchResult) Plans() []srcinstr.Plan {
	var plans []srcinstr.Plan
	for _, p := range r.Processors {
		plans = append(plans, p.Plans()...)
	}
	return plans
}

// Stats aggregates the numbers of abstract states of a batch
type Stats struct {
	Total int
	Mean  float64
	Max   int
	Min   int
}

// Aggregate reduces counts to their total, mean, maximum and minimum. All are zero for no counts.
func Aggregate(counts []int) Stats {
	if len(counts) == 0 {
		return Stats{}
	}
	s := Stats{Max: math.MinInt, Min: math.MaxInt}
	for _, c := range counts {
		s.Total += c
		if c > s.Max {
			s.Max = c
		}
		if c < s.Min {
			s.Min = c
		}
	}
	s.Mean = float64(s.Total) / float64(len(counts))
	return s
}

func (s Stats) String() string {
	return fmt.Sprintf("ASV stats: total=%d, mean=%.2f, max=%d, min=%d", s.Total, s.Mean, s.Max, s.Min)
}
