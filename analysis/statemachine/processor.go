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

// Package statemachine extracts the abstract state machines of the classes of a program: it selects the entry
// procedures of each target class, derives their abstract states and instruments them.
package statemachine

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/statecraft/asmi/analysis/asm"
	"github.com/statecraft/asmi/analysis/cfg"
	"github.com/statecraft/asmi/analysis/config"
	"github.com/statecraft/asmi/analysis/hierarchy"
	"github.com/statecraft/asmi/analysis/instrument"
	"github.com/statecraft/asmi/analysis/ir"
	"github.com/statecraft/asmi/analysis/meaningful"
	"github.com/statecraft/asmi/analysis/srcinstr"
	"github.com/statecraft/asmi/analysis/statevars"
)

// An EntryPoint is a procedure analyzed as a state machine, with the way it is instrumented
type EntryPoint struct {
	Procedure *ir.Procedure
	Options   instrument.Options
}

// Analyzer holds the program-wide information shared by the processors
type Analyzer struct {
	Config       *config.Config
	Logger       *config.LogGroup
	Table        *hierarchy.Table
	Filter       *meaningful.Filter
	Instrumentor *instrument.Instrumentor
}

// NewAnalyzer returns an analyzer of prog. A nil config is the default config.
func NewAnalyzer(prog *ir.Program, c *config.Config, logger *config.LogGroup) *Analyzer {
	if c == nil {
		c = config.NewDefault()
	}
	if logger == nil {
		logger = config.NewLogGroup(c)
	}
	return &Analyzer{
		Config:       c,
		Logger:       logger,
		Table:        hierarchy.New(prog.Classes),
		Filter:       meaningful.New(c),
		Instrumentor: instrument.New(c.AgentPackage, logger),
	}
}

// Target returns true if the class c should be analyzed. Error types are never analyzed.
func (a *Analyzer) Target(c *ir.Class) bool {
	return a.Config.IsTargetClass(c.Package, c.Name) && !a.Table.Is(c, hierarchy.Error)
}

// Processor extracts the state machine of one class, or of one main function
type Processor struct {
	*Analyzer
	Class     *ir.Class
	Entries   []EntryPoint
	StateVars mapset.Set[*ir.Field]
	results   []*asm.Result
	loops     []int
}

// NewProcessor returns the processor of class c, or nil when c has no entry point. A method is an entry point when
// an entry point spec of the config matches its name and an interface of c; the first matching spec decides whether
// the entry is registered. Entries of runnable classes and methods started by go statements are identified by
// their goroutine.
func (a *Analyzer) NewProcessor(c *ir.Class) *Processor {
	ifaces := a.Table.Interfaces(c)
	runnable := a.Table.Is(c, hierarchy.Runnable)
	var entries []EntryPoint
	for _, m := range c.Methods {
		for _, spec := range a.Config.EntryPoints {
			if !spec.MatchesMethod(m.Name) || !spec.MatchesInterface(ifaces) {
				continue
			}
			entries = append(entries, EntryPoint{
				Procedure: m,
				Options: instrument.Options{
					Register:          spec.Register,
					GoroutineIdentity: runnable || m.Goroutine,
				},
			})
			break
		}
	}
	if len(entries) == 0 {
		return nil
	}
	return &Processor{
		Analyzer:  a,
		Class:     c,
		Entries:   entries,
		StateVars: statevars.Of(c, a.Config),
	}
}

// NewMainProcessor returns the processor of a main function: it is registered, initializes the agent and is
// identified by its goroutine. Main functions have no state fields.
func (a *Analyzer) NewMainProcessor(fn *ir.Procedure) *Processor {
	return &Processor{
		Analyzer: a,
		Entries: []EntryPoint{{
			Procedure: fn,
			Options:   instrument.Options{Register: true, GoroutineIdentity: true, Init: true},
		}},
		StateVars: mapset.NewSet[*ir.Field](),
	}
}

// Name returns the name of the analyzed class or main function
func (p *Processor) Name() string {
	if p.Class != nil {
		return p.Class.QualifiedName()
	}
	return p.Entries[0].Procedure.ClassName()
}

// IdentifyAbstractStates derives the abstract states of every entry point
func (p *Processor) IdentifyAbstractStates() error {
	p.results = p.results[:0]
	p.loops = p.loops[:0]
	for _, e := range p.Entries {
		r, err := asm.Analyze(e.Procedure, p.StateVars, p.Filter, asm.Options{
			Logger:           p.Logger,
			VerifyDominators: p.Config.VerifyDominators,
		})
		if err != nil {
			return fmt.Errorf("analysis of %s failed: %w", e.Procedure, err)
		}
		p.results = append(p.results, r)
		p.loops = append(p.loops, cfg.New(e.Procedure).Loops())
	}
	return nil
}

// Results returns the derivations of the entry points, in entry order. It is empty before IdentifyAbstractStates.
func (p *Processor) Results() []*asm.Result {
	return p.results
}

// Instrument inserts the state reports in every analyzed entry point
func (p *Processor) Instrument() error {
	if len(p.results) != len(p.Entries) {
		return fmt.Errorf("%s: abstract states must be identified before instrumentation", p.Name())
	}
	for k, r := range p.results {
		if err := p.Instrumentor.Instrument(r, p.Entries[k].Options); err != nil {
			return err
		}
	}
	return nil
}

// Plans returns the source instrumentation of the analyzed entry points
func (p *Processor) Plans() []srcinstr.Plan {
	plans := make([]srcinstr.Plan, 0, len(p.results))
	for k, r := range p.results {
		plans = append(plans, srcinstr.NewPlan(r, p.Entries[k].Options))
	}
	return plans
}

// A Row summarizes the derivation of one entry point
type Row struct {
	Class  string
	Method string
	// ASV is the number of abstract states
	ASV int
	// CSV is the number of state fields
	CSV int
	// Loops is the number of loops of the procedure before instrumentation
	Loops    int
	Register bool
}

// Rows returns one row per analyzed entry point
func (p *Processor) Rows() []Row {
	rows := make([]Row, 0, len(p.results))
	for k, r := range p.results {
		rows = append(rows, Row{
			Class:    p.Name(),
			Method:   r.Procedure.SubSignature,
			ASV:      r.Count,
			CSV:      r.StateVars,
			Loops:    p.loops[k],
			Register: p.Entries[k].Options.Register,
		})
	}
	return rows
}
