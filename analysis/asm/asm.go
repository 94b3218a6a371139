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

// Package asm derives the abstract states of a procedure: the entry points and the instrumentation points whose
// execution is reported at runtime, numbered densely in procedure order.
package asm

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/statecraft/asmi/analysis/cfg"
	"github.com/statecraft/asmi/analysis/config"
	"github.com/statecraft/asmi/analysis/dependency"
	"github.com/statecraft/asmi/analysis/dominance"
	"github.com/statecraft/asmi/analysis/ir"
)

// Terminal is the state reported when a registered procedure returns or panics
const Terminal = -1

// An Entry is a root of the procedure: its first instruction or a trap handler
type Entry struct {
	Instr *ir.Instruction
	// Selected is true when the entry is an abstract state
	Selected bool
}

// Result is the abstract state derivation of one procedure
type Result struct {
	Procedure *ir.Procedure
	// Entries are the roots of the procedure, in procedure order
	Entries []Entry
	// Points are the instrumentation points
	Points mapset.Set[*ir.Instruction]
	// IDs maps every abstract state to its id in [0, Count)
	IDs   map[*ir.Instruction]int
	Count int
	// StateVars is the number of state fields the derivation ran with
	StateVars int
}

// ID returns the id of the abstract state at i
func (r *Result) ID(i *ir.Instruction) (int, bool) {
	id, ok := r.IDs[i]
	return id, ok
}

// IsEntry returns true if i is an entry of the procedure, selected or not
func (r *Result) IsEntry(i *ir.Instruction) bool {
	for _, e := range r.Entries {
		if e.Instr == i {
			return true
		}
	}
	return false
}

// Options parameterizes Analyze
type Options struct {
	// Logger receives the debug and trace output. A default log group is used when nil.
	Logger *config.LogGroup
	// VerifyDominators checks the dominator tree against the Lengauer-Tarjan dominators
	VerifyDominators bool
}

// Analyze derives the abstract states of proc. state is the set of state fields of the procedure's class.
// The only error is a failed dominator verification.
func Analyze(proc *ir.Procedure, state mapset.Set[*ir.Field], meaningful Predicate, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = config.NewLogGroup(config.NewDefault())
	}
	if state == nil {
		state = mapset.NewSet[*ir.Field]()
	}
	c := cfg.New(proc)
	tree := dominance.New(c)
	if opts.VerifyDominators {
		if err := dominance.Verify(tree); err != nil {
			return nil, fmt.Errorf("dominator verification failed: %w", err)
		}
	}
	taint := dependency.New(c, state)
	r := Derive(c, tree, taint, meaningful, logger)
	r.StateVars = state.Cardinality()
	logger.Debugf("%s %s # AS = %d; # CSV = %d", proc.ClassName(), proc.SubSignature, r.Count, r.StateVars)
	return r, nil
}

// Derive walks every entry of c and numbers the abstract states. The first instruction is always selected; the other
// entries are selected when their region contains a meaningful operation.
func Derive(c *cfg.CFG, tree *dominance.Tree, taint *dependency.Analysis, meaningful Predicate,
	logger *config.LogGroup) *Result {
	d := &deriver{
		cfg:        c,
		tree:       tree,
		taint:      taint,
		meaningful: meaningful,
		logger:     logger,
		points:     mapset.NewThreadUnsafeSet[*ir.Instruction](),
	}
	r := &Result{
		Procedure: c.Procedure(),
		Points:    d.points,
		IDs:       map[*ir.Instruction]int{},
	}
	for k, root := range c.Roots() {
		selected := d.walk(root)
		if k == 0 {
			selected = true
		}
		r.Entries = append(r.Entries, Entry{Instr: root, Selected: selected})
	}
	number(c, r)
	return r
}

// number assigns dense ids in procedure order to the selected entries and the instrumentation points
func number(c *cfg.CFG, r *Result) {
	selected := map[*ir.Instruction]bool{}
	for _, e := range r.Entries {
		if e.Selected {
			selected[e.Instr] = true
		}
	}
	r.Count = 0
	for _, i := range c.Instructions() {
		if selected[i] || r.Points.Contains(i) {
			r.IDs[i] = r.Count
			r.Count++
		}
	}
}
