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

package asm

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/statecraft/asmi/analysis/cfg"
	"github.com/statecraft/asmi/analysis/config"
	"github.com/statecraft/asmi/analysis/dependency"
	"github.com/statecraft/asmi/analysis/dominance"
	"github.com/statecraft/asmi/analysis/ir"
)

// A Predicate decides whether an instruction performs a meaningful operation
type Predicate interface {
	IsMeaningful(*ir.Instruction) bool
}

// PredicateFunc adapts a function to the Predicate interface
type PredicateFunc func(*ir.Instruction) bool

// IsMeaningful calls f(i)
func (f PredicateFunc) IsMeaningful(i *ir.Instruction) bool { return f(i) }

type deriver struct {
	cfg        *cfg.CFG
	tree       *dominance.Tree
	taint      *dependency.Analysis
	meaningful Predicate
	logger     *config.LogGroup
	points     mapset.Set[*ir.Instruction]
}

// walk follows the spine of governs-children starting at u and returns true if it contains a meaningful
// operation. Branch bodies are walked recursively; a body that contains a meaningful operation under a tainted
// condition becomes an instrumentation point.
//
//gocyclo:ignore
func (d *deriver) walk(u *ir.Instruction) bool {
	flag := false
	for u != nil {
		if d.meaningful.IsMeaningful(u) {
			flag = true
		}
		children := d.tree.Children(u)
		var next *ir.Instruction
		var nested []*ir.Instruction

		switch ir.ShapeOf(u) {
		case ir.Conditional:
			switch len(children) {
			case 3:
				next = children[2]
				nested = children[:2]
			case 2:
				if d.cfg.ConnectedWithin(children[0], children[1]) {
					next = children[1]
					nested = children[:1]
				} else {
					nested = children
				}
			case 1:
				nested = children
			default:
				d.logger.Debugf("%s: conditional %s governs %d instructions, skipping region",
					d.cfg.Procedure(), u, len(children))
			}
		case ir.MultiWay:
			if len(children) == 0 {
				d.logger.Debugf("%s: multi-way branch %s governs no instruction", d.cfg.Procedure(), u)
				break
			}
			last := children[len(children)-1]
			next = last
			for _, c := range children[:len(children)-1] {
				nested = append(nested, c)
				if next != nil && !d.cfg.ConnectedWithin(c, last) {
					next = nil
				}
			}
			if next == nil {
				nested = append(nested, last)
			}
		case ir.Sequential:
			if len(children) > 0 {
				next = children[0]
				for _, c := range children[1:] {
					if d.walk(c) {
						flag = true
					}
				}
			}
		}

		tainted := d.taint.IsTainted(u, ir.Condition(u))
		for _, b := range nested {
			if d.walk(b) && tainted {
				d.logger.Tracef("%s: instrumentation point %s under %s", d.cfg.Procedure(), b, u)
				d.points.Add(b)
			}
		}
		u = next
	}
	return flag
}
