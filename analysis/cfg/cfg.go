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

// Package cfg builds the instruction-level control flow graph of a procedure, including the exceptional edges from
// the instructions covered by a trap to the trap's handler.
package cfg

import (
	"github.com/statecraft/asmi/analysis/ir"
	"github.com/statecraft/asmi/internal/graphutil"
	yb "github.com/yourbasic/graph"
)

// CFG is the control flow graph of a procedure. It is a snapshot: instructions inserted in the procedure after New
// are not part of the graph.
type CFG struct {
	proc   *ir.Procedure
	instrs []*ir.Instruction
	g      *graphutil.Digraph
	roots  []*ir.Instruction
	isRoot []bool
}

// New builds the control flow graph of proc
func New(proc *ir.Procedure) *CFG {
	proc.Renumber()
	n := len(proc.Body)
	c := &CFG{
		proc:   proc,
		instrs: append([]*ir.Instruction{}, proc.Body...),
		g:      graphutil.NewDigraph(n),
		isRoot: make([]bool, n),
	}
	for k, i := range c.instrs {
		if i.FallsThrough() && k+1 < n {
			c.g.AddEdge(k, k+1)
		}
		for _, t := range i.Targets() {
			if c.contains(t) {
				c.g.AddEdge(k, t.Index)
			}
		}
	}
	for _, t := range proc.Traps {
		if !c.contains(t.Handler) || !c.contains(t.Begin) || !c.contains(t.End) {
			continue
		}
		for k := t.Begin.Index; k <= t.End.Index; k++ {
			c.g.AddEdge(k, t.Handler.Index)
		}
	}

	if n > 0 {
		c.isRoot[0] = true
	}
	for _, t := range proc.Traps {
		if c.contains(t.Handler) {
			c.isRoot[t.Handler.Index] = true
		}
	}
	for k, r := range c.isRoot {
		if r {
			c.roots = append(c.roots, c.instrs[k])
		}
	}
	return c
}

func (c *CFG) contains(i *ir.Instruction) bool {
	return i != nil && i.Index >= 0 && i.Index < len(c.instrs) && c.instrs[i.Index] == i
}

// Procedure returns the procedure of the graph
func (c *CFG) Procedure() *ir.Procedure { return c.proc }

// Len returns the number of instructions in the graph
func (c *CFG) Len() int { return len(c.instrs) }

// Instructions returns the instructions of the graph in procedure order
func (c *CFG) Instructions() []*ir.Instruction { return c.instrs }

// At returns the k-th instruction
func (c *CFG) At(k int) *ir.Instruction { return c.instrs[k] }

// Roots returns the first instruction and the handler entries, in procedure order and without duplicates
func (c *CFG) Roots() []*ir.Instruction { return c.roots }

// IsRoot returns true if i is the first instruction or a handler entry
func (c *CFG) IsRoot(i *ir.Instruction) bool { return c.isRoot[i.Index] }

// Succs returns the successors of i, normal and exceptional
func (c *CFG) Succs(i *ir.Instruction) []*ir.Instruction {
	return c.lookup(c.g.Succs(i.Index))
}

// Preds returns the predecessors of i, normal and exceptional
func (c *CFG) Preds(i *ir.Instruction) []*ir.Instruction {
	return c.lookup(c.g.Preds(i.Index))
}

func (c *CFG) lookup(ids []int) []*ir.Instruction {
	res := make([]*ir.Instruction, len(ids))
	for k, id := range ids {
		res[k] = c.instrs[id]
	}
	return res
}

// Graph returns the graph over instruction indexes
func (c *CFG) Graph() *graphutil.Digraph { return c.g }

// ConnectedWithin returns true if dst is reachable from src without leaving the instructions between src and dst
// (inclusive) in procedure order. It returns false when dst precedes src.
func (c *CFG) ConnectedWithin(src, dst *ir.Instruction) bool {
	lo, hi := src.Index, dst.Index
	if hi < lo {
		return false
	}
	visited := make([]bool, hi-lo+1)
	visited[0] = true
	queue := []int{lo}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range c.g.Succs(cur) {
			if next < lo || next > hi || visited[next-lo] {
				continue
			}
			if next == hi {
				return true
			}
			visited[next-lo] = true
			queue = append(queue, next)
		}
	}
	return false
}

// Loops returns the number of loops of the graph: strongly connected components with more than one instruction, or
// instructions that jump to themselves.
func (c *CFG) Loops() int {
	n := 0
	for _, comp := range yb.StrongComponents(c.g) {
		if len(comp) > 1 || (len(comp) == 1 && c.g.HasEdgeFromTo(int64(comp[0]), int64(comp[0]))) {
			n++
		}
	}
	return n
}
