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

// Package dominance computes the dominator sets of the instructions of a procedure and the "governs" tree of
// immediate dominators. The entry instruction and every trap handler are roots of the tree.
package dominance

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/statecraft/asmi/analysis/cfg"
	"github.com/statecraft/asmi/analysis/ir"
)

// Tree holds the dominator sets and the immediate dominator tree of a control flow graph
type Tree struct {
	cfg      *cfg.CFG
	doms     []*bitset.BitSet
	parent   []int
	children [][]*ir.Instruction
	// Iterations is the number of rounds needed to reach the fixpoint
	Iterations int
}

// New computes the dominators of every instruction of c with the iterative dataflow algorithm:
// Dom(r) = {r} for the roots, Dom(u) = {u} ∪ ⋂ Dom(p) over the predecessors p of u otherwise.
// Non-root instructions start at the full set, so an instruction without predecessors keeps the full set.
func New(c *cfg.CFG) *Tree {
	n := c.Len()
	t := &Tree{
		cfg:      c,
		doms:     make([]*bitset.BitSet, n),
		parent:   make([]int, n),
		children: make([][]*ir.Instruction, n),
	}
	full := bitset.New(uint(n)).FlipRange(0, uint(n))
	for k := 0; k < n; k++ {
		if c.IsRoot(c.At(k)) {
			t.doms[k] = bitset.New(uint(n)).Set(uint(k))
		} else {
			t.doms[k] = full.Clone()
		}
	}

	g := c.Graph()
	tmp := bitset.New(uint(n))
	for changed := true; changed; {
		changed = false
		t.Iterations++
		for k := 0; k < n; k++ {
			if c.IsRoot(c.At(k)) {
				continue
			}
			preds := g.Preds(k)
			if len(preds) == 0 {
				continue
			}
			t.doms[preds[0]].Copy(tmp)
			for _, p := range preds[1:] {
				tmp.InPlaceIntersection(t.doms[p])
			}
			tmp.Set(uint(k))
			if !tmp.Equal(t.doms[k]) {
				tmp.Copy(t.doms[k])
				changed = true
			}
		}
	}

	reachable := reachableFromRoots(c)
	for k := 0; k < n; k++ {
		t.parent[k] = -1
		if c.IsRoot(c.At(k)) || !reachable[k] {
			continue
		}
		size := t.doms[k].Count()
		for v, ok := t.doms[k].NextSet(0); ok; v, ok = t.doms[k].NextSet(v + 1) {
			if int(v) != k && t.doms[v].Count()+1 == size {
				t.parent[k] = int(v)
				t.children[v] = append(t.children[v], c.At(k))
				break
			}
		}
	}
	return t
}

func reachableFromRoots(c *cfg.CFG) []bool {
	seen := make([]bool, c.Len())
	var queue []int
	for _, r := range c.Roots() {
		seen[r.Index] = true
		queue = append(queue, r.Index)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, s := range c.Graph().Succs(cur) {
			if !seen[s] {
				seen[s] = true
				queue = append(queue, s)
			}
		}
	}
	return seen
}

// CFG returns the graph the tree was computed on
func (t *Tree) CFG() *cfg.CFG { return t.cfg }

// Children returns the instructions immediately dominated by i, in procedure order
func (t *Tree) Children(i *ir.Instruction) []*ir.Instruction {
	return t.children[i.Index]
}

// Parent returns the immediate dominator of i, or nil for roots and unreachable instructions
func (t *Tree) Parent(i *ir.Instruction) *ir.Instruction {
	if p := t.parent[i.Index]; p >= 0 {
		return t.cfg.At(p)
	}
	return nil
}

// Dominators returns Dom(i) in procedure order. i is always part of its dominators.
func (t *Tree) Dominators(i *ir.Instruction) []*ir.Instruction {
	var res []*ir.Instruction
	d := t.doms[i.Index]
	for v, ok := d.NextSet(0); ok; v, ok = d.NextSet(v + 1) {
		res = append(res, t.cfg.At(int(v)))
	}
	return res
}

// Dominates returns true if every path from a root to b goes through a
func (t *Tree) Dominates(a, b *ir.Instruction) bool {
	return t.doms[b.Index].Test(uint(a.Index))
}
