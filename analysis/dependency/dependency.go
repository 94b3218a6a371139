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

// Package dependency implements a forward taint analysis over the locals of a procedure. A local is tainted when
// its value derives from a state field of the class, from the receiver, or from another tainted local.
package dependency

import (
	"github.com/bits-and-blooms/bitset"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/statecraft/asmi/analysis/cfg"
	"github.com/statecraft/asmi/analysis/ir"
)

// Analysis holds the set of tainted locals after each instruction
type Analysis struct {
	cfg   *cfg.CFG
	state mapset.Set[*ir.Field]
	out   []*bitset.BitSet
}

// New runs the taint analysis on c. state is the set of fields whose reads introduce taint; it may be nil.
// The flow entering an instruction is the union of the flows leaving its predecessors, starting from the empty set.
func New(c *cfg.CFG, state mapset.Set[*ir.Field]) *Analysis {
	if state == nil {
		state = mapset.NewSet[*ir.Field]()
	}
	n := c.Len()
	width := uint(len(c.Procedure().Locals))
	a := &Analysis{cfg: c, state: state, out: make([]*bitset.BitSet, n)}
	for k := range a.out {
		a.out[k] = bitset.New(width)
	}

	g := c.Graph()
	in := bitset.New(width)
	for changed := true; changed; {
		changed = false
		for k := 0; k < n; k++ {
			in.ClearAll()
			for _, p := range g.Preds(k) {
				in.InPlaceUnion(a.out[p])
			}
			next := a.transfer(in, c.At(k))
			if !next.Equal(a.out[k]) {
				a.out[k] = next
				changed = true
			}
		}
	}
	return a
}

// transfer kills the locals redefined by i, then taints them again if i reads state
func (a *Analysis) transfer(in *bitset.BitSet, i *ir.Instruction) *bitset.BitSet {
	out := in.Clone()
	intro := false
	for _, u := range i.Uses() {
		ir.Walk(u, func(v ir.Value) {
			switch v := v.(type) {
			case *ir.FieldRef:
				if a.state.Contains(v.Field) {
					intro = true
				}
			case *ir.ThisRef:
				intro = true
			case *ir.Local:
				if in.Test(uint(v.Index)) {
					intro = true
				}
			}
		})
	}
	defs := i.Defs()
	for _, d := range defs {
		out.Clear(uint(d.Index))
	}
	if intro {
		for _, d := range defs {
			out.Set(uint(d.Index))
		}
	}
	return out
}

// Tainted returns the locals tainted after i, in index order
func (a *Analysis) Tainted(i *ir.Instruction) []*ir.Local {
	var res []*ir.Local
	locals := a.cfg.Procedure().Locals
	out := a.out[i.Index]
	for v, ok := out.NextSet(0); ok; v, ok = out.NextSet(v + 1) {
		if int(v) < len(locals) {
			res = append(res, locals[v])
		}
	}
	return res
}

// IsTainted returns true if the value of v after i depends on state. A local is tested against the taint set after
// i; any other value is tainted if one of the values it is computed from is a tainted local or a state field read.
func (a *Analysis) IsTainted(i *ir.Instruction, v ir.Value) bool {
	if v == nil {
		return false
	}
	out := a.out[i.Index]
	if l, ok := v.(*ir.Local); ok {
		return out.Test(uint(l.Index))
	}
	tainted := false
	ir.Walk(v, func(x ir.Value) {
		switch x := x.(type) {
		case *ir.Local:
			if out.Test(uint(x.Index)) {
				tainted = true
			}
		case *ir.FieldRef:
			if a.state.Contains(x.Field) {
				tainted = true
			}
		}
	})
	return tainted
}
