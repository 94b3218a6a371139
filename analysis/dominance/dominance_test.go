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

package dominance

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/statecraft/asmi/analysis/cfg"
	"github.com/statecraft/asmi/analysis/ir"
)

var work = ir.Callee{Package: "example.com/w", Name: "work"}

func indexes(instrs []*ir.Instruction) []int {
	res := []int{}
	for _, i := range instrs {
		res = append(res, i.Index)
	}
	return res
}

type expectation struct {
	doms     map[int][]int
	children map[int][]int
}

func check(t *testing.T, p *ir.Procedure, e expectation) *Tree {
	tree := New(cfg.New(p))
	for k, doms := range e.doms {
		if diff := cmp.Diff(doms, indexes(tree.Dominators(p.Body[k]))); diff != "" {
			t.Errorf("Dom(%d) mismatch (-want +got):\n%s", k, diff)
		}
	}
	for k, children := range e.children {
		if diff := cmp.Diff(children, indexes(tree.Children(p.Body[k]))); diff != "" {
			t.Errorf("children of %d mismatch (-want +got):\n%s", k, diff)
		}
	}
	if err := Verify(tree); err != nil {
		t.Errorf("verification failed: %v", err)
	}
	return tree
}

func TestStraightLine(t *testing.T) {
	b := ir.NewBuilder(nil, "line")
	b.Invoke(work)
	b.Invoke(work)
	b.Return(nil)
	p := b.MustBuild()
	tree := check(t, p, expectation{
		doms:     map[int][]int{0: {0}, 1: {0, 1}, 2: {0, 1, 2}},
		children: map[int][]int{0: {1}, 1: {2}, 2: {}},
	})
	if tree.Parent(p.Body[0]) != nil || tree.Parent(p.Body[2]) != p.Body[1] {
		t.Errorf("wrong parents")
	}
	if !tree.Dominates(p.Body[0], p.Body[2]) || tree.Dominates(p.Body[2], p.Body[1]) {
		t.Errorf("wrong dominance relation")
	}
}

func TestDiamond(t *testing.T) {
	b := ir.NewBuilder(nil, "diamond")
	x := b.Param(0, "bool")
	b.If(x, "then")
	b.Invoke(work)
	b.Goto("join")
	b.Label("then")
	b.Invoke(work)
	b.Label("join")
	b.Return(nil)
	p := b.MustBuild()
	check(t, p, expectation{
		doms: map[int][]int{
			3: {0, 1, 2, 3},
			4: {0, 1, 4},
			5: {0, 1, 5},
		},
		children: map[int][]int{1: {2, 4, 5}, 2: {3}, 3: {}},
	})
}

func TestLoop(t *testing.T) {
	b := ir.NewBuilder(nil, "loop")
	x := b.Param(0, "bool")
	b.Label("head")
	b.If(x, "exit")
	b.Invoke(work)
	b.Goto("head")
	b.Label("exit")
	b.Return(nil)
	p := b.MustBuild()
	check(t, p, expectation{
		doms: map[int][]int{
			1: {0, 1},
			3: {0, 1, 2, 3},
			4: {0, 1, 4},
		},
		children: map[int][]int{1: {2, 4}, 3: {}},
	})
}

func TestIrreducible(t *testing.T) {
	// two entries into the cycle {2, 3, 5, 6}
	b := ir.NewBuilder(nil, "irreducible")
	x := b.Param(0, "bool")
	b.If(x, "b")
	b.Label("a")
	b.Nop()
	b.If(x, "b")
	b.Return(nil)
	b.Label("b")
	b.Nop()
	b.Goto("a")
	p := b.MustBuild()
	check(t, p, expectation{
		doms: map[int][]int{
			2: {0, 1, 2},
			3: {0, 1, 2, 3},
			5: {0, 1, 5},
			6: {0, 1, 5, 6},
		},
		children: map[int][]int{1: {2, 5}, 2: {3}, 3: {4}, 5: {6}},
	})
}

func TestHandlersAreRoots(t *testing.T) {
	b := ir.NewBuilder(nil, "guarded")
	b.Label("begin")
	b.Invoke(work)
	b.Label("end")
	b.Invoke(work)
	b.Return(nil)
	b.Label("handler")
	e := b.CaughtException("e")
	b.Invoke(work)
	b.Throw(e)
	b.Trap("begin", "end", "handler", "panic")
	p := b.MustBuild()
	tree := check(t, p, expectation{
		doms:     map[int][]int{3: {3}, 4: {3, 4}, 5: {3, 4, 5}},
		children: map[int][]int{0: {1}, 3: {4}},
	})
	if tree.Parent(p.Body[3]) != nil {
		t.Errorf("handler entry should not have a parent")
	}
}

func TestUnreachableKeepsFullSet(t *testing.T) {
	b := ir.NewBuilder(nil, "dead")
	b.Return(nil)
	b.Nop()
	b.Return(nil)
	p := b.MustBuild()
	tree := check(t, p, expectation{
		doms:     map[int][]int{1: {0, 1, 2}, 2: {0, 1, 2}},
		children: map[int][]int{0: {}, 1: {}},
	})
	if tree.Parent(p.Body[1]) != nil || tree.Parent(p.Body[2]) != nil {
		t.Errorf("unreachable instructions should not have a parent")
	}
}
