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

package cfg

import (
	"testing"

	"github.com/statecraft/asmi/analysis/ir"
)

var work = ir.Callee{Package: "example.com/w", Name: "work"}

func indexes(instrs []*ir.Instruction) []int {
	var res []int
	for _, i := range instrs {
		res = append(res, i.Index)
	}
	return res
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if a[k] != b[k] {
			return false
		}
	}
	return true
}

// 0: x := @parameter0
// 1: if x goto 4
// 2: work()
// 3: goto 5
// 4: work()
// 5: return
func diamond() *ir.Procedure {
	b := ir.NewBuilder(nil, "diamond")
	x := b.Param(0, "bool")
	b.If(x, "then")
	b.Invoke(work)
	b.Goto("join")
	b.Label("then")
	b.Invoke(work)
	b.Label("join")
	b.Return(nil)
	return b.MustBuild()
}

func TestEdges(t *testing.T) {
	p := diamond()
	c := New(p)
	for _, tc := range []struct {
		at    int
		succs []int
		preds []int
	}{
		{0, []int{1}, nil},
		{1, []int{2, 4}, []int{0}},
		{3, []int{5}, []int{2}},
		{5, nil, []int{3, 4}},
	} {
		i := c.At(tc.at)
		if got := indexes(c.Succs(i)); !sameInts(got, tc.succs) {
			t.Errorf("succs of %d: expected %v, got %v", tc.at, tc.succs, got)
		}
		if got := indexes(c.Preds(i)); !sameInts(got, tc.preds) {
			t.Errorf("preds of %d: expected %v, got %v", tc.at, tc.preds, got)
		}
	}
	if len(c.Roots()) != 1 || c.Roots()[0] != p.Body[0] {
		t.Errorf("diamond should have one root")
	}
	if c.Loops() != 0 {
		t.Errorf("diamond has no loop")
	}
}

func TestExceptionalEdges(t *testing.T) {
	b := ir.NewBuilder(nil, "guarded")
	b.Label("begin")
	b.Invoke(work)
	b.Label("end")
	b.Invoke(work)
	b.Return(nil)
	b.Label("handler")
	e := b.CaughtException("e")
	b.Throw(e)
	b.Trap("begin", "end", "handler", "panic")
	p := b.MustBuild()
	c := New(p)

	if got := indexes(c.Preds(p.Body[3])); !sameInts(got, []int{0, 1}) {
		t.Errorf("handler should be reached from the covered instructions, got %v", got)
	}
	if got := indexes(c.Roots()); !sameInts(got, []int{0, 3}) {
		t.Errorf("roots should be the entry and the handler, got %v", got)
	}
	if !c.IsRoot(p.Body[3]) || c.IsRoot(p.Body[1]) {
		t.Errorf("wrong roots")
	}
}

func TestConnectedWithin(t *testing.T) {
	p := diamond()
	c := New(p)
	if !c.ConnectedWithin(p.Body[2], p.Body[5]) {
		t.Errorf("else branch reaches the join within [2, 5]")
	}
	if c.ConnectedWithin(p.Body[5], p.Body[2]) {
		t.Errorf("destination before source is never connected")
	}
	if c.ConnectedWithin(p.Body[2], p.Body[4]) {
		t.Errorf("the else branch does not reach the then branch")
	}
}

func TestConnectedWithinStaysInWindow(t *testing.T) {
	// 0: goto 3
	// 1: nop
	// 2: return
	// 3: goto 1
	b := ir.NewBuilder(nil, "window")
	b.Goto("back")
	b.Label("target")
	b.Nop()
	b.Return(nil)
	b.Label("back")
	b.Goto("target")
	p := b.MustBuild()
	c := New(p)
	if c.ConnectedWithin(p.Body[0], p.Body[1]) {
		t.Errorf("path from 0 to 1 leaves the window [0, 1]")
	}
	if !c.ConnectedWithin(p.Body[0], p.Body[3]) {
		t.Errorf("0 jumps directly to 3")
	}
}

func TestLoops(t *testing.T) {
	b := ir.NewBuilder(nil, "loops")
	x := b.Param(0, "bool")
	b.Label("head")
	b.If(x, "exit")
	b.Invoke(work)
	b.Goto("head")
	b.Label("exit")
	b.Label("spin")
	b.Goto("spin")
	p := b.MustBuild()
	if n := New(p).Loops(); n != 2 {
		t.Errorf("expected two loops, got %d", n)
	}
}
