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

package dependency

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/statecraft/asmi/analysis/cfg"
	"github.com/statecraft/asmi/analysis/ir"
)

func names(locals []*ir.Local) map[string]bool {
	res := map[string]bool{}
	for _, l := range locals {
		res[l.Name] = true
	}
	return res
}

func TestReceiverAndStateFieldsTaint(t *testing.T) {
	c := &ir.Class{Name: "Server", Package: "example.com/s"}
	state := c.AddField("state", "int")
	other := c.AddField("other", "int")
	b := ir.NewBuilder(c, "Handle")
	this := b.This()
	p := b.Param(0, "int")
	x := b.Local("x", "int")
	y := b.Local("y", "int")
	z := b.Local("z", "int")
	b.Assign(x, p)
	// other is not a state field, y is tainted through the receiver
	b.Assign(y, ir.FieldOf(this, other))
	b.Assign(z, ir.NewOp("+", x, ir.NewConst("1", "int")))
	b.Assign(x, ir.FieldOf(this, state))
	b.Assign(x, ir.NewConst("0", "int"))
	b.Return(nil)
	proc := b.MustBuild()

	a := New(cfg.New(proc), mapset.NewSet(state))
	for _, tc := range []struct {
		at      int
		tainted []string
		clean   []string
	}{
		{0, []string{"this"}, []string{"p0"}},
		{2, []string{"this"}, []string{"x"}},
		{3, []string{"this", "y"}, []string{"x"}},
		{4, []string{"this", "y"}, []string{"x", "z"}},
		{5, []string{"this", "y", "x"}, []string{"z"}},
		{6, []string{"this", "y"}, []string{"x", "z"}},
	} {
		got := names(a.Tainted(proc.Body[tc.at]))
		for _, n := range tc.tainted {
			if !got[n] {
				t.Errorf("%s should be tainted after %d", n, tc.at)
			}
		}
		for _, n := range tc.clean {
			if got[n] {
				t.Errorf("%s should not be tainted after %d", n, tc.at)
			}
		}
	}

	if !a.IsTainted(proc.Body[5], x) || a.IsTainted(proc.Body[6], x) {
		t.Errorf("local tests should use the taint set after the instruction")
	}
	if !a.IsTainted(proc.Body[4], ir.NewOp("==", ir.FieldOf(p, state), ir.NewConst("0", "int"))) {
		t.Errorf("reading a state field is tainted regardless of the base")
	}
	if a.IsTainted(proc.Body[4], ir.NewOp("==", z, ir.NewConst("0", "int"))) {
		t.Errorf("z does not depend on state")
	}
	if a.IsTainted(proc.Body[4], nil) {
		t.Errorf("nil is never tainted")
	}
}

func TestTaintMergesByUnion(t *testing.T) {
	c := &ir.Class{Name: "Server", Package: "example.com/s"}
	state := c.AddField("state", "bool")
	b := ir.NewBuilder(nil, "merge")
	p := b.Param(0, "*example.com/s.Server")
	cond := b.Local("c", "bool")
	x := b.Local("x", "bool")
	b.Assign(cond, ir.NewConst("true", "bool"))
	b.If(cond, "then")
	b.Assign(x, ir.NewConst("false", "bool"))
	b.Goto("join")
	b.Label("then")
	b.Assign(x, ir.FieldOf(p, state))
	b.Label("join")
	b.If(x, "join")
	b.Return(nil)
	proc := b.MustBuild()

	a := New(cfg.New(proc), mapset.NewSet(state))
	join := proc.Body[6]
	if !a.IsTainted(join, x) {
		t.Errorf("x is tainted on one path into the join, it should be tainted after it")
	}
	if a.IsTainted(proc.Body[2], cond) {
		t.Errorf("a constant condition is not tainted")
	}
}
