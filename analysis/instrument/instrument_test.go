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

package instrument

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/statecraft/asmi/analysis/asm"
	"github.com/statecraft/asmi/analysis/ir"
)

const agentPkg = "example.com/agent"

var (
	workA = ir.Callee{Package: "example.com/w", Name: "a"}
	workB = ir.Callee{Package: "example.com/w", Name: "b"}
	workC = ir.Callee{Package: "example.com/w", Name: "c"}
	calls = asm.PredicateFunc(func(i *ir.Instruction) bool { return ir.FirstCall(i) != nil })
)

// reported returns the state reported by i, if i is a report
func reported(i *ir.Instruction) (int, bool) {
	inv, ok := i.Op.(*ir.Invoke)
	if !ok || inv.Call.Callee.Name != InformStateFunc || inv.Call.Callee.Package != agentPkg {
		return 0, false
	}
	state, err := strconv.Atoi(inv.Call.Args[3].(*ir.Const).Repr)
	if err != nil {
		return 0, false
	}
	return state, true
}

func reports(proc *ir.Procedure) []int {
	var res []int
	for _, i := range proc.Body {
		if s, ok := reported(i); ok {
			res = append(res, s)
		}
	}
	return res
}

func calleeOf(i *ir.Instruction) string {
	if c := ir.FirstCall(i); c != nil {
		return c.Callee.Name
	}
	return ""
}

func derive(t *testing.T, proc *ir.Procedure, state *ir.Field) *asm.Result {
	fields := mapset.NewSet[*ir.Field]()
	if state != nil {
		fields.Add(state)
	}
	r, err := asm.Analyze(proc, fields, calls, asm.Options{})
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	return r
}

func listing(proc *ir.Procedure) string {
	var b strings.Builder
	_ = ir.Fprint(&b, proc, nil)
	return b.String()
}

func TestInstrumentEntryAndPoints(t *testing.T) {
	class := &ir.Class{Name: "Server", Package: "example.com/s"}
	state := class.AddField("state", "bool")
	b := ir.NewBuilder(class, "Handle")
	this := b.This()
	c := b.Local("c", "bool")
	b.Assign(c, ir.FieldOf(this, state))
	b.If(c, "then")
	b.Invoke(workA)
	b.Goto("join")
	b.Label("then")
	b.Invoke(workB)
	b.Label("join")
	b.Invoke(workC)
	b.Return(nil)
	proc := b.MustBuild()
	branch := proc.Body[2]

	r := derive(t, proc, state)
	if err := New(agentPkg, nil).Instrument(r, Options{}); err != nil {
		t.Fatalf("instrumentation failed: %v", err)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, reports(proc)); diff != "" {
		t.Errorf("reports mismatch (-want +got):\n%s", diff)
	}
	if len(proc.Body) != 12 {
		t.Fatalf("expected 12 instructions, got:\n%s", listing(proc))
	}
	if calleeOf(proc.Body[1]) != IdentityFunc {
		t.Errorf("the identity should be computed right after the bindings:\n%s", listing(proc))
	}
	if id := ir.FirstCall(proc.Body[1]); len(id.Args) != 1 || id.Args[0] != this {
		t.Errorf("the identity should be the identity of the receiver")
	}
	if s, ok := reported(proc.Body[2]); !ok || s != 0 {
		t.Errorf("the entry state should be reported before the body:\n%s", listing(proc))
	}
	then := branch.Op.(*ir.If).Then
	if s, ok := reported(then); !ok || s != 2 {
		t.Errorf("the branch should jump to the report of its body:\n%s", listing(proc))
	}
	if calleeOf(proc.Body[then.Index+1]) != workB.Name {
		t.Errorf("the report should precede its instrumentation point:\n%s", listing(proc))
	}
	if len(proc.Traps) != 0 {
		t.Errorf("no handler should be added outside register mode")
	}
}

func TestInstrumentRegister(t *testing.T) {
	class := &ir.Class{Name: "Worker", Package: "example.com/s"}
	state := class.AddField("state", "bool")
	b := ir.NewBuilder(class, "Run")
	this := b.This()
	b.If(ir.FieldOf(this, state), "then")
	b.Invoke(workA)
	b.Return(nil)
	b.Label("then")
	b.Invoke(workB)
	b.Return(nil)
	proc := b.MustBuild()

	r := derive(t, proc, state)
	if err := New(agentPkg, nil).Instrument(r, Options{Register: true, GoroutineIdentity: true}); err != nil {
		t.Fatalf("instrumentation failed: %v", err)
	}
	if diff := cmp.Diff([]int{0, 1, -1, 2, -1, -1}, reports(proc)); diff != "" {
		t.Errorf("reports mismatch (-want +got):\n%s", diff)
	}
	if calleeOf(proc.Body[1]) != GoroutineIDFunc {
		t.Errorf("a goroutine body should be identified by its goroutine:\n%s", listing(proc))
	}
	for k, i := range proc.Body {
		if _, ok := i.Op.(*ir.Return); ok {
			if s, ok := reported(proc.Body[k-1]); !ok || s != asm.Terminal {
				t.Errorf("return %d is not preceded by a terminal report:\n%s", k, listing(proc))
			}
		}
	}
	if len(proc.Traps) != 1 {
		t.Fatalf("expected exactly one handler, got %d", len(proc.Traps))
	}
	trap := proc.Traps[0]
	if s, ok := reported(trap.Begin); !ok || s != 0 {
		t.Errorf("the handler should cover the body from the entry report")
	}
	if trap.End.Index != trap.Handler.Index-1 {
		t.Errorf("the handler should cover the body up to its end")
	}
	if s, ok := reported(proc.Body[trap.Handler.Index+1]); !ok || s != asm.Terminal {
		t.Errorf("the handler should report the terminal state")
	}
	if _, ok := proc.Body[len(proc.Body)-1].Op.(*ir.Throw); !ok {
		t.Errorf("the handler should panic again")
	}
}

func TestInstrumentHandlerEntry(t *testing.T) {
	b := ir.NewBuilder(nil, "guarded")
	b.Label("begin")
	b.Invoke(workA)
	b.Return(nil)
	b.Label("handler")
	e := b.CaughtException("e")
	b.Invoke(workB, e)
	b.Throw(e)
	b.Trap("begin", "begin", "handler", "any")
	proc := b.MustBuild()

	r := derive(t, proc, nil)
	if err := New(agentPkg, nil).Instrument(r, Options{Init: true}); err != nil {
		t.Fatalf("instrumentation failed: %v", err)
	}
	if calleeOf(proc.Body[0]) != InitFunc || calleeOf(proc.Body[1]) != GoroutineIDFunc {
		t.Errorf("a function should initialize the agent and use the goroutine identity:\n%s", listing(proc))
	}
	handler := proc.Traps[0].Handler
	if _, ok := handler.Op.(*ir.Identity); !ok {
		t.Fatalf("the handler should still start with its binding:\n%s", listing(proc))
	}
	if s, ok := reported(proc.Body[handler.Index+1]); !ok || s != 1 {
		t.Errorf("the handler entry should be reported after its binding:\n%s", listing(proc))
	}
	if diff := cmp.Diff([]int{0, 1}, reports(proc)); diff != "" {
		t.Errorf("reports mismatch (-want +got):\n%s", diff)
	}
}

func TestInstrumentOnce(t *testing.T) {
	b := ir.NewBuilder(nil, "once")
	b.Invoke(workA)
	b.Return(nil)
	proc := b.MustBuild()
	ins := New(agentPkg, nil)
	r := derive(t, proc, nil)
	if err := ins.Instrument(r, Options{}); err != nil {
		t.Fatalf("instrumentation failed: %v", err)
	}
	if err := ins.Instrument(r, Options{}); !errors.Is(err, ErrAlreadyInstrumented) {
		t.Errorf("expected ErrAlreadyInstrumented, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *ir.Procedure {
		b := ir.NewBuilder(nil, "f")
		b.Param(0, "int")
		b.Label("begin")
		b.Invoke(workA)
		b.Return(nil)
		b.Label("handler")
		e := b.CaughtException("e")
		b.Throw(e)
		b.Trap("begin", "begin", "handler", "any")
		return b.MustBuild()
	}
	if err := Validate(valid()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for name, breakIt := range map[string]func(p *ir.Procedure){
		"falls off the end": func(p *ir.Procedure) {
			p.Append(&ir.Instruction{Op: &ir.Nop{}})
		},
		"binding after start": func(p *ir.Procedure) {
			p.InsertAfter(p.Body[1], &ir.Instruction{Op: &ir.Identity{Dst: p.Locals[0], Src: &ir.ParamRef{}}})
		},
		"handler without binding": func(p *ir.Procedure) {
			p.Traps[0].Handler = p.Body[2]
		},
		"trap covers its handler": func(p *ir.Procedure) {
			p.Traps[0].End = p.Traps[0].Handler
		},
		"undeclared local": func(p *ir.Procedure) {
			p.InsertBefore(p.Body[1], &ir.Instruction{Op: &ir.Invoke{Call: &ir.CallExpr{
				Callee: workA, Args: []ir.Value{&ir.Local{Name: "ghost", Index: 7}},
			}}})
		},
		"branch outside the body": func(p *ir.Procedure) {
			p.InsertBefore(p.Body[2], &ir.Instruction{Op: &ir.Goto{Target: &ir.Instruction{Op: &ir.Nop{}, Index: 1}}})
		},
		"stale index": func(p *ir.Procedure) {
			p.Body[1].Index = 5
		},
	} {
		p := valid()
		breakIt(p)
		if err := Validate(p); !errors.Is(err, ErrInvalidBody) {
			t.Errorf("%s: expected ErrInvalidBody, got %v", name, err)
		}
	}
}
