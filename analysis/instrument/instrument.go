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

// Package instrument rewrites procedures so that they report their abstract states to the runtime agent.
//
// A report is a call agent.InformState(class, identity, signature, state). The identity is computed once, after the
// receiver and parameter bindings: it is the identity of the receiver, or the goroutine id for goroutine bodies and
// functions. In register mode the procedure additionally reports the terminal state -1 before every return and when
// a panic escapes the body.
package instrument

import (
	"errors"
	"fmt"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/statecraft/asmi/analysis/asm"
	"github.com/statecraft/asmi/analysis/config"
	"github.com/statecraft/asmi/analysis/ir"
)

var (
	// ErrInvalidBody is returned when an instrumented procedure fails validation
	ErrInvalidBody = errors.New("invalid procedure body")
	// ErrAlreadyInstrumented is returned when a procedure is instrumented twice by the same instrumentor
	ErrAlreadyInstrumented = errors.New("procedure already instrumented")
)

// Names of the agent functions the instrumented code calls
const (
	InformStateFunc = "InformState"
	IdentityFunc    = "Identity"
	GoroutineIDFunc = "GoroutineID"
	InitFunc        = "Init"
)

// Options parameterizes the instrumentation of one procedure
type Options struct {
	// Register reports the terminal state on every exit of the procedure
	Register bool
	// GoroutineIdentity identifies the reporting actor by its goroutine rather than by its receiver
	GoroutineIdentity bool
	// Init calls the agent initialization before anything else
	Init bool
}

// An Instrumentor inserts the reports of abstract states. It instruments every procedure at most once and is safe
// for concurrent use on distinct procedures.
type Instrumentor struct {
	agentPackage string
	logger       *config.LogGroup
	done         mapset.Set[*ir.Procedure]
}

// New returns an instrumentor calling the agent in agentPackage
func New(agentPackage string, logger *config.LogGroup) *Instrumentor {
	if agentPackage == "" {
		agentPackage = config.DefaultAgentPackage
	}
	if logger == nil {
		logger = config.NewLogGroup(config.NewDefault())
	}
	return &Instrumentor{
		agentPackage: agentPackage,
		logger:       logger,
		done:         mapset.NewSet[*ir.Procedure](),
	}
}

func (ins *Instrumentor) agent(name string) ir.Callee {
	return ir.Callee{Package: ins.agentPackage, Name: name}
}

// rewriter holds the state of the instrumentation of one procedure
type rewriter struct {
	*Instrumentor
	proc     *ir.Procedure
	identity *ir.Local
}

// report returns a new instruction reporting state
func (rw *rewriter) report(state int) *ir.Instruction {
	className := rw.proc.ClassName()
	call := &ir.CallExpr{
		Callee: rw.agent(InformStateFunc),
		Args: []ir.Value{
			ir.NewConst(strconv.Quote(className), "string"),
			rw.identity,
			ir.NewConst(strconv.Quote(rw.proc.Signature), "string"),
			ir.NewConst(strconv.Itoa(state), "int"),
		},
	}
	return &ir.Instruction{Op: &ir.Invoke{Call: call}, Pos: rw.proc.Pos}
}

// Instrument rewrites the procedure of r in place. The ids of r are reported at the selected entries, after their
// bindings, and right before each instrumentation point; branches to an instrumentation point are redirected to its
// report. The rewritten body is validated; a validation failure is returned wrapped in ErrInvalidBody.
func (ins *Instrumentor) Instrument(r *asm.Result, opts Options) error {
	proc := r.Procedure
	if len(proc.Body) == 0 {
		return nil
	}
	if !ins.done.Add(proc) {
		return fmt.Errorf("%s: %w", proc, ErrAlreadyInstrumented)
	}
	rw := &rewriter{Instrumentor: ins, proc: proc}
	rw.identity = proc.NewLocal("asmiID", "int64")

	for _, e := range r.Entries {
		if !e.Selected {
			continue
		}
		id, ok := r.ID(e.Instr)
		if !ok {
			return fmt.Errorf("%s: entry %s has no id: %w", proc, e.Instr, ErrInvalidBody)
		}
		rw.insertAtEntry(e.Instr, rw.report(id))
	}
	// points are inserted in procedure order so that the listing is deterministic
	var points []*ir.Instruction
	for _, i := range proc.Body {
		if r.Points.Contains(i) && !r.IsEntry(i) {
			points = append(points, i)
		}
	}
	for _, i := range points {
		proc.InsertBefore(i, rw.report(r.IDs[i]))
	}

	k := proc.LeadingIdentities()
	if k >= len(proc.Body) {
		return fmt.Errorf("%s: body has only bindings: %w", proc, ErrInvalidBody)
	}
	first := proc.Body[k]
	proc.InsertBeforeNoRedirect(first, rw.prologue(opts)...)

	terminals := 0
	if opts.Register {
		terminals = rw.register(first)
	}
	ins.logger.Debugf("%s: instrumented %d states, %d terminal reports", proc, r.Count, terminals)

	return Validate(proc)
}

// insertAtEntry inserts instr after the bindings that start at entry. An entry without bindings gets the report
// right before it.
func (rw *rewriter) insertAtEntry(entry *ir.Instruction, instr *ir.Instruction) {
	if _, isBinding := entry.Op.(*ir.Identity); !isBinding {
		if entry.Index == 0 {
			rw.proc.InsertBeforeNoRedirect(entry, instr)
		} else {
			rw.proc.InsertBefore(entry, instr)
		}
		return
	}
	last := entry
	for k := entry.Index + 1; k < len(rw.proc.Body) && rw.proc.Body[k].IsIdentity(); k++ {
		last = rw.proc.Body[k]
	}
	rw.proc.InsertAfter(last, instr)
}

// prologue returns the instructions computing the identity of the actor
func (rw *rewriter) prologue(opts Options) []*ir.Instruction {
	var res []*ir.Instruction
	if opts.Init {
		res = append(res, &ir.Instruction{
			Op:  &ir.Invoke{Call: &ir.CallExpr{Callee: rw.agent(InitFunc)}},
			Pos: rw.proc.Pos,
		})
	}
	var src *ir.CallExpr
	if receiver := rw.receiver(); receiver != nil && !opts.GoroutineIdentity {
		src = &ir.CallExpr{Callee: rw.agent(IdentityFunc), Args: []ir.Value{receiver}}
	} else {
		src = &ir.CallExpr{Callee: rw.agent(GoroutineIDFunc)}
	}
	res = append(res, &ir.Instruction{Op: &ir.Assign{Dst: rw.identity, Src: src}, Pos: rw.proc.Pos})
	return res
}

// receiver returns the local bound to the receiver, if any
func (rw *rewriter) receiver() *ir.Local {
	for _, i := range rw.proc.Body {
		id, ok := i.Op.(*ir.Identity)
		if !ok || !i.IsIdentity() {
			return nil
		}
		if _, isThis := id.Src.(*ir.ThisRef); isThis {
			return id.Dst
		}
	}
	return nil
}

// register reports the terminal state before every return and wraps the body from first to its current end in a
// handler that reports the terminal state and panics again. It returns the number of terminal reports.
func (rw *rewriter) register(first *ir.Instruction) int {
	proc := rw.proc
	var returns []*ir.Instruction
	for _, i := range proc.Body {
		if _, ok := i.Op.(*ir.Return); ok {
			returns = append(returns, i)
		}
	}
	for _, ret := range returns {
		proc.InsertBefore(ret, rw.report(asm.Terminal))
	}

	last := proc.Body[len(proc.Body)-1]
	exc := proc.NewLocal("asmiPanic", "any")
	handler := &ir.Instruction{Op: &ir.Identity{Dst: exc, Src: &ir.CaughtExceptionRef{}}, Pos: proc.Pos}
	proc.Append(handler, rw.report(asm.Terminal), &ir.Instruction{Op: &ir.Throw{Value: exc}, Pos: proc.Pos})
	proc.Traps = append(proc.Traps, &ir.Trap{Begin: first, End: last, Handler: handler, Exception: "any"})
	return len(returns) + 1
}
