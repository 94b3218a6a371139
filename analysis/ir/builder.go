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

package ir

import (
	"fmt"
	"go/token"
)

// A Builder assembles a procedure instruction by instruction. Branch targets and trap bounds are named by labels
// that are resolved by Build; a label set by Label designates the next emitted instruction.
type Builder struct {
	proc    *Procedure
	labels  map[string]*Instruction
	pending []string
	fixups  []fixup
	traps   []trapLabels
	pos     token.Pos
}

type fixup struct {
	label string
	set   func(*Instruction)
}

type trapLabels struct {
	begin, end, handler, exception string
}

// NewBuilder returns a builder for a method name of class. When class is nil, the procedure is a static function.
func NewBuilder(class *Class, name string) *Builder {
	p := &Procedure{Class: class, Name: name, SubSignature: name + "()"}
	if class == nil {
		p.Static = true
		p.Signature = name
	} else {
		p.Package = class.Package
		p.Signature = "(" + class.QualifiedName() + ")." + name
	}
	return &Builder{proc: p, labels: map[string]*Instruction{}}
}

// Procedure returns the procedure under construction
func (b *Builder) Procedure() *Procedure { return b.proc }

// SetPos sets the position of the instructions emitted next
func (b *Builder) SetPos(pos token.Pos) { b.pos = pos }

// Label names the next emitted instruction
func (b *Builder) Label(name string) {
	b.pending = append(b.pending, name)
}

// Local adds a local to the procedure
func (b *Builder) Local(name string, typ string) *Local {
	return b.proc.NewLocal(name, typ)
}

func (b *Builder) emit(op Op) *Instruction {
	i := &Instruction{Op: op, Pos: b.pos, Index: len(b.proc.Body)}
	b.proc.Body = append(b.proc.Body, i)
	for _, l := range b.pending {
		b.labels[l] = i
	}
	b.pending = nil
	return i
}

func (b *Builder) ref(label string, set func(*Instruction)) {
	b.fixups = append(b.fixups, fixup{label: label, set: set})
}

// This binds the receiver to a new local
func (b *Builder) This() *Local {
	typ := "*" + b.proc.ClassName()
	l := b.Local("this", typ)
	b.emit(&Identity{Dst: l, Src: &ThisRef{Type: typ}})
	return l
}

// Param binds the i-th parameter to a new local
func (b *Builder) Param(i int, typ string) *Local {
	l := b.Local(fmt.Sprintf("p%d", i), typ)
	b.emit(&Identity{Dst: l, Src: &ParamRef{Index: i, Type: typ}})
	return l
}

// CaughtException binds the recovered value to a new local. It starts a trap handler.
func (b *Builder) CaughtException(name string) *Local {
	l := b.Local(name, "any")
	b.emit(&Identity{Dst: l, Src: &CaughtExceptionRef{}})
	return l
}

// Assign emits dst = src
func (b *Builder) Assign(dst Value, src Value) *Instruction {
	return b.emit(&Assign{Dst: dst, Src: src})
}

// Invoke emits a call whose result is dropped
func (b *Builder) Invoke(callee Callee, args ...Value) *Instruction {
	return b.emit(&Invoke{Call: &CallExpr{Callee: callee, Args: args}})
}

// Call emits dst = callee(args...)
func (b *Builder) Call(dst *Local, callee Callee, args ...Value) *Instruction {
	return b.emit(&Assign{Dst: dst, Src: &CallExpr{Callee: callee, Args: args}})
}

// If emits a conditional jump to then; the false branch falls through
func (b *Builder) If(cond Value, then string) *Instruction {
	op := &If{Cond: cond}
	b.ref(then, func(i *Instruction) { op.Then = i })
	return b.emit(op)
}

// IfElse emits a conditional jump with both targets explicit
func (b *Builder) IfElse(cond Value, then string, els string) *Instruction {
	op := &If{Cond: cond}
	b.ref(then, func(i *Instruction) { op.Then = i })
	b.ref(els, func(i *Instruction) { op.Else = i })
	return b.emit(op)
}

// Switch emits a multi-way branch. An empty def falls through to the next instruction.
func (b *Builder) Switch(key Value, cases []int64, targets []string, def string) *Instruction {
	op := &Switch{Key: key, Cases: cases, Targets: make([]*Instruction, len(targets))}
	for k, t := range targets {
		k := k
		b.ref(t, func(i *Instruction) { op.Targets[k] = i })
	}
	if def != "" {
		b.ref(def, func(i *Instruction) { op.Default = i })
	}
	return b.emit(op)
}

func (b *Builder) Goto(label string) *Instruction {
	op := &Goto{}
	b.ref(label, func(i *Instruction) { op.Target = i })
	return b.emit(op)
}

// Return emits a return of v; v may be nil
func (b *Builder) Return(v Value) *Instruction {
	return b.emit(&Return{Result: v})
}

func (b *Builder) Throw(v Value) *Instruction {
	return b.emit(&Throw{Value: v})
}

func (b *Builder) Nop() *Instruction {
	return b.emit(&Nop{})
}

// Trap routes panics raised between the instructions labelled begin and end (inclusive) to the handler label
func (b *Builder) Trap(begin, end, handler string, exception string) {
	b.traps = append(b.traps, trapLabels{begin: begin, end: end, handler: handler, exception: exception})
}

// Build resolves the labels and returns the procedure
func (b *Builder) Build() (*Procedure, error) {
	if len(b.pending) > 0 {
		return nil, fmt.Errorf("labels %v do not designate an instruction", b.pending)
	}
	resolve := func(l string) (*Instruction, error) {
		i, ok := b.labels[l]
		if !ok {
			return nil, fmt.Errorf("undefined label %q in %s", l, b.proc.Signature)
		}
		return i, nil
	}
	for _, f := range b.fixups {
		i, err := resolve(f.label)
		if err != nil {
			return nil, err
		}
		f.set(i)
	}
	for _, t := range b.traps {
		begin, err := resolve(t.begin)
		if err != nil {
			return nil, err
		}
		end, err := resolve(t.end)
		if err != nil {
			return nil, err
		}
		handler, err := resolve(t.handler)
		if err != nil {
			return nil, err
		}
		b.proc.Traps = append(b.proc.Traps, &Trap{Begin: begin, End: end, Handler: handler, Exception: t.exception})
	}
	b.proc.Renumber()
	if b.proc.Class != nil {
		b.proc.Class.Methods = append(b.proc.Class.Methods, b.proc)
	}
	return b.proc, nil
}

// MustBuild is Build but panics on errors
func (b *Builder) MustBuild() *Procedure {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}
