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

// An Instruction is a node of the control flow graph of a procedure.
// Index is the position of the instruction in the procedure body; it is kept up to date by the procedure's
// mutation methods.
type Instruction struct {
	Op    Op
	Pos   token.Pos
	Index int
}

func (i *Instruction) String() string {
	return fmt.Sprintf("%d: %s", i.Index, OpString(i.Op))
}

// An Op is the operation of an instruction. The set of operations is closed; use Visit to handle all of them.
type Op interface {
	op()
}

// Identity binds a local to the receiver, a parameter or a caught exception.
type Identity struct {
	Dst *Local
	Src Value
}

// Assign writes Src to Dst. Dst is a *Local, a *FieldRef, or an *OpExpr for stores through a pointer.
type Assign struct {
	Dst Value
	Src Value
}

// Invoke is a call whose result is unused.
type Invoke struct {
	Call *CallExpr
}

// If jumps to Then when Cond is true. When Else is nil, the false branch falls through to the next instruction.
type If struct {
	Cond Value
	Then *Instruction
	Else *Instruction
}

// Switch jumps to Targets[i] when Key equals Cases[i], and to Default otherwise.
// When Default is nil, control falls through to the next instruction.
type Switch struct {
	Key     Value
	Cases   []int64
	Targets []*Instruction
	Default *Instruction
}

type Goto struct {
	Target *Instruction
}

// Return exits the procedure. Result is nil for procedures without results.
type Return struct {
	Result Value
}

// Throw raises Value. In Go programs this is a panic.
type Throw struct {
	Value Value
}

type Nop struct{}

func (*Identity) op() {}
func (*Assign) op()   {}
func (*Invoke) op()   {}
func (*If) op()       {}
func (*Switch) op()   {}
func (*Goto) op()     {}
func (*Return) op()   {}
func (*Throw) op()    {}
func (*Nop) op()      {}

// A Visitor must implement methods for ALL possible operations
type Visitor interface {
	VisitIdentity(*Instruction, *Identity)
	VisitAssign(*Instruction, *Assign)
	VisitInvoke(*Instruction, *Invoke)
	VisitIf(*Instruction, *If)
	VisitSwitch(*Instruction, *Switch)
	VisitGoto(*Instruction, *Goto)
	VisitReturn(*Instruction, *Return)
	VisitThrow(*Instruction, *Throw)
	VisitNop(*Instruction, *Nop)
}

// Visit calls the method of v corresponding to the operation of i
func Visit(v Visitor, i *Instruction) {
	switch op := i.Op.(type) {
	case *Identity:
		v.VisitIdentity(i, op)
	case *Assign:
		v.VisitAssign(i, op)
	case *Invoke:
		v.VisitInvoke(i, op)
	case *If:
		v.VisitIf(i, op)
	case *Switch:
		v.VisitSwitch(i, op)
	case *Goto:
		v.VisitGoto(i, op)
	case *Return:
		v.VisitReturn(i, op)
	case *Throw:
		v.VisitThrow(i, op)
	case *Nop:
		v.VisitNop(i, op)
	default:
		panic(fmt.Sprintf("unexpected operation %T", i.Op))
	}
}

// Shape is the structural kind of an instruction, used by the state derivation
type Shape int

const (
	// Sequential instructions have at most one non-exceptional successor
	Sequential Shape = iota
	// Conditional instructions branch on a boolean condition
	Conditional
	// MultiWay instructions branch on a key
	MultiWay
)

func (s Shape) String() string {
	switch s {
	case Conditional:
		return "conditional"
	case MultiWay:
		return "multi-way"
	default:
		return "sequential"
	}
}

// ShapeOf returns the shape of i
func ShapeOf(i *Instruction) Shape {
	switch i.Op.(type) {
	case *If:
		return Conditional
	case *Switch:
		return MultiWay
	default:
		return Sequential
	}
}

// Condition returns the condition of a conditional, the key of a multi-way branch and nil otherwise
func Condition(i *Instruction) Value {
	switch op := i.Op.(type) {
	case *If:
		return op.Cond
	case *Switch:
		return op.Key
	default:
		return nil
	}
}

// Uses returns the values read by the instruction. Compound values are returned as is; use Walk to reach the
// values they are computed from.
func (i *Instruction) Uses() []Value {
	switch op := i.Op.(type) {
	case *Identity:
		return []Value{op.Src}
	case *Assign:
		if _, ok := op.Dst.(*Local); ok {
			return []Value{op.Src}
		}
		// the destination's operands are read: base of a field, address of a store
		return append(append([]Value{}, op.Dst.Operands()...), op.Src)
	case *Invoke:
		return []Value{op.Call}
	case *If:
		return []Value{op.Cond}
	case *Switch:
		return []Value{op.Key}
	case *Return:
		if op.Result == nil {
			return nil
		}
		return []Value{op.Result}
	case *Throw:
		return []Value{op.Value}
	default:
		return nil
	}
}

// Defs returns the locals defined by the instruction
func (i *Instruction) Defs() []*Local {
	switch op := i.Op.(type) {
	case *Identity:
		return []*Local{op.Dst}
	case *Assign:
		if l, ok := op.Dst.(*Local); ok {
			return []*Local{l}
		}
	}
	return nil
}

// IsIdentity returns true if the instruction binds the receiver or a parameter
func (i *Instruction) IsIdentity() bool {
	if id, ok := i.Op.(*Identity); ok {
		switch id.Src.(type) {
		case *ThisRef, *ParamRef:
			return true
		}
	}
	return false
}

// FallsThrough returns true if control can flow from i to the next instruction of the body
func (i *Instruction) FallsThrough() bool {
	switch op := i.Op.(type) {
	case *If:
		return op.Else == nil
	case *Switch:
		return op.Default == nil
	case *Goto, *Return, *Throw:
		return false
	default:
		return true
	}
}

// Targets returns the explicit branch targets of i, in order
func (i *Instruction) Targets() []*Instruction {
	switch op := i.Op.(type) {
	case *If:
		if op.Else != nil {
			return []*Instruction{op.Then, op.Else}
		}
		return []*Instruction{op.Then}
	case *Switch:
		t := append([]*Instruction{}, op.Targets...)
		if op.Default != nil {
			t = append(t, op.Default)
		}
		return t
	case *Goto:
		return []*Instruction{op.Target}
	default:
		return nil
	}
}

// RedirectTargets replaces every branch target from of i by to
func (i *Instruction) RedirectTargets(from, to *Instruction) {
	switch op := i.Op.(type) {
	case *If:
		if op.Then == from {
			op.Then = to
		}
		if op.Else == from {
			op.Else = to
		}
	case *Switch:
		for k, t := range op.Targets {
			if t == from {
				op.Targets[k] = to
			}
		}
		if op.Default == from {
			op.Default = to
		}
	case *Goto:
		if op.Target == from {
			op.Target = to
		}
	}
}
