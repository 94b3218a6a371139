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
	"strings"
)

// A Value is an operand of an instruction. The set of values is closed: Local, Const, FieldRef, ThisRef, ParamRef,
// CaughtExceptionRef, CallExpr and OpExpr.
type Value interface {
	fmt.Stringer
	// Operands returns the values this value is directly computed from
	Operands() []Value
	value()
}

// Walk calls f on v and then on every value v is computed from, depth first.
func Walk(v Value, f func(Value)) {
	if v == nil {
		return
	}
	f(v)
	for _, o := range v.Operands() {
		Walk(o, f)
	}
}

// A Local is a procedure-local variable. Index is dense in the procedure's locals.
type Local struct {
	Name  string
	Index int
	Type  string
}

func (l *Local) Operands() []Value { return nil }
func (l *Local) String() string    { return l.Name }
func (l *Local) value()            {}

// Const is an opaque constant: literals, functions and builtins.
type Const struct {
	Repr string
	Type string
}

// NewConst returns a constant with representation repr
func NewConst(repr string, typ string) *Const { return &Const{Repr: repr, Type: typ} }

func (c *Const) Operands() []Value { return nil }
func (c *Const) String() string    { return c.Repr }
func (c *Const) value()            {}

// A FieldRef reads or writes Field of the object in Base. Base is nil for static fields (package variables).
type FieldRef struct {
	Base  *Local
	Field *Field
}

// FieldOf returns the reference base.f
func FieldOf(base *Local, f *Field) *FieldRef { return &FieldRef{Base: base, Field: f} }

func (r *FieldRef) Operands() []Value {
	if r.Base == nil {
		return nil
	}
	return []Value{r.Base}
}

func (r *FieldRef) String() string {
	if r.Base == nil {
		return "<" + r.Field.String() + ">"
	}
	return r.Base.Name + ".<" + r.Field.String() + ">"
}
func (r *FieldRef) value() {}

// ThisRef is the receiver of the procedure. It only appears on the right of an Identity.
type ThisRef struct {
	Type string
}

func (t *ThisRef) Operands() []Value { return nil }
func (t *ThisRef) String() string    { return "@this: " + t.Type }
func (t *ThisRef) value()            {}

// ParamRef is the i-th parameter of the procedure. It only appears on the right of an Identity.
type ParamRef struct {
	Index int
	Type  string
}

func (p *ParamRef) Operands() []Value { return nil }
func (p *ParamRef) String() string    { return fmt.Sprintf("@parameter%d: %s", p.Index, p.Type) }
func (p *ParamRef) value()            {}

// CaughtExceptionRef is the value recovered at the entry of a trap handler.
type CaughtExceptionRef struct{}

func (c *CaughtExceptionRef) Operands() []Value { return nil }
func (c *CaughtExceptionRef) String() string    { return "@caughtexception" }
func (c *CaughtExceptionRef) value()            {}

// A Callee identifies the target of a call. Type is empty for functions.
type Callee struct {
	Package string
	Type    string
	Name    string
}

func (c Callee) String() string {
	if c.Type == "" {
		return c.Package + "." + c.Name
	}
	return c.Package + "." + c.Type + "." + c.Name
}

// CallMode distinguishes plain calls from calls in go and defer statements
type CallMode int

const (
	CallDirect CallMode = iota
	CallGo
	CallDefer
)

// A CallExpr calls Callee with Args. For method calls the receiver is the first argument.
type CallExpr struct {
	Callee Callee
	Args   []Value
	Mode   CallMode
}

func (c *CallExpr) Operands() []Value { return c.Args }

func (c *CallExpr) String() string {
	var b strings.Builder
	switch c.Mode {
	case CallGo:
		b.WriteString("go ")
	case CallDefer:
		b.WriteString("defer ")
	}
	b.WriteString(c.Callee.String())
	b.WriteString("(")
	writeValues(&b, c.Args)
	b.WriteString(")")
	return b.String()
}
func (c *CallExpr) value() {}

// An OpExpr is any other computation: arithmetic, conversions, allocations, phi nodes, dereferences.
type OpExpr struct {
	Op   string
	Args []Value
	Type string
}

// NewOp returns the expression op(args...)
func NewOp(op string, args ...Value) *OpExpr { return &OpExpr{Op: op, Args: args} }

func (o *OpExpr) Operands() []Value { return o.Args }

func (o *OpExpr) String() string {
	var b strings.Builder
	b.WriteString(o.Op)
	b.WriteString("(")
	writeValues(&b, o.Args)
	b.WriteString(")")
	return b.String()
}
func (o *OpExpr) value() {}

func writeValues(b *strings.Builder, values []Value) {
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		if v == nil {
			b.WriteString("nil")
		} else {
			b.WriteString(v.String())
		}
	}
}

// FirstCall returns the first call expression found in the values read by i, or nil.
func FirstCall(i *Instruction) *CallExpr {
	var call *CallExpr
	for _, u := range i.Uses() {
		Walk(u, func(v Value) {
			if c, ok := v.(*CallExpr); ok && call == nil {
				call = c
			}
		})
	}
	return call
}
