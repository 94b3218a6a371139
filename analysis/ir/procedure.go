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

	"golang.org/x/exp/slices"
)

// A Program is the set of classes and free procedures lowered from the packages under analysis
type Program struct {
	Fset    *token.FileSet
	Classes []*Class
	// Functions are procedures without a class, e.g. main functions
	Functions []*Procedure
}

// A Class is a named struct type and its declared methods.
type Class struct {
	Name    string
	Package string
	Fields  []*Field
	Methods []*Procedure
	// Embeds lists the qualified names of the embedded types
	Embeds []string
	// Implements lists the qualified names of the interfaces implemented by the type or a pointer to it
	Implements []string
	Pos        token.Pos
}

// QualifiedName returns package.Name
func (c *Class) QualifiedName() string {
	if c.Package == "" {
		return c.Name
	}
	return c.Package + "." + c.Name
}

func (c *Class) String() string { return c.QualifiedName() }

// Method returns the method named name, or nil
func (c *Class) Method(name string) *Procedure {
	for _, m := range c.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// AddField adds a field of type typ to the class and returns it
func (c *Class) AddField(name string, typ string) *Field {
	f := &Field{Name: name, Type: typ, Class: c.QualifiedName()}
	c.Fields = append(c.Fields, f)
	return f
}

// A Field is a field of a class, or a package variable when Static is true.
type Field struct {
	Name   string
	Type   string
	Class  string
	Static bool
}

func (f *Field) String() string {
	return f.Class + ": " + f.Type + " " + f.Name
}

// A Trap routes panics raised by any instruction in [Begin, End] to Handler. End is inclusive.
type Trap struct {
	Begin     *Instruction
	End       *Instruction
	Handler   *Instruction
	Exception string
}

// Covers returns true if i is in the range of the trap
func (t *Trap) Covers(i *Instruction) bool {
	return t.Begin.Index <= i.Index && i.Index <= t.End.Index
}

// A Procedure is a function or method body in instruction form
type Procedure struct {
	Class *Class
	// Package is the import path of the package declaring the procedure
	Package      string
	Name         string
	Signature    string
	SubSignature string
	// Static procedures have no receiver
	Static bool
	// Goroutine is true when the procedure is launched by a go statement somewhere in the program
	Goroutine bool
	Body      []*Instruction
	Traps     []*Trap
	Locals    []*Local
	Pos       token.Pos
}

func (p *Procedure) String() string { return p.Signature }

// ClassName returns the qualified name of the class of the procedure, or its package for free functions
func (p *Procedure) ClassName() string {
	if p.Class == nil {
		return p.Package
	}
	return p.Class.QualifiedName()
}

// Entry returns the first instruction of the body, or nil if the body is empty
func (p *Procedure) Entry() *Instruction {
	if len(p.Body) == 0 {
		return nil
	}
	return p.Body[0]
}

// Contains returns true if i is an instruction of the body
func (p *Procedure) Contains(i *Instruction) bool {
	return i != nil && i.Index >= 0 && i.Index < len(p.Body) && p.Body[i.Index] == i
}

// Renumber sets the index of every instruction to its position in the body
func (p *Procedure) Renumber() {
	for k, i := range p.Body {
		i.Index = k
	}
}

// NewLocal adds a fresh local to the procedure. The name is made unique by appending the local index if needed.
func (p *Procedure) NewLocal(name string, typ string) *Local {
	for _, l := range p.Locals {
		if l.Name == name {
			name = fmt.Sprintf("%s%d", name, len(p.Locals))
			break
		}
	}
	l := &Local{Name: name, Index: len(p.Locals), Type: typ}
	p.Locals = append(p.Locals, l)
	return l
}

// Append adds instructions at the end of the body
func (p *Procedure) Append(instrs ...*Instruction) {
	p.Body = append(p.Body, instrs...)
	p.Renumber()
}

// InsertBefore inserts instrs before point and redirects every branch and every trap begin or handler targeting point
// to the first inserted instruction.
func (p *Procedure) InsertBefore(point *Instruction, instrs ...*Instruction) {
	if len(instrs) == 0 {
		return
	}
	p.insertAt(point.Index, instrs)
	first := instrs[0]
	for _, i := range p.Body {
		i.RedirectTargets(point, first)
	}
	for _, t := range p.Traps {
		if t.Begin == point {
			t.Begin = first
		}
		if t.Handler == point {
			t.Handler = first
		}
	}
}

// InsertBeforeNoRedirect inserts instrs before point. Branches to point still jump to point.
func (p *Procedure) InsertBeforeNoRedirect(point *Instruction, instrs ...*Instruction) {
	if len(instrs) == 0 {
		return
	}
	p.insertAt(point.Index, instrs)
}

// InsertAfter inserts instrs after point. Traps ending at point are extended to cover the inserted instructions.
func (p *Procedure) InsertAfter(point *Instruction, instrs ...*Instruction) {
	if len(instrs) == 0 {
		return
	}
	p.insertAt(point.Index+1, instrs)
	last := instrs[len(instrs)-1]
	for _, t := range p.Traps {
		if t.End == point {
			t.End = last
		}
	}
}

func (p *Procedure) insertAt(k int, instrs []*Instruction) {
	p.Body = slices.Insert(p.Body, k, instrs...)
	p.Renumber()
}

// LeadingIdentities returns the number of receiver and parameter bindings at the start of the body
func (p *Procedure) LeadingIdentities() int {
	n := 0
	for _, i := range p.Body {
		if !i.IsIdentity() {
			break
		}
		n++
	}
	return n
}
