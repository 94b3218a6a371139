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

// Package hierarchy precomputes the "is-a" facts of the classes of a program. A class inherits the interfaces and
// facts of the classes it embeds.
package hierarchy

import (
	"regexp"
	"strings"

	"github.com/statecraft/asmi/analysis/ir"
	"golang.org/x/exp/slices"
)

// Facts is a set of kinds a class belongs to
type Facts uint8

const (
	// Runnable classes have a Run method used as a goroutine body
	Runnable Facts = 1 << iota
	// Handler classes handle messages or requests
	Handler
	// TaskRunner classes run tasks submitted to them
	TaskRunner
	// Serializer classes encode or decode values
	Serializer
	// Error classes are error values
	Error
)

var factNames = []struct {
	fact Facts
	name string
}{
	{Runnable, "runnable"},
	{Handler, "handler"},
	{TaskRunner, "task-runner"},
	{Serializer, "serializer"},
	{Error, "error"},
}

// Has returns true if f contains all the facts of g
func (f Facts) Has(g Facts) bool { return f&g == g }

func (f Facts) String() string {
	var names []string
	for _, fn := range factNames {
		if f.Has(fn.fact) {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}

// rules map interface names to facts. The error interface is named "error".
var rules = []struct {
	re   *regexp.Regexp
	fact Facts
}{
	{regexp.MustCompile(`(^|\.)Runnable$`), Runnable},
	{regexp.MustCompile(`^net/http\.Handler$`), Handler},
	{regexp.MustCompile(`(^|\.)[A-Za-z]*Handler$`), Handler},
	{regexp.MustCompile(`(^|\.)TaskRunner$`), TaskRunner},
	{regexp.MustCompile(`(^|\.)[A-Za-z]*Serializer$`), Serializer},
	{regexp.MustCompile(`^encoding\.(Binary|Text)Marshaler$`), Serializer},
	{regexp.MustCompile(`^error$`), Error},
}

func factsOfInterface(name string) Facts {
	var f Facts
	for _, r := range rules {
		if r.re.MatchString(name) {
			f |= r.fact
		}
	}
	return f
}

// Table holds the facts and the interfaces of every class of a program
type Table struct {
	facts      map[*ir.Class]Facts
	interfaces map[*ir.Class][]string
}

// New computes the table of classes. Embedded classes are looked up by qualified name; embeds that are not
// classes of the program are ignored. Embedding cycles are broken.
func New(classes []*ir.Class) *Table {
	byName := make(map[string]*ir.Class, len(classes))
	for _, c := range classes {
		byName[c.QualifiedName()] = c
	}
	t := &Table{
		facts:      make(map[*ir.Class]Facts, len(classes)),
		interfaces: make(map[*ir.Class][]string, len(classes)),
	}
	visiting := map[*ir.Class]bool{}
	var visit func(c *ir.Class) []string
	visit = func(c *ir.Class) []string {
		if ifaces, done := t.interfaces[c]; done {
			return ifaces
		}
		if visiting[c] {
			return nil
		}
		visiting[c] = true
		ifaces := append([]string{}, c.Implements...)
		for _, e := range c.Embeds {
			if embedded, ok := byName[e]; ok {
				ifaces = append(ifaces, visit(embedded)...)
			}
		}
		slices.Sort(ifaces)
		ifaces = slices.Compact(ifaces)
		var f Facts
		for _, i := range ifaces {
			f |= factsOfInterface(i)
		}
		t.interfaces[c] = ifaces
		t.facts[c] = f
		return ifaces
	}
	for _, c := range classes {
		visit(c)
	}
	return t
}

// Facts returns the facts of c; a class unknown to the table has none
func (t *Table) Facts(c *ir.Class) Facts { return t.facts[c] }

// Interfaces returns the sorted qualified names of the interfaces c implements, directly or through embedding
func (t *Table) Interfaces(c *ir.Class) []string { return t.interfaces[c] }

// Is returns true if c has all the facts f
func (t *Table) Is(c *ir.Class, f Facts) bool { return t.facts[c].Has(f) }
