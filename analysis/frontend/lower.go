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

package frontend

import (
	"errors"
	"fmt"
	"go/types"
	"sort"

	"github.com/statecraft/asmi/analysis/config"
	"github.com/statecraft/asmi/analysis/ir"
	"golang.org/x/exp/maps"
	"golang.org/x/tools/go/ssa"
)

// ErrNoBody is returned when a function has no body to lower, e.g. functions implemented in assembly
var ErrNoBody = errors.New("function has no body")

// Lowering holds the state shared by the lowering of all the functions of a program
type Lowering struct {
	prog   *ssa.Program
	config *config.Config
	logger *config.LogGroup

	classes    map[*types.Named]*ir.Class
	globals    map[*ssa.Global]*ir.Field
	goroutines map[*ssa.Function]bool
	// procedures maps the lowered procedures back to their SSA function
	procedures map[*ir.Procedure]*ssa.Function
}

// Lower returns the classes and main functions of pkgs in instruction form. Every named struct type of a target
// package is a class; its fields are the struct fields and its methods are the declared methods, lowered with
// LowerFunction. Methods without body are skipped.
func Lower(prog *ssa.Program, pkgs []*ssa.Package, c *config.Config, logger *config.LogGroup) (*ir.Program, *Lowering, error) {
	if c == nil {
		c = config.NewDefault()
	}
	if logger == nil {
		logger = config.NewLogGroup(c)
	}
	l := &Lowering{
		prog:       prog,
		config:     c,
		logger:     logger,
		classes:    map[*types.Named]*ir.Class{},
		globals:    map[*ssa.Global]*ir.Field{},
		goroutines: map[*ssa.Function]bool{},
		procedures: map[*ir.Procedure]*ssa.Function{},
	}
	pkgs = sortedPackages(pkgs)
	res := &ir.Program{Fset: prog.Fset}

	var named []*types.Named
	for _, pkg := range pkgs {
		for _, t := range l.discoverClasses(pkg) {
			named = append(named, t)
			res.Classes = append(res.Classes, l.classes[t])
		}
		l.findGoroutines(pkg)
	}
	l.computeImplements(named)

	for _, t := range named {
		class := l.classes[t]
		for i := 0; i < t.NumMethods(); i++ {
			fn := prog.FuncValue(t.Method(i))
			if fn == nil {
				continue
			}
			if _, err := l.LowerFunction(fn, class); err != nil {
				if errors.Is(err, ErrNoBody) {
					logger.Debugf("skipping %s: %v", fn, err)
					continue
				}
				return nil, nil, err
			}
		}
		logger.Debugf("class %s: %d fields, %d methods", class, len(class.Fields), len(class.Methods))
	}

	for _, pkg := range pkgs {
		if pkg.Pkg.Name() != "main" || !c.IsMainPackage(pkg.Pkg.Path()) {
			continue
		}
		if main := pkg.Func("main"); main != nil {
			proc, err := l.LowerFunction(main, nil)
			if err != nil {
				return nil, nil, err
			}
			res.Functions = append(res.Functions, proc)
		}
	}
	return res, l, nil
}

// Function returns the SSA function proc was lowered from
func (l *Lowering) Function(proc *ir.Procedure) *ssa.Function {
	return l.procedures[proc]
}

func sortedPackages(pkgs []*ssa.Package) []*ssa.Package {
	var res []*ssa.Package
	for _, p := range pkgs {
		if p != nil {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Pkg.Path() < res[j].Pkg.Path() })
	return res
}

// discoverClasses creates the classes of the named struct types of pkg, in name order
func (l *Lowering) discoverClasses(pkg *ssa.Package) []*types.Named {
	path := pkg.Pkg.Path()
	if !l.config.IsTargetPackage(path) {
		return nil
	}
	names := maps.Keys(pkg.Members)
	sort.Strings(names)
	var res []*types.Named
	for _, name := range names {
		member, ok := pkg.Members[name].(*ssa.Type)
		if !ok {
			continue
		}
		named, ok := member.Type().(*types.Named)
		if !ok || named.TypeParams().Len() > 0 {
			continue
		}
		st, ok := named.Underlying().(*types.Struct)
		if !ok || !l.config.IsTargetClass(path, name) {
			continue
		}
		class := &ir.Class{Name: name, Package: path, Pos: member.Pos()}
		for i := 0; i < st.NumFields(); i++ {
			f := st.Field(i)
			class.AddField(f.Name(), typeString(f.Type()))
			if f.Embedded() {
				class.Embeds = append(class.Embeds, typeString(deref(f.Type())))
			}
		}
		l.classes[named] = class
		l.logger.Infof("found class %s", class)
		res = append(res, named)
	}
	return res
}

// findGoroutines marks the functions started by go statements in pkg
func (l *Lowering) findGoroutines(pkg *ssa.Package) {
	visit := func(fn *ssa.Function) {
		for _, b := range fn.Blocks {
			for _, instr := range b.Instrs {
				if g, ok := instr.(*ssa.Go); ok {
					if callee := g.Call.StaticCallee(); callee != nil {
						l.goroutines[callee] = true
					}
				}
			}
		}
	}
	var functions []*ssa.Function
	for _, m := range pkg.Members {
		switch m := m.(type) {
		case *ssa.Function:
			functions = append(functions, m)
		case *ssa.Type:
			if named, ok := m.Type().(*types.Named); ok {
				for i := 0; i < named.NumMethods(); i++ {
					if fn := l.prog.FuncValue(named.Method(i)); fn != nil {
						functions = append(functions, fn)
					}
				}
			}
		}
	}
	for len(functions) > 0 {
		fn := functions[0]
		functions = append(functions[1:], fn.AnonFuncs...)
		visit(fn)
	}
}

// computeImplements lists, for every class, the named interfaces of the program it implements through a value or a
// pointer. The error interface is named "error".
func (l *Lowering) computeImplements(classes []*types.Named) {
	type iface struct {
		name string
		t    *types.Interface
	}
	ifaces := []iface{{"error", types.Universe.Lookup("error").Type().Underlying().(*types.Interface)}}
	for _, pkg := range l.prog.AllPackages() {
		for _, m := range pkg.Members {
			member, ok := m.(*ssa.Type)
			if !ok {
				continue
			}
			named, ok := member.Type().(*types.Named)
			if !ok || named.TypeParams().Len() > 0 {
				continue
			}
			if it, ok := named.Underlying().(*types.Interface); ok && it.NumMethods() > 0 {
				ifaces = append(ifaces, iface{typeString(named), it})
			}
		}
	}
	sort.Slice(ifaces, func(i, j int) bool { return ifaces[i].name < ifaces[j].name })

	for _, t := range classes {
		class := l.classes[t]
		for _, i := range ifaces {
			if types.Implements(t, i.t) || types.Implements(types.NewPointer(t), i.t) {
				class.Implements = append(class.Implements, i.name)
			}
		}
	}
}

// classOf returns the class of a struct or pointer to struct type, or nil
func (l *Lowering) classOf(t types.Type) *ir.Class {
	if named, ok := deref(t).(*types.Named); ok {
		return l.classes[named]
	}
	return nil
}

// field returns the field index of the struct pointed to by, or contained in, x
func (l *Lowering) field(x ssa.Value, index int) *ir.Field {
	class := l.classOf(x.Type())
	if class == nil || index < 0 || index >= len(class.Fields) {
		return nil
	}
	return class.Fields[index]
}

// global returns the static field of a package variable
func (l *Lowering) global(g *ssa.Global) *ir.Field {
	if f, ok := l.globals[g]; ok {
		return f
	}
	pkg := ""
	if g.Pkg != nil {
		pkg = g.Pkg.Pkg.Path()
	}
	f := &ir.Field{Name: g.Name(), Type: typeString(deref(g.Type())), Class: pkg, Static: true}
	l.globals[g] = f
	return f
}

func deref(t types.Type) types.Type {
	if p, ok := t.Underlying().(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}

// typeString returns the string of t with packages qualified by their path
func typeString(t types.Type) string {
	return types.TypeString(t, nil)
}

func namedName(t types.Type) string {
	if named, ok := deref(t).(*types.Named); ok {
		return named.Obj().Name()
	}
	return ""
}

func (l *Lowering) String() string {
	return fmt.Sprintf("lowering of %d classes", len(l.classes))
}
