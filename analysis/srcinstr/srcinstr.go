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

// Package srcinstr writes the instrumentation of the abstract states back to Go source files.
//
// The reports are the same as the ones inserted in the instruction representation: the entry state after the
// identity of the actor is computed, and each instrumentation point right before the statement containing it.
// Registered procedures also report the terminal state before every return and in a deferred handler that panics
// again.
package srcinstr

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"github.com/dave/dst/decorator/resolver/goast"
	"github.com/dave/dst/decorator/resolver/guess"
	"github.com/dave/dst/dstutil"
	"github.com/statecraft/asmi/analysis/asm"
	"github.com/statecraft/asmi/analysis/config"
	"github.com/statecraft/asmi/analysis/instrument"
	"golang.org/x/tools/go/ast/astutil"
	"golang.org/x/tools/go/packages"
)

const (
	identityVar = "asmiID"
	panicVar    = "asmiPanic"
	receiverVar = "asmiRecv"
)

// Point is a state reported before the statement at Pos
type Point struct {
	Pos token.Pos
	ID  int
}

// Plan is the instrumentation of one function declaration
type Plan struct {
	// Pos is the position of the name of the declaration
	Pos       token.Pos
	Class     string
	Signature string
	// Entry is the id reported when the function starts
	Entry   int
	Points  []Point
	Options instrument.Options
}

// NewPlan returns the plan reporting the states of r. Only the first entry is reported: the states of handler entries
// have no statement in the source.
func NewPlan(r *asm.Result, opts instrument.Options) Plan {
	proc := r.Procedure
	p := Plan{Pos: proc.Pos, Class: proc.ClassName(), Signature: proc.Signature, Options: opts}
	if len(r.Entries) > 0 {
		p.Entry, _ = r.ID(r.Entries[0].Instr)
	}
	for _, i := range proc.Body {
		if r.Points.Contains(i) && !r.IsEntry(i) && i.Pos.IsValid() {
			p.Points = append(p.Points, Point{Pos: i.Pos, ID: r.IDs[i]})
		}
	}
	sort.SliceStable(p.Points, func(i, j int) bool { return p.Points[i].ID < p.Points[j].ID })
	return p
}

// File is a type-checked source file
type File struct {
	Fset    *token.FileSet
	Package *types.Package
	Syntax  *ast.File
}

// Filename returns the name of the file on disk
func (f File) Filename() string {
	return f.Fset.File(f.Syntax.Pos()).Name()
}

// FilesOf returns the files of pkgs, which must have been loaded with syntax and types
func FilesOf(pkgs []*packages.Package) []File {
	var files []File
	for _, pkg := range pkgs {
		for _, f := range pkg.Syntax {
			files = append(files, File{Fset: pkg.Fset, Package: pkg.Types, Syntax: f})
		}
	}
	return files
}

// Rewriter inserts the agent calls in source files
type Rewriter struct {
	agentPackage string
	logger       *config.LogGroup
}

// New returns a rewriter calling the agent in agentPackage
func New(agentPackage string, logger *config.LogGroup) *Rewriter {
	if agentPackage == "" {
		agentPackage = config.DefaultAgentPackage
	}
	if logger == nil {
		logger = config.NewLogGroup(config.NewDefault())
	}
	return &Rewriter{agentPackage: agentPackage, logger: logger}
}

// target is where the reports of the points of one statement go
type target struct {
	stmt ast.Stmt
	// clause is true when the reports start the body of the case clause stmt
	clause bool
}

// Rewrite applies the plans declared in f and prints the rewritten file to w. It returns the number of plans
// applied; nothing is printed when none applies.
func (rw *Rewriter) Rewrite(f File, plans []Plan, w io.Writer) (int, error) {
	byPos := make(map[token.Pos]Plan, len(plans))
	for _, p := range plans {
		byPos[p.Pos] = p
	}
	decls := map[*ast.FuncDecl]Plan{}
	for _, d := range f.Syntax.Decls {
		fd, ok := d.(*ast.FuncDecl)
		if !ok || fd.Body == nil {
			continue
		}
		if p, ok := byPos[fd.Name.Pos()]; ok {
			decls[fd] = p
		}
	}
	if len(decls) == 0 {
		return 0, nil
	}

	names := importNames(f.Package)
	names[rw.agentPackage] = path.Base(rw.agentPackage)
	dec := decorator.NewDecoratorWithImports(f.Fset, f.Package.Path(), goast.WithResolver(guess.WithMap(names)))
	df, err := dec.DecorateFile(f.Syntax)
	if err != nil {
		return 0, fmt.Errorf("could not decorate %s: %w", f.Filename(), err)
	}

	// declarations are rewritten in source order
	ordered := make([]*ast.FuncDecl, 0, len(decls))
	for fd := range decls {
		ordered = append(ordered, fd)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Pos() < ordered[j].Pos() })

	for _, fd := range ordered {
		p := decls[fd]
		targets := map[target][]int{}
		for _, pt := range p.Points {
			t, ok := findTarget(f.Syntax, fd, pt.Pos)
			if !ok {
				rw.logger.Debugf("%s: state %d at %s has no statement", p.Signature, pt.ID, f.Fset.Position(pt.Pos))
				continue
			}
			targets[t] = append(targets[t], pt.ID)
		}
		dd, ok := dec.Dst.Nodes[fd].(*dst.FuncDecl)
		if !ok {
			return 0, fmt.Errorf("%s: no decorated declaration", p.Signature)
		}
		rw.rewriteDecl(dec, dd, p, targets)
		rw.logger.Debugf("%s: rewrote %d points in %s", p.Signature, len(p.Points), f.Filename())
	}

	restorer := decorator.NewRestorerWithImports(f.Package.Path(), guess.WithMap(names))
	if err := restorer.Fprint(w, df); err != nil {
		return 0, fmt.Errorf("could not print %s: %w", f.Filename(), err)
	}
	return len(decls), nil
}

// WriteFiles rewrites every file where a plan applies into outputDir, under the path of its package. It returns the
// names of the written files.
func (rw *Rewriter) WriteFiles(files []File, plans []Plan, outputDir string) ([]string, error) {
	var written []string
	for _, f := range files {
		var b bytes.Buffer
		n, err := rw.Rewrite(f, plans, &b)
		if err != nil {
			return written, err
		}
		if n == 0 {
			continue
		}
		dir := filepath.Join(outputDir, filepath.FromSlash(f.Package.Path()))
		if err := os.MkdirAll(dir, 0750); err != nil {
			return written, fmt.Errorf("could not create %s: %w", dir, err)
		}
		filename := filepath.Join(dir, filepath.Base(f.Filename()))
		if err := os.WriteFile(filename, b.Bytes(), 0600); err != nil {
			return written, fmt.Errorf("could not write %s: %w", filename, err)
		}
		rw.logger.Infof("wrote %s (%d functions)", filename, n)
		written = append(written, filename)
	}
	return written, nil
}

func importNames(pkg *types.Package) map[string]string {
	names := map[string]string{}
	for _, imp := range pkg.Imports() {
		names[imp.Path()] = imp.Name()
	}
	return names
}

// findTarget returns the statement of fd the reports of a point at pos are inserted before. Points inside function
// literals have no target.
func findTarget(file *ast.File, fd *ast.FuncDecl, pos token.Pos) (target, bool) {
	if pos < fd.Body.Lbrace || pos >= fd.Body.Rbrace {
		return target{}, false
	}
	nodes, _ := astutil.PathEnclosingInterval(file, pos, pos)
	for k, n := range nodes {
		if _, isLit := n.(*ast.FuncLit); isLit || n == fd {
			return target{}, false
		}
		stmt, ok := n.(ast.Stmt)
		if !ok || k+1 >= len(nodes) {
			continue
		}
		switch parent := nodes[k+1].(type) {
		case *ast.BlockStmt:
			if k+2 < len(nodes) {
				switch nodes[k+2].(type) {
				case *ast.SwitchStmt, *ast.TypeSwitchStmt, *ast.SelectStmt:
					return target{stmt: stmt, clause: true}, true
				}
			}
			return target{stmt: stmt}, true
		case *ast.CaseClause:
			if contains(parent.Body, stmt) {
				return target{stmt: stmt}, true
			}
		case *ast.CommClause:
			if contains(parent.Body, stmt) {
				return target{stmt: stmt}, true
			}
		case *ast.LabeledStmt:
			// the label stays on the statement it names, labeled returns are wrapped in a block
			if _, ok := stmt.(*ast.ReturnStmt); ok {
				return target{stmt: stmt}, true
			}
			return target{stmt: parent}, true
		}
	}
	return target{}, false
}

func contains(list []ast.Stmt, stmt ast.Stmt) bool {
	for _, s := range list {
		if s == stmt {
			return true
		}
	}
	return false
}

func (rw *Rewriter) rewriteDecl(dec *decorator.Decorator, fd *dst.FuncDecl, p Plan, targets map[target][]int) {
	before := map[dst.Node][]int{}
	for t, ids := range targets {
		n := dec.Dst.Nodes[t.stmt]
		if !t.clause {
			before[n] = append(before[n], ids...)
			continue
		}
		switch c := n.(type) {
		case *dst.CaseClause:
			c.Body = append(rw.reports(p, ids), c.Body...)
		case *dst.CommClause:
			c.Body = append(rw.reports(p, ids), c.Body...)
		}
	}

	dstutil.Apply(fd.Body, func(c *dstutil.Cursor) bool {
		switch n := c.Node().(type) {
		case *dst.FuncLit:
			return false
		case *dst.ReturnStmt:
			reports := rw.reports(p, before[n])
			if p.Options.Register {
				reports = append(reports, rw.report(p, asm.Terminal))
			}
			if c.Index() < 0 {
				if _, ok := c.Parent().(*dst.LabeledStmt); ok && len(reports) > 0 {
					c.Replace(&dst.BlockStmt{List: append(reports, n)})
				}
				return true
			}
			for _, s := range reports {
				c.InsertBefore(s)
			}
			return true
		case dst.Stmt:
			if ids, ok := before[n]; ok && c.Index() >= 0 {
				for _, s := range rw.reports(p, ids) {
					c.InsertBefore(s)
				}
			}
		}
		return true
	}, nil)

	if list := fd.Body.List; p.Options.Register && (len(list) == 0 || !terminates(list[len(list)-1], "")) {
		fd.Body.List = append(fd.Body.List, rw.report(p, asm.Terminal))
	}
	fd.Body.List = append(rw.prologue(fd, p), fd.Body.List...)
}

// terminates reports whether s is a terminating statement, so that the end of the body after it is unreachable.
// label is the label of s, if any.
func terminates(s dst.Stmt, label string) bool {
	switch s := s.(type) {
	case *dst.ReturnStmt:
		return true
	case *dst.BranchStmt:
		return s.Tok == token.GOTO
	case *dst.ExprStmt:
		call, ok := s.X.(*dst.CallExpr)
		if !ok {
			return false
		}
		id, ok := call.Fun.(*dst.Ident)
		return ok && id.Name == "panic" && id.Path == ""
	case *dst.BlockStmt:
		return len(s.List) > 0 && terminates(s.List[len(s.List)-1], "")
	case *dst.LabeledStmt:
		return terminates(s.Stmt, s.Label.Name)
	case *dst.IfStmt:
		return s.Else != nil && terminates(s.Body, "") && terminates(s.Else, "")
	case *dst.ForStmt:
		return s.Cond == nil && !hasBreak(s.Body, label)
	case *dst.SwitchStmt:
		return clausesTerminate(s.Body, label, true)
	case *dst.TypeSwitchStmt:
		return clausesTerminate(s.Body, label, true)
	case *dst.SelectStmt:
		return clausesTerminate(s.Body, label, false)
	}
	return false
}

// clausesTerminate reports whether every clause of body ends with a terminating statement or a fallthrough, and
// nothing breaks out of it
func clausesTerminate(body *dst.BlockStmt, label string, needsDefault bool) bool {
	hasDefault := false
	for _, c := range body.List {
		var list []dst.Stmt
		switch c := c.(type) {
		case *dst.CaseClause:
			hasDefault = hasDefault || c.List == nil
			list = c.Body
		case *dst.CommClause:
			list = c.Body
		}
		if len(list) == 0 {
			return false
		}
		last := list[len(list)-1]
		if b, ok := last.(*dst.BranchStmt); !(ok && b.Tok == token.FALLTHROUGH) && !terminates(last, "") {
			return false
		}
	}
	return (hasDefault || !needsDefault) && !hasBreak(body, label)
}

// hasBreak reports whether a break inside n leaves the statement n is the body of
func hasBreak(n dst.Node, label string) bool {
	return breaks(n, label, false)
}

// breaks ignores unlabeled breaks when nested
func breaks(root dst.Node, label string, nested bool) bool {
	found := false
	dst.Inspect(root, func(n dst.Node) bool {
		if found || n == nil {
			return false
		}
		switch n := n.(type) {
		case *dst.FuncLit:
			return false
		case *dst.BranchStmt:
			if n.Tok == token.BREAK && (n.Label == nil && !nested || n.Label != nil && n.Label.Name == label) {
				found = true
			}
		case *dst.ForStmt, *dst.RangeStmt, *dst.SwitchStmt, *dst.TypeSwitchStmt, *dst.SelectStmt:
			if n != root {
				found = breaks(n, label, true)
				return false
			}
		}
		return true
	})
	return found
}

// prologue returns the statements computing the identity of the actor and reporting the entry state
func (rw *Rewriter) prologue(fd *dst.FuncDecl, p Plan) []dst.Stmt {
	var res []dst.Stmt
	if p.Options.Init {
		res = append(res, &dst.ExprStmt{X: rw.call(instrument.InitFunc)})
	}
	var src dst.Expr
	if p.Options.GoroutineIdentity || fd.Recv == nil {
		src = rw.call(instrument.GoroutineIDFunc)
	} else {
		src = rw.call(instrument.IdentityFunc, dst.NewIdent(receiverName(fd)))
	}
	res = append(res,
		&dst.AssignStmt{Lhs: []dst.Expr{dst.NewIdent(identityVar)}, Tok: token.DEFINE, Rhs: []dst.Expr{src}},
		rw.report(p, p.Entry))
	if p.Options.Register {
		res = append(res, rw.handler(p))
	}
	return res
}

// handler returns the deferred call reporting the terminal state of a panicking procedure
func (rw *Rewriter) handler(p Plan) dst.Stmt {
	check := &dst.IfStmt{
		Init: &dst.AssignStmt{
			Lhs: []dst.Expr{dst.NewIdent(panicVar)},
			Tok: token.DEFINE,
			Rhs: []dst.Expr{&dst.CallExpr{Fun: dst.NewIdent("recover")}},
		},
		Cond: &dst.BinaryExpr{X: dst.NewIdent(panicVar), Op: token.NEQ, Y: dst.NewIdent("nil")},
		Body: &dst.BlockStmt{List: []dst.Stmt{
			rw.report(p, asm.Terminal),
			&dst.ExprStmt{X: &dst.CallExpr{Fun: dst.NewIdent("panic"), Args: []dst.Expr{dst.NewIdent(panicVar)}}},
		}},
	}
	return &dst.DeferStmt{Call: &dst.CallExpr{Fun: &dst.FuncLit{
		Type: &dst.FuncType{Params: &dst.FieldList{}},
		Body: &dst.BlockStmt{List: []dst.Stmt{check}},
	}}}
}

// receiverName returns the name of the receiver of the method fd, naming it if needed
func receiverName(fd *dst.FuncDecl) string {
	field := fd.Recv.List[0]
	if len(field.Names) == 0 || field.Names[0].Name == "_" {
		field.Names = []*dst.Ident{dst.NewIdent(receiverVar)}
	}
	return field.Names[0].Name
}

func (rw *Rewriter) reports(p Plan, ids []int) []dst.Stmt {
	res := make([]dst.Stmt, 0, len(ids))
	for _, id := range ids {
		res = append(res, rw.report(p, id))
	}
	return res
}

func (rw *Rewriter) report(p Plan, state int) dst.Stmt {
	var id dst.Expr = &dst.BasicLit{Kind: token.INT, Value: strconv.Itoa(state)}
	if state < 0 {
		id = &dst.UnaryExpr{Op: token.SUB, X: &dst.BasicLit{Kind: token.INT, Value: strconv.Itoa(-state)}}
	}
	return &dst.ExprStmt{X: rw.call(instrument.InformStateFunc,
		&dst.BasicLit{Kind: token.STRING, Value: strconv.Quote(p.Class)},
		dst.NewIdent(identityVar),
		&dst.BasicLit{Kind: token.STRING, Value: strconv.Quote(p.Signature)},
		id)}
}

func (rw *Rewriter) call(name string, args ...dst.Expr) *dst.CallExpr {
	return &dst.CallExpr{Fun: &dst.Ident{Name: name, Path: rw.agentPackage}, Args: args}
}
