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

// Package analysistest contains helpers to build test programs from embedded sources.
package analysistest

import (
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// Source is a package built from in-memory files
type Source struct {
	Program *ssa.Program
	Package *ssa.Package
	Files   []*ast.File
}

// BuildSource parses the .go files of dir in fsys, type checks them as the package pkgPath and builds their SSA form.
// Imports are type checked from source.
func BuildSource(t *testing.T, fsys fs.FS, dir string, pkgPath string) *Source {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	fset := token.NewFileSet()
	var files []*ast.File
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".go") {
			continue
		}
		name := path.Join(dir, e.Name())
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		f, err := parser.ParseFile(fset, name, content, parser.ParseComments)
		if err != nil {
			t.Fatalf("parsing %s: %v", name, err)
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		t.Fatalf("no go files in %s", dir)
	}
	tc := &types.Config{Importer: importer.ForCompiler(fset, "source", nil)}
	pkg := types.NewPackage(pkgPath, files[0].Name.Name)
	ssaPkg, _, err := ssautil.BuildPackage(tc, fset, pkg, files, ssa.BuilderMode(0))
	if err != nil {
		t.Fatalf("building %s: %v", pkgPath, err)
	}
	return &Source{Program: ssaPkg.Prog, Package: ssaPkg, Files: files}
}

// AnnotationRegex matches annotations of the form "@Name(arg)" in comments
var AnnotationRegex = regexp.MustCompile(`//.*@(\w+)\(\s*([\w-]*)\s*\)`)

// LPos is a position without column
type LPos struct {
	Filename string
	Line     int
}

func (p LPos) String() string {
	return fmt.Sprintf("%s:%d", p.Filename, p.Line)
}

// RemoveColumn drops the column of pos
func RemoveColumn(pos token.Position) LPos {
	return LPos{Line: pos.Line, Filename: pos.Filename}
}

// Annotations returns, for every comment annotation @name(arg) of the files, the argument indexed by the line of
// the comment
func Annotations(fset *token.FileSet, files []*ast.File, name string) map[LPos]string {
	res := map[LPos]string{}
	for _, f := range files {
		for _, c := range f.Comments {
			for _, c1 := range c.List {
				a := AnnotationRegex.FindStringSubmatch(c1.Text)
				if len(a) > 2 && a[1] == name {
					res[RemoveColumn(fset.Position(c1.Pos()))] = a[2]
				}
			}
		}
	}
	return res
}

// SortedLines returns the positions of m in file and line order
func SortedLines[T any](m map[LPos]T) []LPos {
	res := make([]LPos, 0, len(m))
	for p := range m {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Filename != res[j].Filename {
			return res[i].Filename < res[j].Filename
		}
		return res[i].Line < res[j].Line
	})
	return res
}
