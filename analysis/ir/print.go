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
	"io"
	"strings"
)

// printer renders operations, branch targets are printed as instruction indexes
type printer struct {
	b strings.Builder
}

func target(i *Instruction) string {
	if i == nil {
		return "?"
	}
	return fmt.Sprintf("%d", i.Index)
}

func (p *printer) VisitIdentity(_ *Instruction, op *Identity) {
	fmt.Fprintf(&p.b, "%s := %s", op.Dst, op.Src)
}

func (p *printer) VisitAssign(_ *Instruction, op *Assign) {
	fmt.Fprintf(&p.b, "%s = %s", op.Dst, op.Src)
}

func (p *printer) VisitInvoke(_ *Instruction, op *Invoke) {
	p.b.WriteString(op.Call.String())
}

func (p *printer) VisitIf(_ *Instruction, op *If) {
	fmt.Fprintf(&p.b, "if %s goto %s", op.Cond, target(op.Then))
	if op.Else != nil {
		fmt.Fprintf(&p.b, " else %s", target(op.Else))
	}
}

func (p *printer) VisitSwitch(_ *Instruction, op *Switch) {
	fmt.Fprintf(&p.b, "switch %s {", op.Key)
	for k, c := range op.Cases {
		fmt.Fprintf(&p.b, " case %d: goto %s;", c, target(op.Targets[k]))
	}
	if op.Default != nil {
		fmt.Fprintf(&p.b, " default: goto %s;", target(op.Default))
	}
	p.b.WriteString(" }")
}

func (p *printer) VisitGoto(_ *Instruction, op *Goto) {
	fmt.Fprintf(&p.b, "goto %s", target(op.Target))
}

func (p *printer) VisitReturn(_ *Instruction, op *Return) {
	if op.Result == nil {
		p.b.WriteString("return")
	} else {
		fmt.Fprintf(&p.b, "return %s", op.Result)
	}
}

func (p *printer) VisitThrow(_ *Instruction, op *Throw) {
	fmt.Fprintf(&p.b, "throw %s", op.Value)
}

func (p *printer) VisitNop(*Instruction, *Nop) {
	p.b.WriteString("nop")
}

// OpString returns a one-line representation of op
func OpString(op Op) string {
	p := &printer{}
	Visit(p, &Instruction{Op: op})
	return p.b.String()
}

// Fprint writes a listing of the procedure to w. When annotate is not nil, its non-empty results are appended to
// the corresponding instructions.
func Fprint(w io.Writer, proc *Procedure, annotate func(*Instruction) string) error {
	if _, err := fmt.Fprintf(w, "%s {\n", proc.Signature); err != nil {
		return err
	}
	for _, t := range proc.Traps {
		if _, err := fmt.Fprintf(w, "  catch %s from %s to %s with %s\n",
			t.Exception, target(t.Begin), target(t.End), target(t.Handler)); err != nil {
			return err
		}
	}
	for _, i := range proc.Body {
		p := &printer{}
		Visit(p, i)
		line := fmt.Sprintf("  %3d: %s", i.Index, p.b.String())
		if annotate != nil {
			if a := annotate(i); a != "" {
				line += "    // " + a
			}
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}
