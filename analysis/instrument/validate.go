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

package instrument

import (
	"fmt"

	"github.com/statecraft/asmi/analysis/ir"
)

// Validate checks the structure of proc: instruction indexes, branch targets and trap bounds must designate
// instructions of the body, receiver and parameter bindings must lead the body, handlers must start with the binding
// of the recovered value, locals must belong to the procedure and control must not fall off the end of the body.
// Errors wrap ErrInvalidBody.
//
//gocyclo:ignore
func Validate(proc *ir.Procedure) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%s: %s: %w", proc, fmt.Sprintf(format, args...), ErrInvalidBody)
	}
	if len(proc.Body) == 0 {
		return nil
	}
	leading := true
	for k, i := range proc.Body {
		if i.Index != k {
			return invalid("instruction %q has index %d at position %d", ir.OpString(i.Op), i.Index, k)
		}
		if i.IsIdentity() {
			if !leading {
				return invalid("binding %q after the start of the body", ir.OpString(i.Op))
			}
		} else {
			leading = false
		}
		for _, t := range i.Targets() {
			if !proc.Contains(t) {
				return invalid("branch %d jumps outside the body", k)
			}
		}
		if err := checkLocals(proc, i); err != nil {
			return invalid("instruction %d: %v", k, err)
		}
	}
	if last := proc.Body[len(proc.Body)-1]; last.FallsThrough() {
		return invalid("control falls off the end of the body at %q", ir.OpString(last.Op))
	}
	for _, t := range proc.Traps {
		if !proc.Contains(t.Begin) || !proc.Contains(t.End) || !proc.Contains(t.Handler) {
			return invalid("trap bounds outside the body")
		}
		if t.Begin.Index > t.End.Index {
			return invalid("trap begins at %d after its end %d", t.Begin.Index, t.End.Index)
		}
		if t.Covers(t.Handler) {
			return invalid("handler %d is covered by its own trap", t.Handler.Index)
		}
		id, ok := t.Handler.Op.(*ir.Identity)
		if !ok {
			return invalid("handler %d does not bind the recovered value", t.Handler.Index)
		}
		if _, ok := id.Src.(*ir.CaughtExceptionRef); !ok {
			return invalid("handler %d does not bind the recovered value", t.Handler.Index)
		}
	}
	return nil
}

func checkLocals(proc *ir.Procedure, i *ir.Instruction) error {
	var err error
	check := func(v ir.Value) {
		if l, ok := v.(*ir.Local); ok && err == nil {
			if l.Index < 0 || l.Index >= len(proc.Locals) || proc.Locals[l.Index] != l {
				err = fmt.Errorf("local %s is not declared", l.Name)
			}
		}
	}
	for _, u := range i.Uses() {
		ir.Walk(u, check)
	}
	for _, d := range i.Defs() {
		check(d)
	}
	return err
}
