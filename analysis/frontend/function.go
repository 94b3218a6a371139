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
	"fmt"
	"go/token"
	"strings"

	"github.com/statecraft/asmi/analysis/ir"
	"golang.org/x/tools/go/ssa"
)

// RecoverException is the exception type of the trap of functions with a recover block
const RecoverException = "any"

// DynamicCallee is the name of the callee of calls through function values
const DynamicCallee = "<dynamic>"

// fnLowerer lowers the instructions of one function
type fnLowerer struct {
	*Lowering
	fn     *ssa.Function
	b      *ir.Builder
	locals map[ssa.Value]*ir.Local
}

// LowerFunction lowers fn to a procedure of class. When class is nil, the procedure is a function of fn's package.
// The blocks of fn are flattened in order, with the recover block last; the recover block becomes the handler of a
// trap covering every instruction after the bindings.
func (l *Lowering) LowerFunction(fn *ssa.Function, class *ir.Class) (*ir.Procedure, error) {
	if len(fn.Blocks) == 0 {
		return nil, fmt.Errorf("%s: %w", fn, ErrNoBody)
	}
	f := &fnLowerer{
		Lowering: l,
		fn:       fn,
		b:        ir.NewBuilder(class, fn.Name()),
		locals:   map[ssa.Value]*ir.Local{},
	}
	proc := f.b.Procedure()
	proc.Pos = fn.Pos()
	proc.SubSignature = fn.Name() + strings.TrimPrefix(fn.Signature.String(), "func")
	proc.Static = fn.Signature.Recv() == nil
	proc.Goroutine = l.goroutines[fn]
	if class == nil {
		if pkg := packagePath(fn); pkg != "" {
			proc.Package = pkg
			proc.Signature = pkg + "." + fn.Name()
		}
	}

	f.b.SetPos(fn.Pos())
	params := fn.Params
	if !proc.Static && len(params) > 0 {
		f.locals[params[0]] = f.b.This()
		params = params[1:]
	}
	for i, p := range params {
		f.locals[p] = f.b.Param(i, typeString(p.Type()))
	}

	var handler *ir.Instruction
	for _, block := range fn.Blocks {
		if block != fn.Recover {
			f.lowerBlock(block)
		}
	}
	last := len(proc.Body) - 1
	if fn.Recover != nil {
		f.b.Label(blockLabel(fn.Recover))
		f.b.SetPos(fn.Pos())
		f.b.CaughtException("recovered")
		handler = proc.Body[len(proc.Body)-1]
		f.lowerBlock(fn.Recover)
	}

	proc, err := f.b.Build()
	if err != nil {
		return nil, fmt.Errorf("while lowering %s: %w", fn, err)
	}
	if handler != nil {
		begin := proc.LeadingIdentities()
		if begin <= last {
			proc.Traps = append(proc.Traps, &ir.Trap{
				Begin:     proc.Body[begin],
				End:       proc.Body[last],
				Handler:   handler,
				Exception: RecoverException,
			})
		}
	}
	l.procedures[proc] = fn
	return proc, nil
}

func packagePath(fn *ssa.Function) string {
	if fn.Pkg != nil {
		return fn.Pkg.Pkg.Path()
	}
	if obj := fn.Object(); obj != nil && obj.Pkg() != nil {
		return obj.Pkg().Path()
	}
	return ""
}

func blockLabel(b *ssa.BasicBlock) string {
	return fmt.Sprintf("b%d", b.Index)
}

// positions returns the position of every instruction of b: its own position when valid, otherwise the first valid
// position later in the block. Trailing instructions without position take the last valid one, or fallback.
func positions(b *ssa.BasicBlock, fallback token.Pos) []token.Pos {
	res := make([]token.Pos, len(b.Instrs))
	next := token.NoPos
	for k := len(b.Instrs) - 1; k >= 0; k-- {
		if p := b.Instrs[k].Pos(); p.IsValid() {
			next = p
		}
		res[k] = next
	}
	prev := fallback
	for k, p := range res {
		if p.IsValid() {
			prev = p
		} else {
			res[k] = prev
		}
	}
	return res
}

func (f *fnLowerer) lowerBlock(block *ssa.BasicBlock) {
	if block != f.fn.Recover {
		f.b.Label(blockLabel(block))
	}
	pos := positions(block, f.fn.Pos())
	for k, instr := range block.Instrs {
		f.b.SetPos(pos[k])
		f.lowerInstr(instr)
	}
}

func (f *fnLowerer) lowerInstr(instr ssa.Instruction) {
	switch instr := instr.(type) {
	case *ssa.DebugRef:
	// dropped
	case *ssa.If:
		f.b.IfElse(f.value(instr.Cond), blockLabel(instr.Block().Succs[0]), blockLabel(instr.Block().Succs[1]))
	case *ssa.Jump:
		f.b.Goto(blockLabel(instr.Block().Succs[0]))
	case *ssa.Return:
		switch len(instr.Results) {
		case 0:
			f.b.Return(nil)
		case 1:
			f.b.Return(f.value(instr.Results[0]))
		default:
			f.b.Return(ir.NewOp("tuple", f.values(instr.Results)...))
		}
	case *ssa.Panic:
		f.b.Throw(f.value(instr.X))
	case *ssa.RunDefers:
		f.b.Nop()
	case *ssa.Call:
		callee, args := f.call(&instr.Call)
		if refs := instr.Referrers(); refs != nil && len(*refs) > 0 {
			f.b.Call(f.local(instr), callee, args...)
		} else {
			f.b.Invoke(callee, args...)
		}
	case *ssa.Go:
		callee, args := f.call(&instr.Call)
		f.b.Invoke(callee, args...).Op.(*ir.Invoke).Call.Mode = ir.CallGo
	case *ssa.Defer:
		callee, args := f.call(&instr.Call)
		f.b.Invoke(callee, args...).Op.(*ir.Invoke).Call.Mode = ir.CallDefer
	case *ssa.Store:
		f.b.Assign(f.storeDestination(instr.Addr), f.value(instr.Val))
	case *ssa.MapUpdate:
		f.b.Assign(ir.NewOp("index", f.value(instr.Map), f.value(instr.Key)), f.value(instr.Value))
	case *ssa.Send:
		f.b.Assign(ir.NewOp("chan", f.value(instr.Chan)), f.value(instr.X))
	case *ssa.FieldAddr:
		f.lowerField(instr, instr.X, instr.Field)
	case *ssa.Field:
		f.lowerField(instr, instr.X, instr.Field)
	case ssa.Value:
		// values of a block are always instructions
		var operands []ir.Value
		for _, o := range instr.(ssa.Instruction).Operands(nil) {
			if *o != nil {
				operands = append(operands, f.value(*o))
			}
		}
		op := ir.NewOp(opName(instr), operands...)
		op.Type = typeString(instr.Type())
		f.b.Assign(f.local(instr), op)
	default:
		f.b.Nop()
	}
}

func (f *fnLowerer) lowerField(v ssa.Value, x ssa.Value, index int) {
	if ref := f.fieldRef(x, index); ref != nil {
		f.b.Assign(f.local(v), ref)
		return
	}
	op := ir.NewOp(opName(v), f.value(x), ir.NewConst(fmt.Sprint(index), "int"))
	f.b.Assign(f.local(v), op)
}

// fieldRef returns a reference to field index of x when x is a local whose type is a class
func (f *fnLowerer) fieldRef(x ssa.Value, index int) *ir.FieldRef {
	field := f.field(x, index)
	if field == nil {
		return nil
	}
	base, ok := f.value(x).(*ir.Local)
	if !ok {
		return nil
	}
	return ir.FieldOf(base, field)
}

func (f *fnLowerer) storeDestination(addr ssa.Value) ir.Value {
	switch addr := addr.(type) {
	case *ssa.FieldAddr:
		if ref := f.fieldRef(addr.X, addr.Field); ref != nil {
			return ref
		}
	case *ssa.Global:
		return ir.FieldOf(nil, f.global(addr))
	}
	return ir.NewOp("*", f.value(addr))
}

func (f *fnLowerer) call(c *ssa.CallCommon) (ir.Callee, []ir.Value) {
	args := f.values(c.Args)
	if c.IsInvoke() {
		callee := ir.Callee{Type: namedName(c.Value.Type()), Name: c.Method.Name()}
		if c.Method.Pkg() != nil {
			callee.Package = c.Method.Pkg().Path()
		}
		return callee, append([]ir.Value{f.value(c.Value)}, args...)
	}
	switch v := c.Value.(type) {
	case *ssa.Builtin:
		return ir.Callee{Name: v.Name()}, args
	case *ssa.Function:
		fn := v
		if fn.Origin() != nil {
			fn = fn.Origin()
		}
		callee := ir.Callee{Package: packagePath(fn), Name: fn.Name()}
		if recv := fn.Signature.Recv(); recv != nil {
			callee.Type = namedName(recv.Type())
		}
		return callee, args
	case *ssa.MakeClosure:
		if fn, ok := v.Fn.(*ssa.Function); ok {
			return ir.Callee{Package: packagePath(fn), Name: fn.Name()}, append(args, f.values(v.Bindings)...)
		}
	}
	return ir.Callee{Name: DynamicCallee}, append([]ir.Value{f.value(c.Value)}, args...)
}

func (f *fnLowerer) values(vs []ssa.Value) []ir.Value {
	res := make([]ir.Value, len(vs))
	for k, v := range vs {
		res[k] = f.value(v)
	}
	return res
}

// value returns the operand representing v. Values defined by instructions are locals, created on first use since
// an operand may be defined by a block lowered later.
func (f *fnLowerer) value(v ssa.Value) ir.Value {
	switch v := v.(type) {
	case *ssa.Const:
		if v.Value == nil {
			return ir.NewConst("nil", typeString(v.Type()))
		}
		return ir.NewConst(v.Value.ExactString(), typeString(v.Type()))
	case *ssa.Global:
		return ir.FieldOf(nil, f.global(v))
	case *ssa.Function:
		return ir.NewConst(v.String(), typeString(v.Type()))
	case *ssa.Builtin:
		return ir.NewConst(v.Name(), "builtin")
	default:
		return f.local(v)
	}
}

func (f *fnLowerer) local(v ssa.Value) *ir.Local {
	if l, ok := f.locals[v]; ok {
		return l
	}
	l := f.b.Local(v.Name(), typeString(v.Type()))
	f.locals[v] = l
	return l
}

// opName returns the operator of the expression computing v
func opName(v ssa.Value) string {
	switch v := v.(type) {
	case *ssa.UnOp:
		return v.Op.String()
	case *ssa.BinOp:
		return v.Op.String()
	case *ssa.Alloc:
		return "new"
	case *ssa.Phi:
		return "phi"
	case *ssa.ChangeInterface, *ssa.ChangeType, *ssa.Convert, *ssa.MultiConvert, *ssa.SliceToArrayPointer:
		return "convert"
	case *ssa.MakeInterface:
		return "makeinterface"
	case *ssa.MakeClosure:
		return "makeclosure"
	case *ssa.MakeChan:
		return "makechan"
	case *ssa.MakeMap:
		return "makemap"
	case *ssa.MakeSlice:
		return "makeslice"
	case *ssa.Slice:
		return "slice"
	case *ssa.FieldAddr:
		return "&field"
	case *ssa.Field:
		return "field"
	case *ssa.IndexAddr:
		return "&index"
	case *ssa.Index, *ssa.Lookup:
		return "index"
	case *ssa.Extract:
		return fmt.Sprintf("extract%d", v.Index)
	case *ssa.TypeAssert:
		return "typeassert"
	case *ssa.Range:
		return "range"
	case *ssa.Next:
		return "next"
	case *ssa.Select:
		return "select"
	default:
		return strings.ToLower(strings.TrimPrefix(fmt.Sprintf("%T", v), "*ssa."))
	}
}
