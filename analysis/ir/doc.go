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

/*
Package ir defines the instruction-level representation the state machine analyses run on.

A [Procedure] is a flat list of [Instruction]s. Control falls through from one instruction to the next unless the
operation says otherwise; branch operations ([If], [Switch], [Goto]) hold pointers to their targets so that
inserting instructions never invalidates them. Panics raised inside the range of a [Trap] are routed to the trap's
handler, whose first instruction binds the recovered value with an [Identity] of a [CaughtExceptionRef].

The set of operations is closed. Analyses that need to treat every operation implement [Visitor] and use [Visit];
the derivation uses [ShapeOf] to classify instructions as conditional, multi-way or sequential.

Procedures are produced by the Go frontend or assembled by hand with a [Builder]:

	b := ir.NewBuilder(class, "Run")
	this := b.This()
	x := b.Local("x", "bool")
	b.Assign(x, ir.FieldOf(this, running))
	b.If(x, "stop")
	b.Invoke(work)
	b.Label("stop")
	b.Return(nil)
	proc, err := b.Build()
*/
package ir
