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

package dominance

import (
	"fmt"

	"github.com/statecraft/asmi/internal/graphutil"
	"gonum.org/v1/gonum/graph/flow"
	"gonum.org/v1/gonum/graph/simple"
)

// Verify checks the immediate dominators of t against the Lengauer-Tarjan dominator tree computed by gonum.
// The roots are attached to a virtual root; edges into roots are ignored since a root only dominates itself.
func Verify(t *Tree) error {
	c := t.cfg
	n := c.Len()
	g := graphutil.NewDigraph(n + 1)
	super := n
	for _, r := range c.Roots() {
		g.AddEdge(super, r.Index)
	}
	for k := 0; k < n; k++ {
		for _, s := range c.Graph().Succs(k) {
			if !c.IsRoot(c.At(s)) {
				g.AddEdge(k, s)
			}
		}
	}

	lt := flow.Dominators(simple.Node(super), g)
	for k := 0; k < n; k++ {
		expected := -1
		if d := lt.DominatorOf(int64(k)); d != nil && d.ID() != int64(super) {
			expected = int(d.ID())
		}
		if t.parent[k] != expected {
			return fmt.Errorf("immediate dominator of %s in %s is %d, expected %d",
				c.At(k), c.Procedure(), t.parent[k], expected)
		}
	}
	return nil
}
