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

// Package graphutil adapts dense directed graphs to existing graph libraries.
package graphutil

import (
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"
)

// Digraph is a directed graph over the nodes 0..Order()-1. Successors and predecessors are kept in insertion order.
// It implements graph.Iterator of github.com/yourbasic/graph and gonum's graph.Directed.
type Digraph struct {
	succs [][]int
	preds [][]int
}

// NewDigraph returns a graph with n nodes and no edges
func NewDigraph(n int) *Digraph {
	return &Digraph{
		succs: make([][]int, n),
		preds: make([][]int, n),
	}
}

// AddEdge adds the edge u -> v. Duplicate edges are ignored.
func (g *Digraph) AddEdge(u, v int) {
	if slices.Contains(g.succs[u], v) {
		return
	}
	g.succs[u] = append(g.succs[u], v)
	g.preds[v] = append(g.preds[v], u)
}

// Succs returns the successors of u. The slice is owned by the graph.
func (g *Digraph) Succs(u int) []int { return g.succs[u] }

// Preds returns the predecessors of u. The slice is owned by the graph.
func (g *Digraph) Preds(u int) []int { return g.preds[u] }

func (g *Digraph) valid(id int64) bool { return id >= 0 && id < int64(len(g.succs)) }

// Order implements the order of the graph.Iterator interface for the Digraph
func (g *Digraph) Order() int {
	return len(g.succs)
}

// Visit implements the graph.Iterator interface for the Digraph
func (g *Digraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if !g.valid(int64(v)) {
		return false
	}
	for _, w := range g.succs[v] {
		if do(w, 1) {
			return true
		}
	}
	return false
}

// *************** Graph interface implementation **********************

// Node implements the Graph interface
func (g *Digraph) Node(id int64) graph.Node {
	if !g.valid(id) {
		return nil
	}
	return simple.Node(id)
}

// Nodes returns the set of nodes in the graph, in increasing order
func (g *Digraph) Nodes() graph.Nodes {
	nodes := make([]graph.Node, len(g.succs))
	for i := range g.succs {
		nodes[i] = simple.Node(i)
	}
	return iterator.NewOrderedNodes(nodes)
}

// From returns the set of nodes reachable in one step from the id
func (g *Digraph) From(id int64) graph.Nodes {
	if !g.valid(id) {
		return iterator.NewOrderedNodes(nil)
	}
	return toNodes(g.succs[id])
}

// To returns the set of nodes that reach the id in one step
func (g *Digraph) To(id int64) graph.Nodes {
	if !g.valid(id) {
		return iterator.NewOrderedNodes(nil)
	}
	return toNodes(g.preds[id])
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (g *Digraph) HasEdgeBetween(xid, yid int64) bool {
	return g.HasEdgeFromTo(xid, yid) || g.HasEdgeFromTo(yid, xid)
}

// HasEdgeFromTo returns whether the edge uid -> vid exists
func (g *Digraph) HasEdgeFromTo(uid, vid int64) bool {
	return g.valid(uid) && g.valid(vid) && slices.Contains(g.succs[uid], int(vid))
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (g *Digraph) Edge(uid, vid int64) graph.Edge {
	if !g.HasEdgeFromTo(uid, vid) {
		return nil
	}
	return simple.Edge{F: simple.Node(uid), T: simple.Node(vid)}
}

func toNodes(ids []int) graph.Nodes {
	nodes := make([]graph.Node, len(ids))
	for i, id := range ids {
		nodes[i] = simple.Node(id)
	}
	return iterator.NewOrderedNodes(nodes)
}
