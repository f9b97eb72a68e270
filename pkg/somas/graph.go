// Copyright The Somas Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package somas

import (
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"
	idset "github.com/intel/goresctrl/pkg/utils"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Node is a single operation of the computation graph. A node runs on
// one stream, produces tensors and consumes tensors produced by other
// nodes.
type Node struct {
	id      NodeID
	stream  StreamID
	name    string
	order   int
	outputs []TensorID
	inputs  idset.IDSet
}

// NodeOption is an opaque option which can be applied to a Node.
type NodeOption func(*Node) error

// WithNodeName returns an option to name a node for diagnostic output.
func WithNodeName(name string) NodeOption {
	return func(n *Node) error {
		n.name = name
		return nil
	}
}

// ID returns the id of this node.
func (n *Node) ID() NodeID {
	return n.id
}

// Stream returns the stream this node runs on.
func (n *Node) Stream() StreamID {
	return n.stream
}

// Name returns the diagnostic name of this node.
func (n *Node) Name() string {
	if n.name == "" {
		return fmt.Sprintf("node-%d", n.id)
	}
	return n.name
}

// Order returns the execution index of this node. It is valid once the
// graph has been ordered for planning.
func (n *Node) Order() int {
	return n.order
}

// Outputs returns the tensors produced by this node, in declaration
// order.
func (n *Node) Outputs() []TensorID {
	return slices.Clone(n.outputs)
}

// Inputs returns the tensors consumed by this node.
func (n *Node) Inputs() idset.IDSet {
	return n.inputs.Clone()
}

// String returns a string representation of this node.
func (n *Node) String() string {
	return fmt.Sprintf("<node #%d %q, stream #%d>", n.id, n.Name(), n.stream)
}

// aliasPair records a deliberate storage alias between two tensors.
type aliasPair struct {
	leader   TensorID
	follower TensorID
}

// Graph describes the computation to plan pool memory for: nodes on
// execution streams, the tensors they produce, and the consumer edges
// between them. A Graph is assembled by the caller and must not be
// modified once a Planner has been created for it.
type Graph struct {
	nodes   map[NodeID]*Node
	tensors map[TensorID]*Tensor
	outputs idset.IDSet
	aliases []aliasPair
	aliased map[TensorID]TensorID
	leaders idset.IDSet
	dag     *simple.DirectedGraph
}

// NewGraph creates a new, empty computation graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[NodeID]*Node),
		tensors: make(map[TensorID]*Tensor),
		outputs: idset.NewIDSet(),
		aliased: make(map[TensorID]TensorID),
		leaders: idset.NewIDSet(),
		dag:     simple.NewDirectedGraph(),
	}
}

// AddNode adds a node with the given id to the graph on the given
// stream.
func (g *Graph) AddNode(id NodeID, stream StreamID, options ...NodeOption) (*Node, error) {
	if id < 0 {
		return nil, fmt.Errorf("%w: negative node id %d", ErrInvalidNode, id)
	}
	if stream < 0 {
		return nil, fmt.Errorf("%w: #%d: negative stream id %d", ErrInvalidNode, id, stream)
	}
	if _, ok := g.nodes[id]; ok {
		return nil, fmt.Errorf("%w: node #%d already exists", ErrInvalidNode, id)
	}

	n := &Node{
		id:     id,
		stream: stream,
		inputs: idset.NewIDSet(),
	}
	for _, o := range options {
		if err := o(n); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedOption, err)
		}
	}

	g.nodes[id] = n
	g.dag.AddNode(simple.Node(int64(id)))
	return n, nil
}

// Produce creates a tensor produced by the given node. Tensors get
// dense ordinal ids in creation order.
func (g *Graph) Produce(node NodeID, size int64, options ...TensorOption) (*Tensor, error) {
	n, ok := g.nodes[node]
	if !ok {
		return nil, fmt.Errorf("%w: producer node #%d", ErrUnknownNode, node)
	}

	t, err := newTensor(TensorID(len(g.tensors)), n.id, n.stream, size, options...)
	if err != nil {
		return nil, err
	}

	g.tensors[t.id] = t
	n.outputs = append(n.outputs, t.id)
	return t, nil
}

// Consume records that the given node consumes the given tensors.
// Consuming the same tensor twice is harmless; a node consuming its
// own output is not a usable graph.
func (g *Graph) Consume(node NodeID, tensors ...TensorID) error {
	n, ok := g.nodes[node]
	if !ok {
		return fmt.Errorf("%w: consumer node #%d", ErrUnknownNode, node)
	}

	for _, id := range tensors {
		t, ok := g.tensors[id]
		if !ok {
			return fmt.Errorf("%w: node #%d consumes tensor #%d", ErrUnknownTensor, node, id)
		}
		if t.node == n.id {
			return fmt.Errorf("%w: node #%d consumes its own output #%d",
				ErrInvalidGraph, node, id)
		}

		n.inputs.Add(id)
		g.dag.SetEdge(g.dag.NewEdge(
			simple.Node(int64(t.node)),
			simple.Node(int64(n.id)),
		))
	}

	return nil
}

// MarkOutput declares the given tensors graph outputs for the default
// lifelong policy.
func (g *Graph) MarkOutput(tensors ...TensorID) error {
	for _, id := range tensors {
		if _, ok := g.tensors[id]; !ok {
			return fmt.Errorf("%w: graph output tensor #%d", ErrUnknownTensor, id)
		}
		g.outputs.Add(id)
	}
	return nil
}

// MarkRefOverlap records that the follower tensor deliberately shares
// the leader's storage. The follower is never solved on its own; it is
// assigned the leader's offset once the leader is placed.
func (g *Graph) MarkRefOverlap(leader, follower TensorID) error {
	lt, ok := g.tensors[leader]
	if !ok {
		return fmt.Errorf("%w: alias leader #%d", ErrUnknownTensor, leader)
	}
	ft, ok := g.tensors[follower]
	if !ok {
		return fmt.Errorf("%w: alias follower #%d", ErrUnknownTensor, follower)
	}

	switch {
	case leader == follower:
		return fmt.Errorf("%w: tensor #%d aliasing itself", ErrInvalidAlias, leader)
	case ft.alignedSize > lt.alignedSize:
		return fmt.Errorf("%w: follower #%d (%d bytes) larger than leader #%d (%d bytes)",
			ErrInvalidAlias, follower, ft.alignedSize, leader, lt.alignedSize)
	case lt.contiguous || ft.contiguous:
		return fmt.Errorf("%w: #%d aliasing #%d: contiguous group members cannot alias",
			ErrInvalidAlias, follower, leader)
	}
	if _, ok := g.aliased[follower]; ok {
		return fmt.Errorf("%w: follower #%d already aliases another tensor",
			ErrInvalidAlias, follower)
	}
	if g.leaders.Has(follower) {
		return fmt.Errorf("%w: follower #%d already leads another alias",
			ErrInvalidAlias, follower)
	}
	if _, ok := g.aliased[leader]; ok {
		return fmt.Errorf("%w: leader #%d already aliases another tensor",
			ErrInvalidAlias, leader)
	}

	lt.markRefOverlap()
	ft.markRefOverlap()
	g.aliases = append(g.aliases, aliasPair{leader: leader, follower: follower})
	g.aliased[follower] = leader
	g.leaders.Add(leader)
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns the nodes of the graph in ascending id order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b *Node) int {
		return int(a.id - b.id)
	})
	return nodes
}

// Tensor returns the tensor with the given id.
func (g *Graph) Tensor(id TensorID) (*Tensor, bool) {
	t, ok := g.tensors[id]
	return t, ok
}

// Tensors returns the tensors of the graph in ascending id order.
func (g *Graph) Tensors() []*Tensor {
	return SortTensors(g.tensors, nil, TensorsByID)
}

// ForeachTensor calls the given function for each tensor in ascending
// id order, until the function returns ForeachDone.
func (g *Graph) ForeachTensor(fn func(*Tensor) bool) {
	for _, t := range g.Tensors() {
		if !fn(t) {
			return
		}
	}
}

// Outputs returns the declared graph output tensors.
func (g *Graph) Outputs() []TensorID {
	return g.outputs.SortedMembers()
}

// IsOutput returns true if the given tensor is a declared graph output.
func (g *Graph) IsOutput(id TensorID) bool {
	return g.outputs.Has(id)
}

// IsAliasFollower returns true, and the alias leader, if the given
// tensor deliberately shares another tensor's storage.
func (g *Graph) IsAliasFollower(id TensorID) (TensorID, bool) {
	leader, ok := g.aliased[id]
	return leader, ok
}

// Streams returns the streams of the graph in ascending id order.
func (g *Graph) Streams() []StreamID {
	streams := idset.NewIDSet()
	for _, n := range g.nodes {
		streams.Add(n.stream)
	}
	return streams.SortedMembers()
}

// validate checks the internal consistency of the graph. The intake
// methods validate eagerly, so anything caught here indicates either
// an internal error or mutation behind the planner's back.
func (g *Graph) validate() error {
	var errs *multierror.Error

	for _, n := range g.Nodes() {
		for _, id := range n.inputs.SortedMembers() {
			if _, ok := g.tensors[id]; !ok {
				errs = multierror.Append(errs, fmt.Errorf("%w: node #%d consumes #%d",
					ErrUnknownTensor, n.id, id))
			}
		}
		for _, id := range n.outputs {
			t, ok := g.tensors[id]
			if !ok {
				errs = multierror.Append(errs, fmt.Errorf("%w: node #%d produces #%d",
					ErrUnknownTensor, n.id, id))
				continue
			}
			if t.node != n.id {
				errs = multierror.Append(errs, fmt.Errorf("%w: #%d recorded for node #%d, produced by #%d",
					ErrInternalError, id, n.id, t.node))
			}
		}
	}

	for _, t := range g.Tensors() {
		if _, ok := g.nodes[t.node]; !ok {
			errs = multierror.Append(errs, fmt.Errorf("%w: tensor #%d produced by node #%d",
				ErrUnknownNode, t.id, t.node))
		}
	}

	for _, id := range g.outputs.SortedMembers() {
		if _, ok := g.tensors[id]; !ok {
			errs = multierror.Append(errs, fmt.Errorf("%w: graph output #%d",
				ErrUnknownTensor, id))
		}
	}

	for _, pair := range g.aliases {
		lt, lok := g.tensors[pair.leader]
		ft, fok := g.tensors[pair.follower]
		switch {
		case !lok || !fok:
			errs = multierror.Append(errs, fmt.Errorf("%w: alias pair #%d/#%d",
				ErrUnknownTensor, pair.leader, pair.follower))
		case lt.contiguous || ft.contiguous:
			errs = multierror.Append(errs, fmt.Errorf("%w: aliased #%d/#%d in a contiguous group",
				ErrInvalidAlias, pair.leader, pair.follower))
		case ft.alignedSize > lt.alignedSize:
			errs = multierror.Append(errs, fmt.Errorf("%w: follower #%d larger than leader #%d",
				ErrInvalidAlias, pair.follower, pair.leader))
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidGraph, err)
	}
	return nil
}

// order returns the nodes in deterministic topological order and
// assigns each node its execution index.
func (g *Graph) order() ([]*Node, error) {
	sorted, err := topo.SortStabilized(g.dag, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dependency cycle: %v", ErrInvalidGraph, err)
	}

	nodes := make([]*Node, 0, len(sorted))
	for i, gn := range sorted {
		n, ok := g.nodes[NodeID(gn.ID())]
		if !ok {
			return nil, fmt.Errorf("%w: ordered unknown node #%d", ErrInternalError, gn.ID())
		}
		n.order = i
		nodes = append(nodes, n)
	}
	return nodes, nil
}
