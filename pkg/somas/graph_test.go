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

package somas_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/devicemem/somas/pkg/somas"
)

func TestAddNode(t *testing.T) {
	g := NewGraph()

	n, err := g.AddNode(0, 0, WithNodeName("conv"))
	require.NoError(t, err)
	require.NotNil(t, n)
	require.Equal(t, NodeID(0), n.ID())
	require.Equal(t, StreamID(0), n.Stream())
	require.Equal(t, "conv", n.Name())

	_, err = g.AddNode(0, 0)
	require.ErrorIs(t, err, ErrInvalidNode, "duplicate node id")
	_, err = g.AddNode(-1, 0)
	require.ErrorIs(t, err, ErrInvalidNode, "negative node id")
	_, err = g.AddNode(1, -1)
	require.ErrorIs(t, err, ErrInvalidNode, "negative stream id")

	unnamed, err := g.AddNode(1, 2)
	require.NoError(t, err)
	require.Equal(t, "node-1", unnamed.Name())

	require.Equal(t, []StreamID{0, 2}, g.Streams())
}

func TestProduceConsume(t *testing.T) {
	g := NewGraph()

	_, err := g.AddNode(0, 0)
	require.NoError(t, err)
	_, err = g.AddNode(1, 0)
	require.NoError(t, err)

	_, err = g.Produce(7, 100)
	require.ErrorIs(t, err, ErrUnknownNode, "unknown producer")

	t0, err := g.Produce(0, 100)
	require.NoError(t, err)
	t1, err := g.Produce(0, 600)
	require.NoError(t, err)
	require.Equal(t, TensorID(0), t0.ID(), "dense ordinal ids")
	require.Equal(t, TensorID(1), t1.ID(), "dense ordinal ids")

	n0, ok := g.Node(0)
	require.True(t, ok)
	require.Equal(t, []TensorID{t0.ID(), t1.ID()}, n0.Outputs())

	err = g.Consume(7, t0.ID())
	require.ErrorIs(t, err, ErrUnknownNode, "unknown consumer")
	err = g.Consume(1, TensorID(42))
	require.ErrorIs(t, err, ErrUnknownTensor, "unknown input")
	err = g.Consume(0, t0.ID())
	require.ErrorIs(t, err, ErrInvalidGraph, "node consuming its own output")

	require.NoError(t, g.Consume(1, t0.ID(), t1.ID()))
	require.NoError(t, g.Consume(1, t0.ID()), "repeated consumption is harmless")

	n1, ok := g.Node(1)
	require.True(t, ok)
	require.Equal(t, 2, n1.Inputs().Size())
}

func TestMarkOutput(t *testing.T) {
	g := NewGraph()

	_, err := g.AddNode(0, 0)
	require.NoError(t, err)
	t0, err := g.Produce(0, 100)
	require.NoError(t, err)

	require.ErrorIs(t, g.MarkOutput(TensorID(9)), ErrUnknownTensor)
	require.NoError(t, g.MarkOutput(t0.ID()))
	require.True(t, g.IsOutput(t0.ID()))
	require.Equal(t, []TensorID{t0.ID()}, g.Outputs())
}

func TestMarkRefOverlap(t *testing.T) {
	g := NewGraph()

	_, err := g.AddNode(0, 0)
	require.NoError(t, err)

	leader, err := g.Produce(0, 600)
	require.NoError(t, err)
	follower, err := g.Produce(0, 100)
	require.NoError(t, err)
	big, err := g.Produce(0, 4096)
	require.NoError(t, err)
	other, err := g.Produce(0, 100)
	require.NoError(t, err)

	require.ErrorIs(t, g.MarkRefOverlap(TensorID(9), follower.ID()), ErrUnknownTensor)
	require.ErrorIs(t, g.MarkRefOverlap(leader.ID(), TensorID(9)), ErrUnknownTensor)
	require.ErrorIs(t, g.MarkRefOverlap(leader.ID(), leader.ID()), ErrInvalidAlias,
		"self-alias")
	require.ErrorIs(t, g.MarkRefOverlap(leader.ID(), big.ID()), ErrInvalidAlias,
		"follower larger than leader")

	require.NoError(t, g.MarkRefOverlap(leader.ID(), follower.ID()))
	require.True(t, leader.RefOverlap())
	require.True(t, follower.RefOverlap())

	id, ok := g.IsAliasFollower(follower.ID())
	require.True(t, ok)
	require.Equal(t, leader.ID(), id)
	_, ok = g.IsAliasFollower(leader.ID())
	require.False(t, ok)

	require.ErrorIs(t, g.MarkRefOverlap(big.ID(), follower.ID()), ErrInvalidAlias,
		"follower already follows another tensor")
	require.ErrorIs(t, g.MarkRefOverlap(follower.ID(), other.ID()), ErrInvalidAlias,
		"follower cannot lead an alias of its own")
	require.ErrorIs(t, g.MarkRefOverlap(big.ID(), leader.ID()), ErrInvalidAlias,
		"leader cannot follow another tensor")

	require.NoError(t, g.MarkRefOverlap(leader.ID(), other.ID()),
		"a leader can have several followers")
}

func TestGraphAccessors(t *testing.T) {
	g := NewGraph()

	_, err := g.AddNode(3, 1)
	require.NoError(t, err)
	_, err = g.AddNode(1, 0)
	require.NoError(t, err)

	t0, err := g.Produce(3, 100)
	require.NoError(t, err)
	t1, err := g.Produce(1, 600)
	require.NoError(t, err)

	nodes := g.Nodes()
	require.Equal(t, 2, len(nodes))
	require.Equal(t, NodeID(1), nodes[0].ID(), "nodes sorted by id")
	require.Equal(t, NodeID(3), nodes[1].ID())

	tensors := g.Tensors()
	require.Equal(t, 2, len(tensors))
	require.Equal(t, t0.ID(), tensors[0].ID(), "tensors sorted by id")
	require.Equal(t, t1.ID(), tensors[1].ID())

	count := 0
	g.ForeachTensor(func(*Tensor) bool {
		count++
		return ForeachDone
	})
	require.Equal(t, 1, count, "iteration stops on ForeachDone")

	_, ok := g.Tensor(TensorID(42))
	require.False(t, ok)
	_, ok = g.Node(NodeID(42))
	require.False(t, ok)
}

func TestConfigurationErrors(t *testing.T) {
	g := NewGraph()
	_, err := g.AddNode(0, 0)
	require.NoError(t, err)

	_, err = g.Produce(0, -1)
	require.True(t, IsConfigurationError(err))
	err = g.Consume(42, 0)
	require.True(t, IsConfigurationError(err))
	require.False(t, IsConfigurationError(nil))
	require.False(t, IsConfigurationError(ErrSolverDesync))
}
