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

func TestConflictCounts(t *testing.T) {
	// diamond: everything is transitively live at node 2, so all three
	// tensors conflict pairwise
	g := NewGraph()

	for id := NodeID(0); id < 4; id++ {
		_, err := g.AddNode(id, 0)
		require.NoError(t, err)
	}

	a, err := g.Produce(0, 100)
	require.NoError(t, err)
	b, err := g.Produce(1, 100)
	require.NoError(t, err)
	c, err := g.Produce(2, 100)
	require.NoError(t, err)

	require.NoError(t, g.Consume(1, a.ID()))
	require.NoError(t, g.Consume(2, a.ID()))
	require.NoError(t, g.Consume(3, b.ID(), c.ID()))

	layout := plan(t, g)

	require.Equal(t, 2, a.Constraints())
	require.Equal(t, 2, b.Constraints())
	require.Equal(t, 2, c.Constraints())
	require.Equal(t, int64(1536), layout.PoolSize(), "nothing can share bytes")
}

func TestConflictReuse(t *testing.T) {
	// a chain long enough for the ends to never coexist
	g := NewGraph()

	for id := NodeID(0); id < 4; id++ {
		_, err := g.AddNode(id, 0)
		require.NoError(t, err)
	}

	t0, err := g.Produce(0, 100)
	require.NoError(t, err)
	t1, err := g.Produce(1, 100)
	require.NoError(t, err)
	t2, err := g.Produce(2, 100)
	require.NoError(t, err)

	require.NoError(t, g.Consume(1, t0.ID()))
	require.NoError(t, g.Consume(2, t1.ID()))
	require.NoError(t, g.Consume(3, t2.ID()))

	layout := plan(t, g)

	require.Equal(t, 1, t0.Constraints())
	require.Equal(t, 2, t1.Constraints())
	require.Equal(t, 1, t2.Constraints())

	o0, ok := layout.Offset(t0.ID())
	require.True(t, ok)
	o2, ok := layout.Offset(t2.ID())
	require.True(t, ok)
	require.Equal(t, o0, o2, "disjoint lifetimes share bytes")
	require.Equal(t, int64(1024), layout.PoolSize())
}

func TestConflictAliasFolding(t *testing.T) {
	// an in-place consumer keeps its operand's storage alive: the
	// follower's lifetime extends the leader's conflict interval
	g := NewGraph()

	for id := NodeID(0); id < 4; id++ {
		_, err := g.AddNode(id, 0)
		require.NoError(t, err)
	}

	leader, err := g.Produce(0, 600)
	require.NoError(t, err)
	follower, err := g.Produce(1, 100)
	require.NoError(t, err)
	x, err := g.Produce(2, 600)
	require.NoError(t, err)

	require.NoError(t, g.Consume(1, leader.ID()))
	require.NoError(t, g.Consume(2, follower.ID()))
	require.NoError(t, g.Consume(3, x.ID()))
	require.NoError(t, g.MarkRefOverlap(leader.ID(), follower.ID()))

	layout := plan(t, g)

	require.Equal(t, 1, leader.Constraints(),
		"leader inherits the follower's conflicts")
	require.Equal(t, 0, follower.Constraints(),
		"followers are never solved on their own")
	require.Equal(t, 1, x.Constraints())

	lo, ok := layout.Offset(leader.ID())
	require.True(t, ok)
	fo, ok := layout.Offset(follower.ID())
	require.True(t, ok)
	xo, ok := layout.Offset(x.ID())
	require.True(t, ok)

	require.Equal(t, lo, fo, "follower placed at its leader")
	require.NotEqual(t, lo, xo)
	require.Equal(t, int64(2048), layout.PoolSize())
}

func TestConflictZeroSize(t *testing.T) {
	g := NewGraph()

	_, err := g.AddNode(0, 0)
	require.NoError(t, err)
	_, err = g.AddNode(1, 0)
	require.NoError(t, err)

	empty, err := g.Produce(0, 0)
	require.NoError(t, err)
	full, err := g.Produce(0, 600)
	require.NoError(t, err)

	require.NoError(t, g.Consume(1, empty.ID(), full.ID()))

	layout := plan(t, g)

	require.Equal(t, 0, empty.Constraints(), "zero-size tensors never conflict")
	offset, ok := layout.Offset(empty.ID())
	require.True(t, ok)
	require.Equal(t, int64(0), offset)
	require.Equal(t, int64(1024), layout.PoolSize())
}
