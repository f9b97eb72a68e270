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
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/devicemem/somas/pkg/somas"
)

func plan(t *testing.T, g *Graph, options ...PlannerOption) *Layout {
	t.Helper()

	p, err := NewPlanner(g, options...)
	require.NoError(t, err)

	layout, err := p.Plan(context.Background())
	require.NoError(t, err)
	require.NotNil(t, layout)
	return layout
}

func TestLifetimeChain(t *testing.T) {
	g := NewGraph()

	for id := NodeID(0); id < 3; id++ {
		_, err := g.AddNode(id, 0)
		require.NoError(t, err)
	}

	t0, err := g.Produce(0, 100)
	require.NoError(t, err)
	t1, err := g.Produce(1, 600)
	require.NoError(t, err)
	dead, err := g.Produce(1, 100)
	require.NoError(t, err)

	require.NoError(t, g.Consume(1, t0.ID()))
	require.NoError(t, g.Consume(2, t1.ID()))

	plan(t, g)

	require.Equal(t, Lifetime{Begin: 0, End: 1}, t0.Lifetime())
	require.Equal(t, Lifetime{Begin: 1, End: 2}, t1.Lifetime())
	require.Equal(t, Lifetime{Begin: 1, End: 1}, dead.Lifetime(),
		"a tensor nobody consumes dies at its producer")

	require.False(t, t0.BetweenStreams())
	require.Equal(t, LifeLongNone, t0.LifeLong())
}

func TestLifetimeBetweenStreams(t *testing.T) {
	g := NewGraph()

	_, err := g.AddNode(0, 0)
	require.NoError(t, err)
	_, err = g.AddNode(1, 1)
	require.NoError(t, err)
	_, err = g.AddNode(2, 1)
	require.NoError(t, err)

	crossing, err := g.Produce(0, 100)
	require.NoError(t, err)
	local, err := g.Produce(1, 600)
	require.NoError(t, err)

	require.NoError(t, g.Consume(1, crossing.ID()))
	require.NoError(t, g.Consume(2, local.ID()))

	plan(t, g)

	require.True(t, crossing.BetweenStreams())
	require.Equal(t, Lifetime{Begin: 0, End: 2}, crossing.Lifetime(),
		"extended until the consuming stream drains")

	require.False(t, local.BetweenStreams())
	require.Equal(t, Lifetime{Begin: 1, End: 2}, local.Lifetime())
}

func TestLifetimeDefaultPolicy(t *testing.T) {
	g := NewGraph()

	for id := NodeID(0); id < 3; id++ {
		_, err := g.AddNode(id, 0)
		require.NoError(t, err)
	}

	output, err := g.Produce(0, 100)
	require.NoError(t, err)
	outputOnly, err := g.Produce(0, 100, WithKind(KindOutputOnly))
	require.NoError(t, err)
	t2, err := g.Produce(1, 600)
	require.NoError(t, err)

	require.NoError(t, g.Consume(1, output.ID()))
	require.NoError(t, g.Consume(2, t2.ID()))
	require.NoError(t, g.MarkOutput(output.ID()))

	plan(t, g)

	require.Equal(t, LifeLongGraphAll, output.LifeLong(),
		"graph outputs are pinned by the default policy")
	require.Equal(t, Lifetime{Begin: 0, End: 2}, output.Lifetime())

	require.Equal(t, LifeLongGraphAll, outputOnly.LifeLong(),
		"output-only tensors are pinned by the default policy")
	require.Equal(t, Lifetime{Begin: 0, End: 2}, outputOnly.Lifetime())

	require.Equal(t, LifeLongNone, t2.LifeLong())
}

func TestLifetimePresetPinning(t *testing.T) {
	g := NewGraph()

	for id := NodeID(0); id < 3; id++ {
		_, err := g.AddNode(id, 0)
		require.NoError(t, err)
	}

	fromStart, err := g.Produce(1, 100, WithLifeLong(LifeLongGraphStart))
	require.NoError(t, err)
	toEnd, err := g.Produce(0, 100, WithLifeLong(LifeLongGraphEnd))
	require.NoError(t, err)
	chain, err := g.Produce(0, 600)
	require.NoError(t, err)

	require.NoError(t, g.Consume(1, chain.ID()))
	require.NoError(t, g.Consume(2, fromStart.ID()))

	plan(t, g)

	require.Equal(t, Lifetime{Begin: 0, End: 2}, fromStart.Lifetime(),
		"start pinned to graph start")
	require.Equal(t, Lifetime{Begin: 0, End: 2}, toEnd.Lifetime(),
		"end pinned to graph end")
}

func TestLifetimeCustomPolicy(t *testing.T) {
	g := NewGraph()

	_, err := g.AddNode(0, 0)
	require.NoError(t, err)
	_, err = g.AddNode(1, 0)
	require.NoError(t, err)

	output, err := g.Produce(0, 100)
	require.NoError(t, err)
	require.NoError(t, g.Consume(1, output.ID()))
	require.NoError(t, g.MarkOutput(output.ID()))

	nothingPinned := func(g *Graph, t *Tensor) LifeLong {
		return LifeLongNone
	}
	plan(t, g, WithLifelongPolicy(nothingPinned))

	require.Equal(t, LifeLongNone, output.LifeLong(),
		"custom policy overrides output pinning")
	require.Equal(t, Lifetime{Begin: 0, End: 1}, output.Lifetime())
}
