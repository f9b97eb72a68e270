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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	. "github.com/devicemem/somas/pkg/somas"
	"github.com/devicemem/somas/pkg/somas/solver"
)

func TestCollector(t *testing.T) {
	g := NewGraph()

	_, err := g.AddNode(0, 0)
	require.NoError(t, err)
	_, err = g.AddNode(1, 0)
	require.NoError(t, err)

	a, err := g.Produce(0, 100)
	require.NoError(t, err)
	b, err := g.Produce(0, 600)
	require.NoError(t, err)
	require.NoError(t, g.Consume(1, a.ID(), b.ID()))

	p, err := NewPlanner(g, WithSolverName(solver.SequentialSolver))
	require.NoError(t, err)

	collector := NewCollector(p)

	descs := make(chan *prometheus.Desc, 32)
	collector.Describe(descs)
	close(descs)

	names := 0
	for d := range descs {
		require.Contains(t, d.String(), "somas_plan_")
		names++
	}
	require.Equal(t, 10, names)

	metrics := make(chan prometheus.Metric, 32)
	collector.Collect(metrics)
	require.Empty(t, metrics, "nothing to collect before the first plan")

	_, err = p.Plan(context.Background())
	require.NoError(t, err)

	collector.Collect(metrics)
	close(metrics)
	require.Len(t, metrics, 10)

	err = prometheus.NewPedanticRegistry().Register(collector)
	require.NoError(t, err)
}
