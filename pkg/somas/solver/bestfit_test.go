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

package solver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/devicemem/somas/pkg/somas/solver"
)

// requireSolved checks the solver contract on a result: every
// descriptor placed at a non-negative offset within the pool, and
// every constrained or lifelong pair disjoint.
func requireSolved(t *testing.T, req *Request, result *Result) {
	t.Helper()

	require.NotNil(t, result)
	require.Equal(t, len(req.Descs), len(result.Offsets))

	for _, d := range req.Descs {
		offset, ok := result.Offsets[d.ID]
		require.True(t, ok, "descriptor #%d has an offset", d.ID)
		require.GreaterOrEqual(t, offset, int64(0))
		require.LessOrEqual(t, offset+d.Size, result.PoolSize)
	}

	for i, d1 := range req.Descs {
		for _, d2 := range req.Descs[i+1:] {
			if !d1.Lifelong && !d2.Lifelong && !req.Conflicts.Has(d1.ID, d2.ID) {
				continue
			}
			var (
				o1 = result.Offsets[d1.ID]
				o2 = result.Offsets[d2.ID]
			)
			require.True(t, o1+d1.Size <= o2 || o2+d2.Size <= o1,
				"descriptors #%d and #%d disjoint", d1.ID, d2.ID)
		}
	}
}

func TestBestFitReuse(t *testing.T) {
	var (
		b   = NewBestFit()
		req = &Request{
			Descs: []*Desc{
				{ID: 0, Size: 1024},
				{ID: 1, Size: 512},
			},
			Conflicts: NewConflicts(2),
		}
	)

	result, err := b.Solve(context.Background(), req)
	require.NoError(t, err)
	requireSolved(t, req, result)

	// nothing conflicts, everything overlays at offset 0
	require.Equal(t, int64(0), result.Offsets[0])
	require.Equal(t, int64(0), result.Offsets[1])
	require.Equal(t, int64(1024), result.PoolSize)
}

func TestBestFitConflicts(t *testing.T) {
	var (
		b = NewBestFit()
		c = NewConflicts(3)
	)

	c.Add(0, 1)
	c.Add(1, 2)

	req := &Request{
		Descs: []*Desc{
			{ID: 0, Size: 512, Constraints: 1},
			{ID: 1, Size: 1024, Constraints: 2},
			{ID: 2, Size: 512, Constraints: 1},
		},
		Conflicts: c,
	}

	result, err := b.Solve(context.Background(), req)
	require.NoError(t, err)
	requireSolved(t, req, result)

	// 0 and 2 never conflict and can share bytes
	require.Equal(t, int64(1536), result.PoolSize)
}

func TestBestFitGapReuse(t *testing.T) {
	var (
		b = NewBestFit(WithStrategies(ByIDAsc))
		c = NewConflicts(3)
	)

	// all pairs conflict: 1024+512 leaves a gap no descriptor fits in
	c.Add(0, 1)
	c.Add(0, 2)
	c.Add(1, 2)

	req := &Request{
		Descs: []*Desc{
			{ID: 0, Size: 1024, Constraints: 2},
			{ID: 1, Size: 512, Constraints: 2},
			{ID: 2, Size: 1024, Constraints: 2},
		},
		Conflicts: c,
	}

	result, err := b.Solve(context.Background(), req)
	require.NoError(t, err)
	requireSolved(t, req, result)
	require.Equal(t, int64(2560), result.PoolSize)
}

func TestBestFitLifelong(t *testing.T) {
	var (
		b   = NewBestFit()
		req = &Request{
			Descs: []*Desc{
				{ID: 0, Size: 512, Lifelong: true},
				{ID: 1, Size: 512},
				{ID: 2, Size: 512},
			},
			Conflicts: NewConflicts(3),
		}
	)

	result, err := b.Solve(context.Background(), req)
	require.NoError(t, err)
	requireSolved(t, req, result)

	// lifelong bytes are never shared, the rest overlays freely
	require.Equal(t, int64(1024), result.PoolSize)
	require.Equal(t, result.Offsets[1], result.Offsets[2])
	require.NotEqual(t, result.Offsets[0], result.Offsets[1])
}

func TestBestFitDeterminism(t *testing.T) {
	var (
		b = NewBestFit()
		c = NewConflicts(5)
	)

	c.Add(0, 1)
	c.Add(1, 2)
	c.Add(2, 3)
	c.Add(3, 4)
	c.Add(1, 3)

	req := &Request{
		Descs: []*Desc{
			{ID: 0, Size: 512, Constraints: 1},
			{ID: 1, Size: 1536, Constraints: 3},
			{ID: 2, Size: 1024, Constraints: 2},
			{ID: 3, Size: 1536, Constraints: 3},
			{ID: 4, Size: 512, Constraints: 1},
		},
		Conflicts: c,
	}

	first, err := b.Solve(context.Background(), req)
	require.NoError(t, err)
	requireSolved(t, req, first)

	for i := 0; i < 10; i++ {
		next, err := b.Solve(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, first.PoolSize, next.PoolSize)
		require.Equal(t, first.Offsets, next.Offsets)
	}
}

func TestBestFitEmptyRequest(t *testing.T) {
	b := NewBestFit()

	result, err := b.Solve(context.Background(), &Request{})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Empty(t, result.Offsets)
	require.Equal(t, int64(0), result.PoolSize)
}

func TestBestFitWithoutStrategies(t *testing.T) {
	b := NewBestFit(WithStrategies())

	_, err := b.Solve(context.Background(), &Request{
		Descs:     []*Desc{{ID: 0, Size: 512}},
		Conflicts: NewConflicts(1),
	})
	require.Error(t, err)
}

func TestBestFitCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBestFit()
	_, err := b.Solve(ctx, &Request{
		Descs:     []*Desc{{ID: 0, Size: 512}},
		Conflicts: NewConflicts(1),
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseStrategy(t *testing.T) {
	for _, strategy := range []Strategy{BySizeDesc, ByConstraintsDesc, ByIDAsc} {
		parsed, err := ParseStrategy(strategy.String())
		require.NoError(t, err)
		require.Equal(t, strategy, parsed)
	}

	_, err := ParseStrategy("random")
	require.Error(t, err)
}
