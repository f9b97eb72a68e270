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
	"time"

	"github.com/devicemem/somas/pkg/somas/solver"
)

// Assignment is the placement of a single tensor in the shared pool.
type Assignment struct {
	ID     TensorID `json:"id"`
	Name   string   `json:"name"`
	Size   int64    `json:"size"`
	Offset int64    `json:"offset"`
}

// Stats summarizes a planning pass.
type Stats struct {
	// Tensors is the total number of tensors in the graph.
	Tensors int `json:"tensors"`
	// Solved is the number of descriptors handed to the solver.
	Solved int `json:"solved"`
	// Groups is the number of contiguous groups.
	Groups int `json:"groups"`
	// Aliased is the number of deliberate storage aliases.
	Aliased int `json:"aliased"`
	// RequestedBytes is the total of the original tensor sizes.
	RequestedBytes int64 `json:"requestedBytes"`
	// AlignedBytes is the total of the rounded-up sizes backed by pool
	// bytes of their own, so without alias followers.
	AlignedBytes int64 `json:"alignedBytes"`
	// LifelongBytes is the aligned total pinned for the whole graph.
	LifelongBytes int64 `json:"lifelongBytes"`
	// PoolBytes is the resulting pool size.
	PoolBytes int64 `json:"poolBytes"`
	// ReuseSavings is how many aligned bytes fit into the pool by
	// reusing memory across disjoint lifetimes.
	ReuseSavings int64 `json:"reuseSavings"`
	// SolveDuration is the time the solver took.
	SolveDuration time.Duration `json:"solveDuration"`
}

// Layout is the result of a successful planning pass: one pool offset
// assignment per tensor, in ascending tensor id order, together with
// the total pool size to back them all.
type Layout struct {
	assignments []Assignment
	offsets     map[TensorID]int64
	poolSize    int64
	stats       Stats
}

// Assignments returns the per-tensor placements in ascending tensor id
// order. Zero-size tensors sit at offset 0 and alias followers at
// their leader's offset.
func (l *Layout) Assignments() []Assignment {
	return slices.Clone(l.assignments)
}

// PoolSize returns the total pool size needed to back the layout.
func (l *Layout) PoolSize() int64 {
	return l.poolSize
}

// Stats returns the statistics of the planning pass.
func (l *Layout) Stats() Stats {
	return l.stats
}

// Offset returns the pool offset assigned to the given tensor.
func (l *Layout) Offset(id TensorID) (int64, bool) {
	offset, ok := l.offsets[id]
	return offset, ok
}

// buildLayout assembles the layout of a finished pass from the applied
// offsets.
func (p *Planner) buildLayout(result *solver.Result, descs []*solver.Desc, duration time.Duration) *Layout {
	l := &Layout{
		assignments: make([]Assignment, 0, len(p.graph.tensors)),
		offsets:     make(map[TensorID]int64, len(p.graph.tensors)),
		poolSize:    result.PoolSize,
	}

	st := &l.stats
	st.Solved = len(descs)
	st.Groups = len(p.groups)
	st.Aliased = len(p.graph.aliases)
	st.SolveDuration = duration

	for _, t := range p.graph.Tensors() {
		st.Tensors++
		st.RequestedBytes += t.size
		if _, follower := p.graph.IsAliasFollower(t.id); !follower {
			st.AlignedBytes += t.alignedSize
			if t.lifelong == LifeLongGraphAll {
				st.LifelongBytes += t.alignedSize
			}
		}

		l.assignments = append(l.assignments, Assignment{
			ID:     t.id,
			Name:   t.Name(),
			Size:   t.alignedSize,
			Offset: t.offset,
		})
		l.offsets[t.id] = t.offset
	}

	st.PoolBytes = l.poolSize
	st.ReuseSavings = st.AlignedBytes - l.poolSize

	return l
}

// verifyOffsets cross-checks the applied offsets against the conflict
// matrix, group adjacency, alias containment and the pool size. It
// catches solver and planner bugs before a broken layout reaches the
// caller.
func (p *Planner) verifyOffsets(result *solver.Result) error {
	tensors := p.graph.Tensors()

	for _, t := range tensors {
		if t.offset == UnknownOffset {
			return fmt.Errorf("%w: tensor #%d left without an offset",
				ErrInternalError, t.id)
		}
	}

	solvable := make([]*Tensor, 0, len(tensors))
	for _, t := range tensors {
		if t.alignedSize == 0 {
			continue
		}
		if _, ok := p.graph.IsAliasFollower(t.id); ok {
			continue
		}
		if t.offset+t.alignedSize > result.PoolSize {
			return fmt.Errorf("%w: tensor #%d at [%d-%d) outside the %d byte pool",
				ErrUnsafeLayout, t.id, t.offset, t.offset+t.alignedSize, result.PoolSize)
		}
		solvable = append(solvable, t)
	}

	for i, t := range solvable {
		for _, o := range solvable[i+1:] {
			if !p.conflicts.Has(t.id, o.id) {
				continue
			}
			if t.offset < o.offset+o.alignedSize && o.offset < t.offset+t.alignedSize {
				return fmt.Errorf("%w: tensors #%d and #%d overlap in the pool",
					ErrUnsafeLayout, t.id, o.id)
			}
		}
	}

	for _, grp := range p.groups {
		first, ok := p.graph.Tensor(grp.first)
		if !ok {
			return fmt.Errorf("%w: sealed group refers to unknown tensor #%d",
				ErrInternalError, grp.first)
		}
		next := first.offset
		for _, id := range grp.members {
			t, ok := p.graph.Tensor(id)
			if !ok {
				return fmt.Errorf("%w: sealed group refers to unknown tensor #%d",
					ErrInternalError, id)
			}
			if t.offset != next {
				return fmt.Errorf("%w: group member #%d at offset %d, expected %d",
					ErrUnsafeLayout, id, t.offset, next)
			}
			next += t.alignedSize
		}
	}

	for _, pair := range p.graph.aliases {
		lt, lok := p.graph.Tensor(pair.leader)
		ft, fok := p.graph.Tensor(pair.follower)
		if !lok || !fok {
			return fmt.Errorf("%w: alias pair #%d/#%d lost",
				ErrInternalError, pair.leader, pair.follower)
		}
		if ft.alignedSize == 0 {
			continue
		}
		if ft.offset != lt.offset {
			return fmt.Errorf("%w: follower #%d at offset %d, leader #%d at %d",
				ErrUnsafeLayout, pair.follower, ft.offset, pair.leader, lt.offset)
		}
		if ft.offset+ft.alignedSize > lt.offset+lt.alignedSize {
			return fmt.Errorf("%w: follower #%d extends past leader #%d",
				ErrUnsafeLayout, pair.follower, pair.leader)
		}
	}

	return nil
}
