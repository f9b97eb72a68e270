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
	"github.com/devicemem/somas/pkg/somas/solver"
)

// buildConflicts materializes the pairwise disjointness relation of the
// graph and records every tensor's constraint count. Two tensors must
// be kept apart in the pool when both take up pool bytes and their
// lifetimes intersect.
//
// Aliased followers take up no bytes of their own; they live inside
// their leader. They are left out of the relation and instead fold
// their lifetime into the leader's, so anything live while a follower
// is stays clear of the leader's bytes.
func buildConflicts(g *Graph) *solver.Conflicts {
	tensors := g.Tensors()
	c := solver.NewConflicts(len(tensors))

	effective := make(map[TensorID]Lifetime, len(tensors))
	for _, t := range tensors {
		effective[t.id] = t.lifetime
	}
	for _, pair := range g.aliases {
		lt := effective[pair.leader]
		ft := effective[pair.follower]
		if ft.Begin < lt.Begin {
			lt.Begin = ft.Begin
		}
		if ft.End > lt.End {
			lt.End = ft.End
		}
		effective[pair.leader] = lt
	}

	solvable := make([]*Tensor, 0, len(tensors))
	for _, t := range tensors {
		if t.alignedSize == 0 {
			continue
		}
		if _, follower := g.IsAliasFollower(t.id); follower {
			continue
		}
		solvable = append(solvable, t)
	}

	for i, t := range solvable {
		lt := effective[t.id]
		for _, o := range solvable[i+1:] {
			if lt.Overlaps(effective[o.id]) {
				c.Add(t.id, o.id)
			}
		}
	}

	for _, t := range tensors {
		t.setConstraints(c.Degree(t.id))
	}

	return c
}
