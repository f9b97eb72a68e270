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

	idset "github.com/intel/goresctrl/pkg/utils"

	"github.com/devicemem/somas/pkg/somas/solver"
)

// group is a contiguous allocation group. Its members share one solver
// descriptor and get laid out back to back, in declaration order, from
// the offset the solver picks for that descriptor.
type group struct {
	members []TensorID
	first   TensorID
	size    int64
}

// AddContiguousGroup declares that the given tensors must be placed
// back to back, in the given order. Each tensor can belong to at most
// one group; claiming a tensor twice is a configuration error. Aliased
// and zero-size tensors cannot be members.
func (p *Planner) AddContiguousGroup(ids ...TensorID) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: group without members", ErrInvalidGroup)
	}

	seen := idset.NewIDSet()
	for _, id := range ids {
		t, ok := p.graph.Tensor(id)
		switch {
		case !ok:
			return fmt.Errorf("%w: group member #%d", ErrUnknownTensor, id)
		case seen.Has(id):
			return fmt.Errorf("%w: tensor #%d listed twice", ErrInvalidGroup, id)
		case t.Contiguous():
			return fmt.Errorf("%w: tensor #%d already claimed by another group",
				ErrInvalidGroup, id)
		case t.RefOverlap():
			return fmt.Errorf("%w: aliased tensor #%d cannot be a member",
				ErrInvalidGroup, id)
		case t.AlignedSize() == 0:
			return fmt.Errorf("%w: zero-size tensor #%d cannot be a member",
				ErrInvalidGroup, id)
		}
		seen.Add(id)
	}

	size := int64(0)
	for _, id := range ids {
		t, _ := p.graph.Tensor(id)
		t.markContiguous()
		size += t.AlignedSize()
	}

	idx := len(p.groups)
	grp := &group{members: slices.Clone(ids), first: ids[0], size: size}
	p.groups = append(p.groups, grp)
	for _, id := range ids {
		p.grouped[id] = idx
	}
	p.byFirst[grp.first] = idx

	return nil
}

// sealGroups folds every member's external conflicts into the group's
// aggregate descriptor id and overrides member constraint counts with
// the group-internal one. A member of a group of N tensors is tied to
// the other N-1 members no matter what the surrounding graph does.
func (p *Planner) sealGroups(c *solver.Conflicts) error {
	for _, grp := range p.groups {
		for _, id := range grp.members {
			t, ok := p.graph.Tensor(id)
			if !ok {
				return fmt.Errorf("%w: sealed group refers to unknown tensor #%d",
					ErrInternalError, id)
			}
			if t.RefOverlap() {
				return fmt.Errorf("%w: tensor #%d aliased after grouping",
					ErrInvalidGroup, id)
			}
			t.setConstraints(len(grp.members) - 1)
		}
		for _, id := range grp.members[1:] {
			c.Merge(grp.first, id)
		}
		for _, id := range grp.members[1:] {
			c.Delete(grp.first, id)
		}
	}

	return nil
}

// aggregateDesc builds the single solver descriptor standing in for
// the whole group: the first member's id, the summed size of all
// members, and the union of the members' external conflicts. The
// aggregate is never pinned for the whole graph.
func (grp *group) aggregateDesc(c *solver.Conflicts) *solver.Desc {
	return &solver.Desc{
		ID:          grp.first,
		Size:        grp.size,
		Offset:      0,
		Lifelong:    false,
		Constraints: c.Degree(grp.first),
	}
}

// distribute assigns member offsets back to back from the group's
// solved base offset.
func (grp *group) distribute(g *Graph, base int64) error {
	offset := base
	for _, id := range grp.members {
		t, ok := g.Tensor(id)
		if !ok {
			return fmt.Errorf("%w: sealed group refers to unknown tensor #%d",
				ErrInternalError, id)
		}
		t.setOffset(offset)
		offset += t.AlignedSize()
	}
	return nil
}
