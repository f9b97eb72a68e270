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

package solver

import (
	"fmt"
	"math/bits"

	idset "github.com/intel/goresctrl/pkg/utils"
)

// ID is the type used to identify descriptors. Descriptor ids are the
// dense ordinals of the tensors they were projected from.
type ID = idset.ID

// Desc describes a single block of memory to solve an offset for: its
// identity, rounded-up size, an offset hint, whether the block stays
// live for the whole graph, and the number of disjointness constraints
// it participates in. The field set and its meaning are fixed; this is
// the wire contract between the planner and any Solver implementation.
type Desc struct {
	ID          ID    `json:"id"`
	Size        int64 `json:"alignedSize"`
	Offset      int64 `json:"offsetHint"`
	Lifelong    bool  `json:"lifelong"`
	Constraints int   `json:"constraints"`
}

// String returns a human-readable representation of the descriptor.
func (d *Desc) String() string {
	if d == nil {
		return "<nil descriptor>"
	}
	lifelong := ""
	if d.Lifelong {
		lifelong = ", lifelong"
	}
	return fmt.Sprintf("desc #%d (%d bytes, %d constraints%s)",
		d.ID, d.Size, d.Constraints, lifelong)
}

// Conflicts is a symmetric bit matrix recording which pairs of
// descriptors must not overlap in the pool. It is indexed by the dense
// descriptor id space.
type Conflicts struct {
	ids  int
	rows [][]uint64
}

const wordBits = 64

// NewConflicts creates a conflict matrix for the given id space.
func NewConflicts(ids int) *Conflicts {
	if ids < 0 {
		ids = 0
	}
	words := (ids + wordBits - 1) / wordBits
	rows := make([][]uint64, ids)
	for i := range rows {
		rows[i] = make([]uint64, words)
	}
	return &Conflicts{
		ids:  ids,
		rows: rows,
	}
}

// IDs returns the size of the id space covered by the matrix.
func (c *Conflicts) IDs() int {
	if c == nil {
		return 0
	}
	return c.ids
}

// Add records that the given pair of descriptors must not overlap.
func (c *Conflicts) Add(id1, id2 ID) {
	if c == nil || id1 == id2 || !c.contains(id1) || !c.contains(id2) {
		return
	}
	c.rows[id1][id2/wordBits] |= uint64(1) << (id2 % wordBits)
	c.rows[id2][id1/wordBits] |= uint64(1) << (id1 % wordBits)
}

// Delete removes the disjointness constraint between the given pair.
func (c *Conflicts) Delete(id1, id2 ID) {
	if c == nil || id1 == id2 || !c.contains(id1) || !c.contains(id2) {
		return
	}
	c.rows[id1][id2/wordBits] &^= uint64(1) << (id2 % wordBits)
	c.rows[id2][id1/wordBits] &^= uint64(1) << (id1 % wordBits)
}

// Has returns true if the given pair of descriptors must not overlap.
func (c *Conflicts) Has(id1, id2 ID) bool {
	if c == nil || !c.contains(id1) || !c.contains(id2) {
		return false
	}
	return c.rows[id1][id2/wordBits]&(uint64(1)<<(id2%wordBits)) != 0
}

// Degree returns the number of descriptors the given one conflicts with.
func (c *Conflicts) Degree(id ID) int {
	if c == nil || !c.contains(id) {
		return 0
	}
	cnt := 0
	for _, word := range c.rows[id] {
		cnt += bits.OnesCount64(word)
	}
	return cnt
}

// Merge adds all conflicts of src to dst, dropping the pair itself.
// It is used to fold group members into their aggregate descriptor.
func (c *Conflicts) Merge(dst, src ID) {
	if c == nil || dst == src || !c.contains(dst) || !c.contains(src) {
		return
	}
	for w, word := range c.rows[src] {
		c.rows[dst][w] |= word
	}
	// a descriptor never conflicts with itself
	c.rows[dst][dst/wordBits] &^= uint64(1) << (dst % wordBits)
	for id := 0; id < c.ids; id++ {
		if c.Has(dst, ID(id)) {
			c.rows[id][dst/wordBits] |= uint64(1) << (dst % wordBits)
		}
	}
	c.Delete(dst, src)
}

func (c *Conflicts) contains(id ID) bool {
	return 0 <= id && id < c.ids
}

// Request is a single solver invocation: descriptors in strictly
// ascending id order, plus the pairwise disjointness constraints
// among them.
type Request struct {
	Descs     []*Desc
	Conflicts *Conflicts
}

// Result carries the offsets assigned by a solver, keyed by descriptor
// id, and the resulting total pool size.
type Result struct {
	Offsets  map[ID]int64
	PoolSize int64
}

// Validate checks the request against the solver contract. Zero-sized
// or duplicate descriptors, descriptors out of ascending id order, and
// a conflict matrix not covering the id space are all caller bugs.
func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	prev := ID(-1)
	for _, d := range r.Descs {
		switch {
		case d == nil:
			return fmt.Errorf("%w: nil descriptor", ErrInvalidRequest)
		case d.Size <= 0:
			return fmt.Errorf("%w: %s: non-positive size", ErrInvalidRequest, d)
		case d.Offset < 0:
			return fmt.Errorf("%w: %s: negative offset hint", ErrInvalidRequest, d)
		case d.Constraints < 0:
			return fmt.Errorf("%w: %s: negative constraint count", ErrInvalidRequest, d)
		case d.ID <= prev:
			return fmt.Errorf("%w: %s: id out of ascending order", ErrInvalidRequest, d)
		}
		prev = d.ID
	}
	if len(r.Descs) > 0 && r.Conflicts.IDs() <= int(prev) {
		return fmt.Errorf("%w: conflict matrix covers %d ids, need %d",
			ErrInvalidRequest, r.Conflicts.IDs(), int(prev)+1)
	}
	return nil
}
