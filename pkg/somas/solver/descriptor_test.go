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
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/devicemem/somas/pkg/somas/solver"
)

func TestRequestValidate(t *testing.T) {
	type testCase struct {
		name string
		req  *Request
		fail bool
	}

	for _, tc := range []*testCase{
		{
			name: "nil request",
			req:  nil,
			fail: true,
		},
		{
			name: "empty request",
			req:  &Request{},
		},
		{
			name: "valid request",
			req: &Request{
				Descs: []*Desc{
					{ID: 0, Size: 512},
					{ID: 1, Size: 1024, Constraints: 1},
					{ID: 3, Size: 512, Lifelong: true},
				},
				Conflicts: NewConflicts(4),
			},
		},
		{
			name: "nil descriptor",
			req: &Request{
				Descs:     []*Desc{nil},
				Conflicts: NewConflicts(1),
			},
			fail: true,
		},
		{
			name: "zero size",
			req: &Request{
				Descs:     []*Desc{{ID: 0, Size: 0}},
				Conflicts: NewConflicts(1),
			},
			fail: true,
		},
		{
			name: "negative size",
			req: &Request{
				Descs:     []*Desc{{ID: 0, Size: -1}},
				Conflicts: NewConflicts(1),
			},
			fail: true,
		},
		{
			name: "negative offset hint",
			req: &Request{
				Descs:     []*Desc{{ID: 0, Size: 512, Offset: -1}},
				Conflicts: NewConflicts(1),
			},
			fail: true,
		},
		{
			name: "negative constraint count",
			req: &Request{
				Descs:     []*Desc{{ID: 0, Size: 512, Constraints: -1}},
				Conflicts: NewConflicts(1),
			},
			fail: true,
		},
		{
			name: "duplicate id",
			req: &Request{
				Descs: []*Desc{
					{ID: 0, Size: 512},
					{ID: 0, Size: 512},
				},
				Conflicts: NewConflicts(1),
			},
			fail: true,
		},
		{
			name: "descending id order",
			req: &Request{
				Descs: []*Desc{
					{ID: 1, Size: 512},
					{ID: 0, Size: 512},
				},
				Conflicts: NewConflicts(2),
			},
			fail: true,
		},
		{
			name: "conflict matrix too small",
			req: &Request{
				Descs: []*Desc{
					{ID: 0, Size: 512},
					{ID: 5, Size: 512},
				},
				Conflicts: NewConflicts(4),
			},
			fail: true,
		},
		{
			name: "missing conflict matrix",
			req: &Request{
				Descs: []*Desc{{ID: 0, Size: 512}},
			},
			fail: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.fail {
				require.ErrorIs(t, err, ErrInvalidRequest)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConflicts(t *testing.T) {
	c := NewConflicts(8)
	require.Equal(t, 8, c.IDs())

	c.Add(0, 3)
	require.True(t, c.Has(0, 3), "recorded conflict")
	require.True(t, c.Has(3, 0), "recorded conflict, reversed")
	require.False(t, c.Has(0, 1), "unrelated pair")
	require.Equal(t, 1, c.Degree(0))
	require.Equal(t, 1, c.Degree(3))

	c.Add(0, 0)
	require.False(t, c.Has(0, 0), "no self-conflicts")
	c.Add(0, 8)
	require.Equal(t, 1, c.Degree(0), "out of range addition ignored")

	c.Add(0, 5)
	c.Add(3, 5)
	require.Equal(t, 2, c.Degree(0))
	require.Equal(t, 2, c.Degree(5))

	c.Delete(0, 3)
	require.False(t, c.Has(0, 3))
	require.False(t, c.Has(3, 0))
	require.Equal(t, 1, c.Degree(0))
	require.Equal(t, 1, c.Degree(3))
}

func TestConflictsMerge(t *testing.T) {
	c := NewConflicts(6)

	// fold 3 into 2, as sealing a group [2, 3] would
	c.Add(0, 2)
	c.Add(1, 3)
	c.Add(2, 3)
	c.Merge(2, 3)

	require.True(t, c.Has(2, 0), "kept own conflict")
	require.True(t, c.Has(2, 1), "inherited conflict")
	require.True(t, c.Has(1, 2), "inherited conflict, reversed")
	require.False(t, c.Has(2, 3), "folded pair dropped")
	require.False(t, c.Has(2, 2), "no self-conflicts")
	require.Equal(t, 2, c.Degree(2))
	require.True(t, c.Has(3, 1), "source row keeps external conflicts")
}

func TestNilConflicts(t *testing.T) {
	var c *Conflicts

	require.Equal(t, 0, c.IDs())
	require.False(t, c.Has(0, 1))
	require.Equal(t, 0, c.Degree(0))
	c.Add(0, 1)
	c.Delete(0, 1)
	c.Merge(0, 1)
}
