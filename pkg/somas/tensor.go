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

	"github.com/devicemem/somas/pkg/somas/solver"
)

// Tensor is the planning record of a single tensor of the computation
// graph. It tracks where the tensor comes from, how much pool memory it
// needs, how long it stays alive, and where the solver placed it.
type Tensor struct {
	id             TensorID
	name           string
	node           NodeID
	stream         StreamID
	size           int64
	alignedSize    int64
	kind           Kind
	lifelong       LifeLong
	lifetime       Lifetime
	betweenStreams bool
	contiguous     bool
	refOverlap     bool
	constraints    int
	offset         int64
}

// TensorOption is an opaque option which can be applied to a Tensor.
type TensorOption func(*Tensor) error

// WithName returns an option to name a tensor for diagnostic output.
func WithName(name string) TensorOption {
	return func(t *Tensor) error {
		t.name = name
		return nil
	}
}

// WithKind returns an option to set the role of a tensor.
func WithKind(kind Kind) TensorOption {
	return func(t *Tensor) error {
		if kind < KindCommon || kind > KindUnknown {
			return fmt.Errorf("%w: invalid kind %d", ErrInvalidTensor, int(kind))
		}
		t.kind = kind
		return nil
	}
}

// WithLifeLong returns an option to preset the lifetime pinning class
// of a tensor. The classification pass may still override it through
// the lifelong policy.
func WithLifeLong(lifelong LifeLong) TensorOption {
	return func(t *Tensor) error {
		if lifelong < LifeLongNone || lifelong > LifeLongGraphEnd {
			return fmt.Errorf("%w: invalid lifelong class %d", ErrInvalidTensor, int(lifelong))
		}
		t.lifelong = lifelong
		return nil
	}
}

// newTensor creates a tensor record with the given id and provenance.
func newTensor(id TensorID, node NodeID, stream StreamID, size int64, options ...TensorOption) (*Tensor, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: #%d: negative size %d", ErrInvalidTensor, id, size)
	}

	t := &Tensor{
		id:          id,
		node:        node,
		stream:      stream,
		size:        size,
		alignedSize: AlignedSize(size),
		kind:        KindCommon,
		lifelong:    LifeLongNone,
		offset:      UnknownOffset,
	}

	for _, o := range options {
		if err := o(t); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedOption, err)
		}
	}

	return t, nil
}

// ID returns the id of this tensor.
func (t *Tensor) ID() TensorID {
	return t.id
}

// Name returns the diagnostic name of this tensor.
func (t *Tensor) Name() string {
	if t.name == "" {
		return fmt.Sprintf("tensor-%d", t.id)
	}
	return t.name
}

// SourceNode returns the id of the node producing this tensor.
func (t *Tensor) SourceNode() NodeID {
	return t.node
}

// SourceStream returns the id of the stream producing this tensor.
func (t *Tensor) SourceStream() StreamID {
	return t.stream
}

// Size returns the original byte size of this tensor.
func (t *Tensor) Size() int64 {
	return t.size
}

// AlignedSize returns the rounded-up pool size of this tensor.
func (t *Tensor) AlignedSize() int64 {
	return t.alignedSize
}

// Kind returns the role of this tensor.
func (t *Tensor) Kind() Kind {
	return t.kind
}

// LifeLong returns the lifetime pinning class of this tensor.
func (t *Tensor) LifeLong() LifeLong {
	return t.lifelong
}

// Lifetime returns the live interval of this tensor. It is valid once
// lifetimes have been classified.
func (t *Tensor) Lifetime() Lifetime {
	return t.lifetime
}

// BetweenStreams returns true if this tensor is consumed on a stream
// other than the one producing it.
func (t *Tensor) BetweenStreams() bool {
	return t.betweenStreams
}

// Contiguous returns true if this tensor is a contiguous group member.
func (t *Tensor) Contiguous() bool {
	return t.contiguous
}

// RefOverlap returns true if this tensor deliberately shares storage
// with another tensor.
func (t *Tensor) RefOverlap() bool {
	return t.refOverlap
}

// Constraints returns the number of disjointness constraints of this
// tensor: group members count the other members of their group, other
// tensors count the tensors they conflict with.
func (t *Tensor) Constraints() int {
	return t.constraints
}

// Offset returns the pool offset assigned to this tensor, or
// UnknownOffset if none has been assigned.
func (t *Tensor) Offset() int64 {
	return t.offset
}

// String returns a string representation of this tensor.
func (t *Tensor) String() string {
	return fmt.Sprintf("<tensor #%d %q: %d/%d bytes, node #%d, stream #%d>",
		t.id, t.Name(), t.size, t.alignedSize, t.node, t.stream)
}

// SolverDesc projects this tensor into its solver descriptor. The
// descriptor is built fresh from the current record state on every
// call. Zero-size tensors have nothing to place and project nil.
// Contiguous group members never project whole-graph pinning; their
// group's aggregate block is placed as one unit instead.
func (t *Tensor) SolverDesc() *solver.Desc {
	if t.alignedSize == 0 {
		return nil
	}

	lifelong := t.lifelong == LifeLongGraphAll
	if t.contiguous {
		lifelong = false
	}

	return &solver.Desc{
		ID:          t.id,
		Size:        t.alignedSize,
		Offset:      0,
		Lifelong:    lifelong,
		Constraints: t.constraints,
	}
}

func (t *Tensor) setLifeLong(lifelong LifeLong) {
	t.lifelong = lifelong
}

func (t *Tensor) setLifetime(lt Lifetime) {
	t.lifetime = lt
}

func (t *Tensor) setBetweenStreams(between bool) {
	t.betweenStreams = between
}

func (t *Tensor) markContiguous() {
	t.contiguous = true
}

func (t *Tensor) markRefOverlap() {
	t.refOverlap = true
}

func (t *Tensor) setConstraints(constraints int) {
	t.constraints = constraints
}

func (t *Tensor) setOffset(offset int64) {
	t.offset = offset
}

// TensorFilter is a function to filter tensors.
type TensorFilter func(*Tensor) bool

// TensorSorter is a function to compare tensors for sorting.
type TensorSorter func(a, b *Tensor) int

// SortTensors filters tensors into a slice and sorts the slice using
// the given sorters.
func SortTensors(tensors map[TensorID]*Tensor, f TensorFilter, sorters ...TensorSorter) []*Tensor {
	slice := make([]*Tensor, 0, len(tensors))
	for _, t := range tensors {
		if f == nil || f(t) {
			slice = append(slice, t)
		}
	}
	slices.SortFunc(slice, func(a, b *Tensor) int {
		for _, s := range sorters {
			if diff := s(a, b); diff != 0 {
				return diff
			}
		}
		return 0
	})
	return slice
}

// TensorsByID sorts tensors in ascending id order.
func TensorsByID(a, b *Tensor) int {
	return int(a.id - b.id)
}

// TensorsBySize sorts tensors in decreasing aligned size order.
func TensorsBySize(a, b *Tensor) int {
	switch {
	case a.alignedSize > b.alignedSize:
		return -1
	case a.alignedSize < b.alignedSize:
		return 1
	}
	return 0
}

// SolvableTensors filters tensors which produce solver descriptors.
func SolvableTensors(t *Tensor) bool {
	return t.alignedSize > 0
}

// prettySize returns the given size in human-readable form.
func prettySize(size int64) string {
	const (
		kb = int64(1024)
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case size >= gb:
		return fmt.Sprintf("%.2fG", float64(size)/float64(gb))
	case size >= mb:
		return fmt.Sprintf("%.2fM", float64(size)/float64(mb))
	case size >= kb:
		return fmt.Sprintf("%.2fk", float64(size)/float64(kb))
	}
	return fmt.Sprintf("%d", size)
}
