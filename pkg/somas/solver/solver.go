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

// Package solver defines the offset solver contract of the somas
// planner, and provides the built-in solver implementations. A solver
// receives descriptors in ascending id order together with a pairwise
// disjointness matrix, and assigns every descriptor a non-negative pool
// offset such that no constrained pair overlaps.
package solver

import (
	"context"
	"fmt"
)

// Built-in solver names.
const (
	// BestFitSolver places descriptors with gap reuse, trying several
	// candidate orderings and keeping the smallest pool.
	BestFitSolver = "best-fit"
	// SequentialSolver places descriptors back to back without any
	// memory reuse. It is mostly useful as a baseline.
	SequentialSolver = "sequential"
)

// Solver assigns pool offsets to the descriptors of a request.
type Solver interface {
	// Name returns the name of the solver.
	Name() string
	// Solve assigns every descriptor of the request a non-negative
	// offset honoring the disjointness constraints.
	Solve(ctx context.Context, req *Request) (*Result, error)
}

// solver errors
var (
	// ErrInvalidRequest indicates a request violating the solver contract.
	ErrInvalidRequest = fmt.Errorf("solver: invalid request")
	// ErrUnknownSolver indicates a request for an unknown built-in solver.
	ErrUnknownSolver = fmt.Errorf("solver: unknown solver")
)

// ByName returns the built-in solver with the given name. An empty name
// picks the default best-fit solver.
func ByName(name string) (Solver, error) {
	switch name {
	case "", BestFitSolver:
		return NewBestFit(), nil
	case SequentialSolver:
		return &Sequential{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSolver, name)
}

// Sequential is a solver without memory reuse: descriptors are placed
// back to back in id order and the pool size is the total size of all
// descriptors. It trivially satisfies any conflict matrix.
type Sequential struct{}

var _ Solver = &Sequential{}

// Name returns the name of the solver.
func (s *Sequential) Name() string {
	return SequentialSolver
}

// Solve places the descriptors back to back in request order.
func (s *Sequential) Solve(ctx context.Context, req *Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		Offsets: make(map[ID]int64, len(req.Descs)),
	}
	offset := int64(0)
	for _, d := range req.Descs {
		result.Offsets[d.ID] = offset
		offset += d.Size
	}
	result.PoolSize = offset
	return result, nil
}
