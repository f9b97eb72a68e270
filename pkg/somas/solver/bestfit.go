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
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
)

// Strategy is a candidate descriptor ordering for best-fit placement.
type Strategy int

const (
	// BySizeDesc orders by decreasing size, breaking ties by more
	// constraints, then by lower id.
	BySizeDesc Strategy = iota
	// ByConstraintsDesc orders by decreasing constraint count, breaking
	// ties by larger size, then by lower id.
	ByConstraintsDesc
	// ByIDAsc keeps the ascending id order of the request.
	ByIDAsc
)

// String returns the name of the strategy.
func (s Strategy) String() string {
	switch s {
	case BySizeDesc:
		return "size-descending"
	case ByConstraintsDesc:
		return "constraints-descending"
	case ByIDAsc:
		return "id-ascending"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// ParseStrategy parses the given string into a placement Strategy.
func ParseStrategy(str string) (Strategy, error) {
	switch str {
	case "size-descending":
		return BySizeDesc, nil
	case "constraints-descending":
		return ByConstraintsDesc, nil
	case "id-ascending":
		return ByIDAsc, nil
	}
	return BySizeDesc, fmt.Errorf("solver: unknown strategy %q", str)
}

// BestFit is the default offset solver. Every candidate ordering is
// placed with a lowest-viable-offset scan over the already placed,
// conflicting intervals; the orderings run concurrently and the one
// producing the smallest pool wins, ties going to the ordering listed
// first.
type BestFit struct {
	strategies []Strategy
}

var _ Solver = &BestFit{}

// BestFitOption is an opaque option for a BestFit solver.
type BestFitOption func(*BestFit)

// WithStrategies overrides the default set of candidate orderings.
func WithStrategies(strategies ...Strategy) BestFitOption {
	return func(b *BestFit) {
		b.strategies = slices.Clone(strategies)
	}
}

// NewBestFit creates a best-fit solver with the given options.
func NewBestFit(options ...BestFitOption) *BestFit {
	b := &BestFit{
		strategies: []Strategy{BySizeDesc, ByConstraintsDesc, ByIDAsc},
	}
	for _, o := range options {
		o(b)
	}
	return b
}

// Name returns the name of the solver.
func (b *BestFit) Name() string {
	return BestFitSolver
}

// Solve assigns offsets to the descriptors of the request.
func (b *BestFit) Solve(ctx context.Context, req *Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(b.strategies) == 0 {
		return nil, fmt.Errorf("solver: best-fit without any strategies")
	}
	if len(req.Descs) == 0 {
		return &Result{Offsets: map[ID]int64{}}, nil
	}

	type attempt struct {
		result *Result
		err    error
	}

	attempts := make([]attempt, len(b.strategies))
	wg := &sync.WaitGroup{}
	for i, strategy := range b.strategies {
		wg.Add(1)
		go func(i int, strategy Strategy) {
			defer wg.Done()
			result, err := place(ctx, req, strategy)
			attempts[i] = attempt{result: result, err: err}
		}(i, strategy)
	}
	wg.Wait()

	var best *Result
	for _, a := range attempts {
		if a.err != nil {
			return nil, a.err
		}
		if best == nil || a.result.PoolSize < best.PoolSize {
			best = a.result
		}
	}
	return best, nil
}

// interval is a placed descriptor in the pool.
type interval struct {
	id       ID
	offset   int64
	end      int64
	lifelong bool
}

// place runs a lowest-viable-offset placement in the given order.
func place(ctx context.Context, req *Request, strategy Strategy) (*Result, error) {
	order, err := sortedDescs(req.Descs, strategy)
	if err != nil {
		return nil, err
	}

	placed := make([]interval, 0, len(order))
	result := &Result{
		Offsets: make(map[ID]int64, len(order)),
	}

	for _, d := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		confl := make([]interval, 0, len(placed))
		for _, iv := range placed {
			if d.Lifelong || iv.lifelong || req.Conflicts.Has(d.ID, iv.id) {
				confl = append(confl, iv)
			}
		}
		slices.SortFunc(confl, func(a, b interval) int {
			if r := cmp.Compare(a.offset, b.offset); r != 0 {
				return r
			}
			return cmp.Compare(a.id, b.id)
		})

		offset := int64(0)
		for _, iv := range confl {
			if offset+d.Size <= iv.offset {
				break
			}
			if iv.end > offset {
				offset = iv.end
			}
		}

		placed = append(placed, interval{
			id:       d.ID,
			offset:   offset,
			end:      offset + d.Size,
			lifelong: d.Lifelong,
		})
		result.Offsets[d.ID] = offset
		if offset+d.Size > result.PoolSize {
			result.PoolSize = offset + d.Size
		}
	}

	return result, nil
}

// sortedDescs returns the descriptors in strategy order, whole-graph
// lifelong descriptors always first.
func sortedDescs(descs []*Desc, strategy Strategy) ([]*Desc, error) {
	order, err := compareFor(strategy)
	if err != nil {
		return nil, err
	}

	sorted := slices.Clone(descs)
	slices.SortStableFunc(sorted, func(a, b *Desc) int {
		if a.Lifelong != b.Lifelong {
			if a.Lifelong {
				return -1
			}
			return 1
		}
		return order(a, b)
	})
	return sorted, nil
}

func compareFor(strategy Strategy) (func(a, b *Desc) int, error) {
	switch strategy {
	case BySizeDesc:
		return func(a, b *Desc) int {
			if r := cmp.Compare(b.Size, a.Size); r != 0 {
				return r
			}
			if r := cmp.Compare(b.Constraints, a.Constraints); r != 0 {
				return r
			}
			return cmp.Compare(a.ID, b.ID)
		}, nil
	case ByConstraintsDesc:
		return func(a, b *Desc) int {
			if r := cmp.Compare(b.Constraints, a.Constraints); r != 0 {
				return r
			}
			if r := cmp.Compare(b.Size, a.Size); r != 0 {
				return r
			}
			return cmp.Compare(a.ID, b.ID)
		}, nil
	case ByIDAsc:
		return func(a, b *Desc) int {
			return cmp.Compare(a.ID, b.ID)
		}, nil
	}
	return nil, fmt.Errorf("solver: unknown strategy %v", strategy)
}
