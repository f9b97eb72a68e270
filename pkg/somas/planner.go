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
	"context"
	"fmt"
	"time"

	idset "github.com/intel/goresctrl/pkg/utils"

	"github.com/devicemem/somas/pkg/instrumentation/tracing"
	"github.com/devicemem/somas/pkg/somas/solver"
)

// Planner runs the static offset planning pass over a computation
// graph. It classifies tensor lifetimes from the execution order,
// derives the pairwise disjointness constraints, projects tensors into
// solver descriptors, and writes the solved offsets back into a
// Layout. A Planner runs a single synchronous pass at a time; it keeps
// all of its state in itself and in the graph it was created for.
type Planner struct {
	graph     *Graph
	solver    solver.Solver
	policy    LifelongPolicy
	verify    bool
	groups    []*group
	grouped   map[TensorID]int
	byFirst   map[TensorID]int
	conflicts *solver.Conflicts
	layout    *Layout
}

// PlannerOption is an opaque option which can be applied to a Planner.
type PlannerOption func(*Planner) error

// WithSolver returns an option to override the default best-fit offset
// solver with the given implementation.
func WithSolver(s solver.Solver) PlannerOption {
	return func(p *Planner) error {
		if s == nil {
			return fmt.Errorf("nil solver")
		}
		p.solver = s
		return nil
	}
}

// WithSolverName returns an option to pick a built-in solver by name.
func WithSolverName(name string) PlannerOption {
	return func(p *Planner) error {
		s, err := solver.ByName(name)
		if err != nil {
			return err
		}
		p.solver = s
		return nil
	}
}

// WithLifelongPolicy returns an option to override the policy deciding
// which tensors stay pinned for the whole graph.
func WithLifelongPolicy(policy LifelongPolicy) PlannerOption {
	return func(p *Planner) error {
		if policy == nil {
			return fmt.Errorf("nil lifelong policy")
		}
		p.policy = policy
		return nil
	}
}

// WithVerify returns an option to control post-solve verification of
// the layout. Verification is on by default.
func WithVerify(verify bool) PlannerOption {
	return func(p *Planner) error {
		p.verify = verify
		return nil
	}
}

// NewPlanner creates a planner for the given graph with the given
// options.
func NewPlanner(g *Graph, options ...PlannerOption) (*Planner, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: planner without a graph", ErrInvalidGraph)
	}

	p := &Planner{
		graph:   g,
		solver:  solver.NewBestFit(),
		policy:  DefaultLifelongPolicy,
		verify:  true,
		grouped: make(map[TensorID]int),
		byFirst: make(map[TensorID]int),
	}
	for _, o := range options {
		if err := o(p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedOption, err)
		}
	}

	return p, nil
}

// Graph returns the graph this planner plans for.
func (p *Planner) Graph() *Graph {
	return p.graph
}

// Layout returns the layout of the most recent successful Plan, or nil
// if there is none.
func (p *Planner) Layout() *Layout {
	return p.layout
}

// Plan runs the planning pass: validate the graph, order it for
// execution, classify tensor lifetimes, derive disjointness
// constraints, seal contiguous groups, solve offsets, and assemble the
// resulting layout. Plan can be called again, for instance after
// declaring more contiguous groups; every pass recomputes its state
// from scratch.
func (p *Planner) Plan(ctx context.Context) (*Layout, error) {
	ctx, span := tracing.StartSpan(ctx, "somas.Plan")
	defer span.End()

	if err := p.graph.validate(); err != nil {
		span.SetStatus(err)
		return nil, err
	}

	ordered, err := p.graph.order()
	if err != nil {
		span.SetStatus(err)
		return nil, err
	}

	classifyLifetimes(p.graph, ordered, p.policy)
	p.dumpLifetimes(ordered)

	p.conflicts = buildConflicts(p.graph)
	if err := p.sealGroups(p.conflicts); err != nil {
		span.SetStatus(err)
		return nil, err
	}
	p.dumpConflicts()

	descs := p.buildDescriptors()
	p.dumpDescriptors(descs)

	started := time.Now()
	result, err := p.solve(ctx, descs)
	if err != nil {
		span.SetStatus(err)
		return nil, err
	}
	duration := time.Since(started)

	if err := p.applyResult(result, descs); err != nil {
		span.SetStatus(err)
		return nil, err
	}

	if p.verify {
		if err := p.verifyOffsets(result); err != nil {
			span.SetStatus(err)
			return nil, err
		}
	}

	p.layout = p.buildLayout(result, descs, duration)
	p.dumpLayout()

	return p.layout, nil
}

// solve runs the offset solver on the given descriptors.
func (p *Planner) solve(ctx context.Context, descs []*solver.Desc) (*solver.Result, error) {
	ctx, span := tracing.StartSpan(ctx, "somas.Solve",
		tracing.WithAttributes(
			tracing.Attribute("solver", p.solver.Name()),
			tracing.Attribute("descriptors", len(descs)),
		),
	)
	defer span.End()

	result, err := p.solver.Solve(ctx, &solver.Request{
		Descs:     descs,
		Conflicts: p.conflicts,
	})
	if err != nil {
		err = fmt.Errorf("%w: %s: %v", ErrSolverFailed, p.solver.Name(), err)
		span.SetStatus(err)
		return nil, err
	}
	if result == nil {
		err = fmt.Errorf("%w: %s returned no result", ErrSolverFailed, p.solver.Name())
		span.SetStatus(err)
		return nil, err
	}

	return result, nil
}

// buildDescriptors projects the graph into solver descriptors in
// ascending tensor id order. Zero-size tensors and alias followers
// have nothing to solve. The members of a contiguous group fold into
// one aggregate descriptor taking the place of the first member.
func (p *Planner) buildDescriptors() []*solver.Desc {
	descs := make([]*solver.Desc, 0, len(p.graph.tensors))
	for _, t := range p.graph.Tensors() {
		if _, ok := p.graph.IsAliasFollower(t.id); ok {
			continue
		}
		if idx, ok := p.grouped[t.id]; ok {
			grp := p.groups[idx]
			if grp.first != t.id {
				continue
			}
			descs = append(descs, grp.aggregateDesc(p.conflicts))
			continue
		}
		if d := t.SolverDesc(); d != nil {
			descs = append(descs, d)
		}
	}
	return descs
}

// applyResult writes the solved offsets back to the tensors. The
// response must cover exactly the requested descriptors; anything else
// means the planner and the solver disagree about the request and no
// offset can be trusted.
func (p *Planner) applyResult(result *solver.Result, descs []*solver.Desc) error {
	requested := idset.NewIDSet()
	for _, d := range descs {
		requested.Add(d.ID)
	}

	unknown := idset.NewIDSet()
	for id := range result.Offsets {
		if !requested.Has(id) {
			unknown.Add(id)
		}
	}
	if unknown.Size() > 0 {
		return fmt.Errorf("%w: %s responded for unrequested descriptors %v",
			ErrSolverDesync, p.solver.Name(), unknown.SortedMembers())
	}

	for _, d := range descs {
		offset, ok := result.Offsets[d.ID]
		if !ok {
			return fmt.Errorf("%w: %s left descriptor #%d without an offset",
				ErrSolverDesync, p.solver.Name(), d.ID)
		}
		if offset < 0 {
			return fmt.Errorf("%w: %s assigned descriptor #%d negative offset %d",
				ErrSolverDesync, p.solver.Name(), d.ID, offset)
		}

		if idx, ok := p.byFirst[d.ID]; ok {
			if err := p.groups[idx].distribute(p.graph, offset); err != nil {
				return err
			}
			continue
		}

		t, ok := p.graph.Tensor(d.ID)
		if !ok {
			return fmt.Errorf("%w: solved offset for unknown tensor #%d",
				ErrInternalError, d.ID)
		}
		t.setOffset(offset)
	}

	// Tensors with nothing to solve still get deterministic offsets:
	// zero-size tensors sit at offset 0, alias followers copy their
	// leader.
	for _, t := range p.graph.Tensors() {
		if t.alignedSize == 0 {
			t.setOffset(0)
			continue
		}
		if leader, ok := p.graph.IsAliasFollower(t.id); ok {
			lt, ok := p.graph.Tensor(leader)
			if !ok {
				return fmt.Errorf("%w: alias leader #%d missing", ErrInternalError, leader)
			}
			t.setOffset(lt.offset)
		}
	}

	return nil
}
