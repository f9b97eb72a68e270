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

	logger "github.com/devicemem/somas/pkg/log"
	"github.com/devicemem/somas/pkg/somas/solver"
)

var (
	log     = logger.Get("somas")
	details = logger.Get("somas-details")
)

// DumpGraph dumps the nodes and tensors of the graph being planned.
func (p *Planner) DumpGraph(context ...interface{}) {
	prefix := formatPrefix(context...)
	g := p.graph

	log.Info("%scomputation graph: %d nodes, %d tensors, %d streams", prefix,
		len(g.nodes), len(g.tensors), len(g.Streams()))
	for _, n := range g.Nodes() {
		log.Info("%s  %s", prefix, n)
		for _, id := range n.outputs {
			if t, ok := g.Tensor(id); ok {
				log.Info("%s    produces %s", prefix, t)
			}
		}
		if inputs := n.inputs.SortedMembers(); len(inputs) > 0 {
			log.Info("%s    consumes %v", prefix, inputs)
		}
	}
	if outputs := g.Outputs(); len(outputs) > 0 {
		log.Info("%s  graph outputs: %v", prefix, outputs)
	}
	for _, pair := range g.aliases {
		log.Info("%s  alias: #%d follows #%d", prefix, pair.follower, pair.leader)
	}
}

// DumpLifetimes dumps the classified tensor lifetimes.
func (p *Planner) DumpLifetimes(context ...interface{}) {
	if !details.DebugEnabled() {
		return
	}

	prefix := formatPrefix(context...)

	details.Debug("%s  lifetimes:", prefix)
	for _, t := range p.graph.Tensors() {
		notes := ""
		if t.lifelong != LifeLongNone {
			notes += ", " + t.lifelong.String()
		}
		if t.betweenStreams {
			notes += ", between streams"
		}
		details.Debug("%s    - %s: %s%s", prefix, t, t.lifetime, notes)
	}
}

// DumpConflicts dumps the pairwise disjointness constraints.
func (p *Planner) DumpConflicts(context ...interface{}) {
	if !details.DebugEnabled() || p.conflicts == nil {
		return
	}

	prefix := formatPrefix(context...)
	tensors := p.graph.Tensors()

	details.Debug("%s  conflicts:", prefix)
	for _, t := range tensors {
		ids := make([]TensorID, 0, len(tensors))
		for _, o := range tensors {
			if p.conflicts.Has(t.id, o.id) {
				ids = append(ids, o.id)
			}
		}
		if len(ids) == 0 {
			continue
		}
		details.Debug("%s    - #%d with %v", prefix, t.id, ids)
	}
}

// DumpLayout dumps the layout of the most recent successful Plan.
func (p *Planner) DumpLayout(context ...interface{}) {
	prefix := formatPrefix(context...)
	l := p.layout
	if l == nil {
		log.Info("%sno layout planned", prefix)
		return
	}

	st := l.Stats()
	log.Info("%splanned pool layout: %d tensors in %s pool", prefix,
		st.Tensors, prettySize(l.PoolSize()))
	for _, a := range l.assignments {
		log.Info("%s  #%d %q at offset %d (%s)", prefix,
			a.ID, a.Name, a.Offset, prettySize(a.Size))
	}
	log.Info("%s  aligned total %s, reuse savings %s, %d descriptors solved in %s", prefix,
		prettySize(st.AlignedBytes), prettySize(st.ReuseSavings), st.Solved, st.SolveDuration)
}

func (p *Planner) dumpLifetimes(ordered []*Node) {
	if !details.DebugEnabled() {
		return
	}

	details.Debug("execution order:")
	for _, n := range ordered {
		details.Debug("  %d: %s", n.order, n)
	}
	p.DumpLifetimes()
}

func (p *Planner) dumpConflicts() {
	p.DumpConflicts()
}

func (p *Planner) dumpDescriptors(descs []*solver.Desc) {
	if !details.DebugEnabled() {
		return
	}

	details.Debug("  solver request:")
	for _, d := range descs {
		details.Debug("    - %s", d)
	}
}

func (p *Planner) dumpLayout() {
	if !log.DebugEnabled() {
		return
	}
	p.DumpLayout()
}

func formatPrefix(args ...interface{}) string {
	narg := len(args)
	if narg == 0 {
		return ""
	}

	format, ok := args[0].(string)
	if !ok {
		return "%%(!somas:Bad-Prefix)"
	}

	if len(args) == 1 {
		return format
	}

	return fmt.Sprintf(format, args[1:]...)
}
