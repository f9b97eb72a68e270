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

// LifelongPolicy decides the lifetime pinning class of a tensor during
// classification. The policy runs before lifetimes are computed and
// sees the tensor with its declared state.
type LifelongPolicy func(g *Graph, t *Tensor) LifeLong

// DefaultLifelongPolicy pins declared graph outputs and output-only
// tensors for the whole graph and keeps the declared class of all
// other tensors.
func DefaultLifelongPolicy(g *Graph, t *Tensor) LifeLong {
	if t.Kind() == KindOutputOnly || g.IsOutput(t.ID()) {
		return LifeLongGraphAll
	}
	return t.LifeLong()
}

// classifyLifetimes computes the live interval, cross-stream flag, and
// effective lifetime pinning of every tensor over the given execution
// order.
//
// A tensor is born at its producer's execution index and dies at its
// last consumer's. Tensors without consumers keep the degenerate
// interval of their producer. When a consumer runs on another stream
// than the producer, its execution index alone cannot bound the
// tensor's life: without explicit synchronization points the consumer
// may legally run any time before its stream drains, so the interval
// is extended to the last node of each such stream.
func classifyLifetimes(g *Graph, ordered []*Node, policy LifelongPolicy) {
	if len(ordered) == 0 {
		return
	}
	last := len(ordered) - 1

	streamEnd := make(map[StreamID]int)
	for _, n := range ordered {
		if end, ok := streamEnd[n.stream]; !ok || n.order > end {
			streamEnd[n.stream] = n.order
		}
	}

	consumers := make(map[TensorID][]*Node)
	for _, n := range ordered {
		for _, id := range n.inputs.SortedMembers() {
			consumers[id] = append(consumers[id], n)
		}
	}

	for _, t := range g.Tensors() {
		producer, ok := g.Node(t.node)
		if !ok {
			continue
		}

		begin := producer.order
		end := begin
		between := false
		for _, c := range consumers[t.id] {
			if c.order > end {
				end = c.order
			}
			if c.stream != t.stream {
				between = true
				if streamEnd[c.stream] > end {
					end = streamEnd[c.stream]
				}
			}
		}

		t.setLifeLong(policy(g, t))
		switch t.lifelong {
		case LifeLongGraphAll:
			begin, end = 0, last
		case LifeLongGraphStart:
			begin = 0
		case LifeLongGraphEnd:
			end = last
		}

		t.setBetweenStreams(between)
		t.setLifetime(Lifetime{Begin: begin, End: end})
	}
}
