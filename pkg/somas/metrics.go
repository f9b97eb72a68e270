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
	"github.com/prometheus/client_golang/prometheus"
)

const (
	descTensors = iota
	descSolved
	descGroups
	descAliased
	descRequestedBytes
	descAlignedBytes
	descLifelongBytes
	descPoolBytes
	descReuseSavedBytes
	descSolveSeconds
)

var (
	descriptors = []*prometheus.Desc{
		descTensors: prometheus.NewDesc(
			"somas_plan_tensors",
			"Number of tensors in the planned graph.",
			[]string{
				"solver",
			},
			nil,
		),
		descSolved: prometheus.NewDesc(
			"somas_plan_solved_descriptors",
			"Number of descriptors handed to the offset solver.",
			[]string{
				"solver",
			},
			nil,
		),
		descGroups: prometheus.NewDesc(
			"somas_plan_contiguous_groups",
			"Number of contiguous allocation groups.",
			[]string{
				"solver",
			},
			nil,
		),
		descAliased: prometheus.NewDesc(
			"somas_plan_storage_aliases",
			"Number of deliberate storage aliases.",
			[]string{
				"solver",
			},
			nil,
		),
		descRequestedBytes: prometheus.NewDesc(
			"somas_plan_requested_bytes",
			"Total of the original tensor sizes.",
			[]string{
				"solver",
			},
			nil,
		),
		descAlignedBytes: prometheus.NewDesc(
			"somas_plan_aligned_bytes",
			"Total of the aligned tensor sizes backed by own pool bytes.",
			[]string{
				"solver",
			},
			nil,
		),
		descLifelongBytes: prometheus.NewDesc(
			"somas_plan_lifelong_bytes",
			"Aligned total pinned for the whole graph execution.",
			[]string{
				"solver",
			},
			nil,
		),
		descPoolBytes: prometheus.NewDesc(
			"somas_plan_pool_bytes",
			"Size of the planned memory pool.",
			[]string{
				"solver",
			},
			nil,
		),
		descReuseSavedBytes: prometheus.NewDesc(
			"somas_plan_reuse_saved_bytes",
			"Aligned bytes saved by reusing memory across disjoint lifetimes.",
			[]string{
				"solver",
			},
			nil,
		),
		descSolveSeconds: prometheus.NewDesc(
			"somas_plan_solve_seconds",
			"Time the offset solver took.",
			[]string{
				"solver",
			},
			nil,
		),
	}
)

// Collector exposes the statistics of a planner's most recent layout
// as prometheus metrics.
type Collector struct {
	planner *Planner
}

var _ prometheus.Collector = &Collector{}

// NewCollector creates a prometheus collector for the given planner.
func NewCollector(p *Planner) *Collector {
	return &Collector{
		planner: p,
	}
}

// Describe sends the metrics descriptors on the given channel.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range descriptors {
		ch <- d
	}
}

// Collect sends the metrics of the most recent layout on the given
// channel. A planner which has not planned anything yet produces no
// metrics.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	l := c.planner.Layout()
	if l == nil {
		return
	}

	var (
		st     = l.Stats()
		solver = c.planner.solver.Name()
	)

	ch <- prometheus.MustNewConstMetric(
		descriptors[descTensors],
		prometheus.GaugeValue,
		float64(st.Tensors),
		solver,
	)
	ch <- prometheus.MustNewConstMetric(
		descriptors[descSolved],
		prometheus.GaugeValue,
		float64(st.Solved),
		solver,
	)
	ch <- prometheus.MustNewConstMetric(
		descriptors[descGroups],
		prometheus.GaugeValue,
		float64(st.Groups),
		solver,
	)
	ch <- prometheus.MustNewConstMetric(
		descriptors[descAliased],
		prometheus.GaugeValue,
		float64(st.Aliased),
		solver,
	)
	ch <- prometheus.MustNewConstMetric(
		descriptors[descRequestedBytes],
		prometheus.GaugeValue,
		float64(st.RequestedBytes),
		solver,
	)
	ch <- prometheus.MustNewConstMetric(
		descriptors[descAlignedBytes],
		prometheus.GaugeValue,
		float64(st.AlignedBytes),
		solver,
	)
	ch <- prometheus.MustNewConstMetric(
		descriptors[descLifelongBytes],
		prometheus.GaugeValue,
		float64(st.LifelongBytes),
		solver,
	)
	ch <- prometheus.MustNewConstMetric(
		descriptors[descPoolBytes],
		prometheus.GaugeValue,
		float64(st.PoolBytes),
		solver,
	)
	ch <- prometheus.MustNewConstMetric(
		descriptors[descReuseSavedBytes],
		prometheus.GaugeValue,
		float64(st.ReuseSavings),
		solver,
	)
	ch <- prometheus.MustNewConstMetric(
		descriptors[descSolveSeconds],
		prometheus.GaugeValue,
		st.SolveDuration.Seconds(),
		solver,
	)

	log.Debug("collected layout metrics for %s solver", solver)
}
