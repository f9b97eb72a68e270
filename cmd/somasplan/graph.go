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

package main

import (
	"os"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/devicemem/somas/pkg/somas"
)

// graphFile is the on-disk description of a computation graph. Tensors
// are numbered densely in file order, first by node, then by output
// position within the node; inputs, outputs, groups and aliases refer
// to tensors by these ordinals.
type graphFile struct {
	Nodes   []*nodeSpec        `json:"nodes"`
	Outputs []somas.TensorID   `json:"outputs,omitempty"`
	Groups  [][]somas.TensorID `json:"groups,omitempty"`
	Aliases []*aliasSpec       `json:"aliases,omitempty"`
}

type nodeSpec struct {
	ID      somas.NodeID     `json:"id"`
	Stream  somas.StreamID   `json:"stream,omitempty"`
	Name    string           `json:"name,omitempty"`
	Outputs []*tensorSpec    `json:"outputs,omitempty"`
	Inputs  []somas.TensorID `json:"inputs,omitempty"`
}

type tensorSpec struct {
	Size     int64  `json:"size"`
	Name     string `json:"name,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Lifelong string `json:"lifelong,omitempty"`
}

type aliasSpec struct {
	Leader   somas.TensorID `json:"leader"`
	Follower somas.TensorID `json:"follower"`
}

// layoutFile is the on-disk form of a planned layout.
type layoutFile struct {
	PoolSize    int64              `json:"poolSize"`
	Assignments []somas.Assignment `json:"assignments"`
	Stats       somas.Stats        `json:"stats"`
}

func readGraphFile(path string) (*graphFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read graph file %q", path)
	}

	gf := &graphFile{}
	if err := yaml.UnmarshalStrict(data, gf); err != nil {
		return nil, errors.Wrapf(err, "failed to parse graph file %q", path)
	}
	if len(gf.Nodes) == 0 {
		return nil, errors.Errorf("graph file %q has no nodes", path)
	}

	return gf, nil
}

// build assembles the graph: all nodes and their produced tensors
// first, so tensor ordinals are assigned, then the consumer edges and
// the rest of the declarations.
func (gf *graphFile) build() (*somas.Graph, error) {
	g := somas.NewGraph()

	for _, ns := range gf.Nodes {
		nodeOpts := []somas.NodeOption{}
		if ns.Name != "" {
			nodeOpts = append(nodeOpts, somas.WithNodeName(ns.Name))
		}
		if _, err := g.AddNode(ns.ID, ns.Stream, nodeOpts...); err != nil {
			return nil, err
		}

		for _, ts := range ns.Outputs {
			opts := []somas.TensorOption{}
			if ts.Name != "" {
				opts = append(opts, somas.WithName(ts.Name))
			}
			if ts.Kind != "" {
				kind, err := somas.ParseKind(ts.Kind)
				if err != nil {
					return nil, err
				}
				opts = append(opts, somas.WithKind(kind))
			}
			if ts.Lifelong != "" {
				lifelong, err := somas.ParseLifeLong(ts.Lifelong)
				if err != nil {
					return nil, err
				}
				opts = append(opts, somas.WithLifeLong(lifelong))
			}
			if _, err := g.Produce(ns.ID, ts.Size, opts...); err != nil {
				return nil, err
			}
		}
	}

	for _, ns := range gf.Nodes {
		if len(ns.Inputs) == 0 {
			continue
		}
		if err := g.Consume(ns.ID, ns.Inputs...); err != nil {
			return nil, err
		}
	}

	if len(gf.Outputs) > 0 {
		if err := g.MarkOutput(gf.Outputs...); err != nil {
			return nil, err
		}
	}

	for _, as := range gf.Aliases {
		if err := g.MarkRefOverlap(as.Leader, as.Follower); err != nil {
			return nil, err
		}
	}

	return g, nil
}

func plannerOptions(configPath, solverOverride string) ([]somas.PlannerOption, error) {
	var options []somas.PlannerOption

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read configuration file %q", configPath)
		}
		cfg, err := somas.ParseConfig(data)
		if err != nil {
			return nil, err
		}
		options, err = cfg.PlannerOptions()
		if err != nil {
			return nil, err
		}
	}

	if solverOverride != "" {
		options = append(options, somas.WithSolverName(solverOverride))
	}

	return options, nil
}

func writeLayoutFile(path string, l *somas.Layout) error {
	data, err := yaml.Marshal(&layoutFile{
		PoolSize:    l.PoolSize(),
		Assignments: l.Assignments(),
		Stats:       l.Stats(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal layout")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write layout file %q", path)
	}
	return nil
}
