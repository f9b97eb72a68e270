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

	"sigs.k8s.io/yaml"

	"github.com/devicemem/somas/pkg/somas/solver"
)

// Config holds the externally configurable planner knobs.
type Config struct {
	// Solver picks the offset solver by name. An empty name picks the
	// default best-fit solver.
	Solver string `json:"solver,omitempty"`
	// Strategies overrides the candidate orderings of the best-fit
	// solver. It cannot be combined with any other solver.
	Strategies []string `json:"strategies,omitempty"`
	// Verify controls post-solve layout verification. It is on unless
	// turned off here.
	Verify *bool `json:"verify,omitempty"`
}

// ParseConfig parses a YAML or JSON planner configuration.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("somas: failed to parse configuration: %w", err)
	}
	return cfg, nil
}

// PlannerOptions turns the configuration into planner options.
func (c *Config) PlannerOptions() ([]PlannerOption, error) {
	if c == nil {
		return nil, nil
	}

	var options []PlannerOption

	switch {
	case len(c.Strategies) > 0:
		if c.Solver != "" && c.Solver != solver.BestFitSolver {
			return nil, fmt.Errorf("%w: strategies configured for %q solver",
				ErrFailedOption, c.Solver)
		}
		strategies := make([]solver.Strategy, 0, len(c.Strategies))
		for _, name := range c.Strategies {
			s, err := solver.ParseStrategy(name)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrFailedOption, err)
			}
			strategies = append(strategies, s)
		}
		options = append(options,
			WithSolver(solver.NewBestFit(solver.WithStrategies(strategies...))))
	case c.Solver != "":
		options = append(options, WithSolverName(c.Solver))
	}

	if c.Verify != nil {
		options = append(options, WithVerify(*c.Verify))
	}

	return options, nil
}
