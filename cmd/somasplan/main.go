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

// somasplan plans static pool offsets for the tensors of a computation
// graph read from a YAML file and prints the resulting layout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/devicemem/somas/pkg/somas"

	logger "github.com/devicemem/somas/pkg/log"
	version "github.com/devicemem/somas/pkg/version"
)

var log = logger.Default()

func main() {
	logger.SetupDebugToggleSignal(syscall.SIGUSR1)

	graphFlag := flag.String("graph", "", "Graph file to plan pool memory for.")
	configFlag := flag.String("config", "", "Planner configuration file.")
	solverFlag := flag.String("solver", "", "Override the configured offset solver.")
	outputFlag := flag.String("output", "", "Write the planned layout to this file as YAML.")
	dumpGraph := flag.Bool("dump-graph", false, "Dump the graph before planning.")
	printVersion := flag.Bool("version", false, "Print version and exit.")
	flag.Parse()

	if *printVersion {
		fmt.Printf("somasplan version %s (build %s)\n", version.Version, version.Build)
		os.Exit(0)
	}

	if args := flag.Args(); len(args) > 0 {
		log.Error("unknown command line arguments: %s", strings.Join(args, ","))
		flag.Usage()
		os.Exit(1)
	}
	if *graphFlag == "" {
		log.Error("no graph file given")
		flag.Usage()
		os.Exit(1)
	}

	log.Info("somasplan (version %s, build %s)", version.Version, version.Build)

	gf, err := readGraphFile(*graphFlag)
	if err != nil {
		log.Fatal("failed to load graph: %v", err)
	}

	options, err := plannerOptions(*configFlag, *solverFlag)
	if err != nil {
		log.Fatal("failed to configure planner: %v", err)
	}

	g, err := gf.build()
	if err != nil {
		log.Fatal("failed to build graph: %v", err)
	}

	p, err := somas.NewPlanner(g, options...)
	if err != nil {
		log.Fatal("failed to create planner: %v", err)
	}
	for _, members := range gf.Groups {
		if err := p.AddContiguousGroup(members...); err != nil {
			log.Fatal("failed to declare contiguous group: %v", err)
		}
	}

	if *dumpGraph {
		p.DumpGraph()
	}

	layout, err := p.Plan(context.Background())
	if err != nil {
		log.Fatal("planning failed: %v", err)
	}

	printLayout(layout)

	if *outputFlag != "" {
		if err := writeLayoutFile(*outputFlag, layout); err != nil {
			log.Fatal("failed to write layout: %v", err)
		}
		log.Info("layout written to %s", *outputFlag)
	}

	logger.Flush()
}

func printLayout(l *somas.Layout) {
	st := l.Stats()

	fmt.Printf("%8s  %12s  %12s  %s\n", "TENSOR", "OFFSET", "SIZE", "NAME")
	for _, a := range l.Assignments() {
		fmt.Printf("%8d  %12d  %12d  %s\n", a.ID, a.Offset, a.Size, a.Name)
	}
	fmt.Printf("pool size %d bytes for %d tensors (%d solved, %d in groups, %d aliased)\n",
		l.PoolSize(), st.Tensors, st.Solved, st.Groups, st.Aliased)
	fmt.Printf("aligned total %d bytes, saved %d bytes by reuse, solved in %s\n",
		st.AlignedBytes, st.ReuseSavings, st.SolveDuration)
}
