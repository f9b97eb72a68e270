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

// Package tracing provides a thin span wrapper over OpenTelemetry. The
// tracer provider is owned by the embedding application; spans produced
// here are no-ops until tracing is enabled.
package tracing

import (
	"sync/atomic"
)

// tracing is the runtime state of the package.
type tracing struct {
	enabled atomic.Bool
}

var trc = &tracing{}

// Enable turns on production of tracing spans.
func Enable() {
	trc.enabled.Store(true)
}

// Disable turns off production of tracing spans.
func Disable() {
	trc.enabled.Store(false)
}

// Enabled returns true if tracing spans are produced.
func Enabled() bool {
	return trc.enabled.Load()
}
