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
	"encoding/json"
	"fmt"

	idset "github.com/intel/goresctrl/pkg/utils"
)

type (
	// NodeID is the caller-assigned id of a computation graph node.
	NodeID = idset.ID
	// StreamID is the caller-assigned id of an execution stream.
	StreamID = idset.ID
	// TensorID is the dense ordinal id of a tensor, assigned at creation.
	TensorID = idset.ID
)

const (
	// Alignment is the boundary tensor sizes are rounded up to.
	Alignment = 512
	// alignmentComplement is extra padding included in the rounding.
	alignmentComplement = 31
	// UnknownOffset marks a tensor without an assigned pool offset.
	UnknownOffset = int64(-1)
)

const (
	// ForeachDone can be returned from a foreach callback to terminate iteration.
	ForeachDone = false
	// ForeachMore can be returned from a foreach callback to continue iteration.
	ForeachMore = true
)

// AlignedSize returns the amount of pool memory reserved for a tensor
// of the given size: the size padded by the alignment complement and
// rounded up to the next alignment boundary. A zero size stays zero.
func AlignedSize(size int64) int64 {
	if size <= 0 {
		return 0
	}
	return ((size + Alignment + alignmentComplement) / Alignment) * Alignment
}

// LifeLong describes how a tensor's lifetime is pinned to the graph
// beyond its plain producer-to-last-consumer interval.
type LifeLong int

const (
	// LifeLongNone leaves the lifetime at the plain use interval.
	LifeLongNone LifeLong = iota
	// LifeLongGraphAll pins the tensor for the whole graph execution.
	LifeLongGraphAll
	// LifeLongGraphStart pins the start of the lifetime to the graph start.
	LifeLongGraphStart
	// LifeLongGraphEnd pins the end of the lifetime to the graph end.
	LifeLongGraphEnd
)

// ParseLifeLong parses the given string into a LifeLong class.
func ParseLifeLong(str string) (LifeLong, error) {
	switch str {
	case "", "none":
		return LifeLongNone, nil
	case "graph-all":
		return LifeLongGraphAll, nil
	case "graph-start":
		return LifeLongGraphStart, nil
	case "graph-end":
		return LifeLongGraphEnd, nil
	}
	return LifeLongNone, fmt.Errorf("%w: unknown lifelong class %q", ErrInvalidTensor, str)
}

// String returns a string representation of the LifeLong class.
func (l LifeLong) String() string {
	switch l {
	case LifeLongNone:
		return "none"
	case LifeLongGraphAll:
		return "graph-all"
	case LifeLongGraphStart:
		return "graph-start"
	case LifeLongGraphEnd:
		return "graph-end"
	}
	return fmt.Sprintf("unknown(%d)", int(l))
}

// MarshalJSON is the JSON marshaller for LifeLong.
func (l LifeLong) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON is the JSON unmarshaller for LifeLong.
func (l *LifeLong) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("%w: failed to unmarshal lifelong class: %v", ErrInvalidTensor, err)
	}
	parsed, err := ParseLifeLong(str)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Kind describes the role a tensor plays for its producing node.
type Kind int

const (
	// KindCommon is a regular value passed between nodes.
	KindCommon Kind = iota
	// KindWorkspace is scratch memory live only while its node runs.
	KindWorkspace
	// KindOutputOnly is a tensor consumed outside the graph only.
	KindOutputOnly
	// KindRefNodeInput is the input side of an in-place reference pair.
	KindRefNodeInput
	// KindRefNodeOutput is the output side of an in-place reference pair.
	KindRefNodeOutput
	// KindUnknown is a tensor of unknown role.
	KindUnknown
)

// ParseKind parses the given string into a tensor Kind.
func ParseKind(str string) (Kind, error) {
	switch str {
	case "", "common":
		return KindCommon, nil
	case "workspace":
		return KindWorkspace, nil
	case "output-only":
		return KindOutputOnly, nil
	case "ref-node-input":
		return KindRefNodeInput, nil
	case "ref-node-output":
		return KindRefNodeOutput, nil
	case "unknown":
		return KindUnknown, nil
	}
	return KindUnknown, fmt.Errorf("%w: unknown tensor kind %q", ErrInvalidTensor, str)
}

// String returns a string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindCommon:
		return "common"
	case KindWorkspace:
		return "workspace"
	case KindOutputOnly:
		return "output-only"
	case KindRefNodeInput:
		return "ref-node-input"
	case KindRefNodeOutput:
		return "ref-node-output"
	case KindUnknown:
		return "unknown"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// MarshalJSON is the JSON marshaller for Kind.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON is the JSON unmarshaller for Kind.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("%w: failed to unmarshal tensor kind: %v", ErrInvalidTensor, err)
	}
	parsed, err := ParseKind(str)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Lifetime is a live interval over the execution order of the graph,
// both endpoints inclusive.
type Lifetime struct {
	Begin int `json:"begin"`
	End   int `json:"end"`
}

// Overlaps returns true if the two lifetimes intersect.
func (lt Lifetime) Overlaps(o Lifetime) bool {
	return lt.Begin <= o.End && o.Begin <= lt.End
}

// String returns a string representation of the lifetime.
func (lt Lifetime) String() string {
	return fmt.Sprintf("[%d-%d]", lt.Begin, lt.End)
}
