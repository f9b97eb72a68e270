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
	"errors"
	"fmt"
)

var (
	ErrFailedOption  = fmt.Errorf("somas: failed to apply option")
	ErrInvalidTensor = fmt.Errorf("somas: invalid tensor")
	ErrUnknownTensor = fmt.Errorf("somas: unknown tensor")
	ErrInvalidNode   = fmt.Errorf("somas: invalid node")
	ErrUnknownNode   = fmt.Errorf("somas: unknown node")
	ErrInvalidGraph  = fmt.Errorf("somas: invalid graph")
	ErrInvalidGroup  = fmt.Errorf("somas: invalid contiguous group")
	ErrInvalidAlias  = fmt.Errorf("somas: invalid storage alias")
	ErrSolverFailed  = fmt.Errorf("somas: solver failed")
	ErrSolverDesync  = fmt.Errorf("somas: solver out of sync")
	ErrUnsafeLayout  = fmt.Errorf("somas: unsafe layout")
	ErrInternalError = fmt.Errorf("somas: internal error")
)

// IsConfigurationError returns true for errors caused by invalid input:
// bad tensor, node, graph, group, or alias declarations. These are
// caller bugs and planning fails before anything is solved.
func IsConfigurationError(err error) bool {
	for _, sentinel := range []error{
		ErrInvalidTensor,
		ErrUnknownTensor,
		ErrInvalidNode,
		ErrUnknownNode,
		ErrInvalidGraph,
		ErrInvalidGroup,
		ErrInvalidAlias,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
