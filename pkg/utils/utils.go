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

// Package utils holds small helpers shared by the other packages.
package utils

import (
	"fmt"
	"strings"
)

// ParseEnabled parses a boolean-ish state string. It accepts the usual
// spellings for enabling and disabling something in a configuration file
// or an environment variable.
func ParseEnabled(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "y", "on", "yes", "true", "enable", "enabled":
		return true, nil
	case "0", "f", "n", "off", "no", "false", "disable", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("invalid enabled/disabled value %q", value)
}
