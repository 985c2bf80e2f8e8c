// Copyright © 2018 Intel Corporation
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

// Package mirror implements the [Mirrors] prefix-substitution rules used
// by the path resolver (spec §4.B step 1).
package mirror

import "strings"

// Rule is one find->replace URL prefix substitution.
type Rule struct {
	Find    string
	Replace string
}

// Encode escapes a literal "=" in a key or value so it can be stored as
// an INI "find = replace" pair without being mistaken for the
// separator.
func Encode(s string) string {
	return strings.ReplaceAll(s, "=", "%")
}

// Decode reverses Encode.
func Decode(s string) string {
	return strings.ReplaceAll(s, "%", "=")
}

// Apply finds the first rule (in declaration order) whose Find is a
// case-insensitive prefix of path, and returns the path with that
// prefix replaced, plus whether a rewrite happened.
func Apply(path string, rules []Rule) (string, bool) {
	lowerPath := strings.ToLower(path)
	for _, r := range rules {
		find := Decode(r.Find)
		replace := Decode(r.Replace)
		lowerFind := strings.ToLower(find)
		if strings.HasPrefix(lowerPath, lowerFind) {
			return replace + path[len(find):], true
		}
	}
	return path, false
}
