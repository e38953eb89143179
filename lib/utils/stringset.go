/*
Copyright 2021 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package utils

import "sort"

// StringSet is a set of strings
type StringSet map[string]struct{}

// NewStringSet returns an empty set
func NewStringSet() StringSet {
	return make(StringSet)
}

// NewStringSetFromSlice returns a set with the elements of slice
func NewStringSetFromSlice(slice []string) StringSet {
	s := NewStringSet()
	for _, el := range slice {
		s.Add(el)
	}
	return s
}

// Add adds v to the set
func (s StringSet) Add(v string) {
	s[v] = struct{}{}
}

// Has returns true if item is in the set
func (s StringSet) Has(item string) (exists bool) {
	_, exists = s[item]
	return exists
}

// Slice returns the set elements in sorted order
func (s StringSet) Slice() (slice []string) {
	slice = make([]string, 0, len(s))
	for key := range s {
		slice = append(slice, key)
	}
	sort.Strings(slice)
	return slice
}

// Equals returns true if both sets contain the same elements
func (s StringSet) Equals(other StringSet) bool {
	if len(s) != len(other) {
		return false
	}
	for key := range s {
		if !other.Has(key) {
			return false
		}
	}
	return true
}
