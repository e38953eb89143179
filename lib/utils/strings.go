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

// StringInSlice returns true if needle is in haystack
func StringInSlice(haystack []string, needle string) bool {
	for i := range haystack {
		if haystack[i] == needle {
			return true
		}
	}
	return false
}

// Without returns a copy of slice with all occurrences of item removed.
// Relative order of the remaining elements is preserved
func Without(slice []string, item string) []string {
	result := make([]string, 0, len(slice))
	for _, el := range slice {
		if el != item {
			result = append(result, el)
		}
	}
	return result
}

// Union returns elements of a followed by elements of b not already present.
// Duplicates are dropped, first occurrence wins
func Union(a, b []string) []string {
	seen := NewStringSet()
	result := make([]string, 0, len(a)+len(b))
	for _, slice := range [][]string{a, b} {
		for _, el := range slice {
			if seen.Has(el) {
				continue
			}
			seen.Add(el)
			result = append(result, el)
		}
	}
	return result
}

// Intersect returns elements of a that are also in b, in the order of a
func Intersect(a, b []string) []string {
	set := NewStringSetFromSlice(b)
	result := make([]string, 0, len(a))
	for _, el := range a {
		if set.Has(el) {
			result = append(result, el)
		}
	}
	return result
}
