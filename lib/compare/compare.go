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

// Package compare provides gocheck helpers that report readable diffs
package compare

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"sort"

	"github.com/davecgh/go-spew/spew"
	"github.com/kylelemons/godebug/diff"
	check "gopkg.in/check.v1"
)

// DeepCompare uses gocheck DeepEquals but provides nice diff if things are not equal
func DeepCompare(c *check.C, a, b interface{}) {
	c.Assert(a, check.DeepEquals, b, check.Commentf("%v\nStack:\n%v\n", Diff(a, b), string(debug.Stack())))
}

// DeepEquals is a gocheck checker that provides a readable diff in case
// comparison fails.
var DeepEquals check.Checker = &deepEqualsChecker{
	&check.CheckerInfo{Name: "DeepEquals", Params: []string{"obtained", "expected"}},
}

// Check expects two items in params (obtained and expected) and compares them using reflection.
// If comparison fails, it returns a readable diff in error.
// Implements gocheck checker interface
func (checker *deepEqualsChecker) Check(params []interface{}, names []string) (result bool, error string) {
	result = reflect.DeepEqual(params[0], params[1])
	if !result {
		error = Diff(params[0], params[1])
	}
	return result, error
}

// SameStrings is a gocheck checker that compares two string slices
// ignoring the order of elements.
// Duplicates are significant
var SameStrings check.Checker = &sameStringsChecker{
	&check.CheckerInfo{Name: "SameStrings", Params: []string{"obtained", "expected"}},
}

// Check expects two string slices in params (obtained and expected).
// Implements gocheck checker interface
func (checker *sameStringsChecker) Check(params []interface{}, names []string) (result bool, error string) {
	obtained, ok := params[0].([]string)
	if !ok {
		return false, fmt.Sprintf("obtained value is %T, not []string", params[0])
	}
	expected, ok := params[1].([]string)
	if !ok {
		return false, fmt.Sprintf("expected value is %T, not []string", params[1])
	}
	obtained = sorted(obtained)
	expected = sorted(expected)
	result = reflect.DeepEqual(obtained, expected)
	if !result {
		error = Diff(obtained, expected)
	}
	return result, error
}

// Diff returns user friendly difference between two objects
func Diff(a, b interface{}) string {
	return diff.Diff(Sdump(a), Sdump(b))
}

// Sdump returns debug-friendly text representation of a
func Sdump(a interface{}) string {
	d := &spew.ConfigState{Indent: " ", DisableMethods: true, DisablePointerMethods: true, DisablePointerAddresses: true}
	return d.Sdump(a)
}

func sorted(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

type deepEqualsChecker struct {
	*check.CheckerInfo
}

type sameStringsChecker struct {
	*check.CheckerInfo
}
