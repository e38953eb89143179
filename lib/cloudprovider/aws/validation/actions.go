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

package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gravitational/trace"
)

// Context defines an action context (EC2, AutoScaling etc)
type Context byte

const (
	// EC2 action context
	EC2 Context = iota
	// AutoScaling action context
	AutoScaling
	// DynamoDB action context
	DynamoDB
)

// contexts maps action contexts to their IAM service prefixes
var contexts = map[Context]string{
	EC2:         "ec2",
	AutoScaling: "autoscaling",
	DynamoDB:    "dynamodb",
}

// Action defines a single AWS context resource action
type Action struct {
	Context Context
	Name    string
}

// ParseAction parses the provided string of format "ec2:PermissionsName" into an Action object
func ParseAction(action string) (*Action, error) {
	parts := strings.Split(action, ":")
	if len(parts) != 2 || parts[1] == "" {
		return nil, trace.BadParameter(
			`invalid action format %q, expected "<service>:APIName"`, action)
	}
	var context Context
	if err := (&context).UnmarshalText([]byte(parts[0])); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Action{Context: context, Name: parts[1]}, nil
}

// String returns the IAM representation of this action
func (r Action) String() string {
	return fmt.Sprintf("%v:%v", r.Context, r.Name)
}

// Actions is a list of resource actions
type Actions []Action

// AsPolicy formats the specified set of actions as a AWS policy file
func (r Actions) AsPolicy(policyVersion string) (string, error) {
	if policyVersion == "" {
		return "", trace.BadParameter("invalid policy version")
	}
	var policy = policy{
		Version: policyVersion,
	}
	rules := map[Context][]Action{}
	for _, action := range r {
		rules[action.Context] = append(rules[action.Context], action)
	}
	for _, actions := range rules {
		policy.Statement = append(policy.Statement, rule{
			Effect:   "Allow",
			Resource: "*",
			Action:   actions,
		})
	}
	jsonBytes, err := json.MarshalIndent(&policy, "  ", "  ")
	return string(jsonBytes), err
}

// String returns a string representation of a Context
func (r Context) String() string {
	return contexts[r]
}

// MarshalJSON formats this Action value as JSON
func (r Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON reads an Action value from JSON
func (r *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return trace.Wrap(err)
	}
	action, err := ParseAction(s)
	if err != nil {
		return trace.Wrap(err)
	}
	*r = *action
	return nil
}

// MarshalText formats a Context value as text
func (r Context) MarshalText() ([]byte, error) {
	if prefix, ok := contexts[r]; ok {
		return []byte(prefix), nil
	}
	return nil, trace.BadParameter("invalid context value: %v", byte(r))
}

// UnmarshalText reads a Context value from text
func (r *Context) UnmarshalText(data []byte) error {
	for context, prefix := range contexts {
		if string(data) == prefix {
			*r = context
			return nil
		}
	}
	return trace.BadParameter("unsupported AWS API context %q", data)
}

type policy struct {
	Version   string
	Statement []rule
}

type rule struct {
	Effect   string
	Action   []Action
	Resource string
}
