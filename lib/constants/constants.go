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

// package constants contains global constants
// shared between packages
package constants

import (
	"github.com/gravitational/trace"
)

const (
	// ComponentCLI is the command line tool
	ComponentCLI = "cli"

	// ComponentListener is the operation request listener
	ComponentListener = "listener"

	// HumanDateFormatSeconds is a human readable date formatting with seconds
	HumanDateFormatSeconds = "Mon Jan _2 15:04:05 UTC"
)

var (
	// EncodingJSON is for the JSON encoding format
	EncodingJSON Format = "json"
	// EncodingText is for the plain-text encoding format
	EncodingText Format = "text"
	// OutputFormats is a list of recognized output formats for CLI commands
	OutputFormats = []Format{
		EncodingText,
		EncodingJSON,
	}
)

// Format is the type for supported output formats
type Format string

// Set sets the format value
func (f *Format) Set(v string) error {
	for _, format := range OutputFormats {
		if string(format) == v {
			*f = format
			return nil
		}
	}
	return trace.BadParameter("unsupported output format %q, expected one of %v", v, OutputFormats)
}

// String returns the format string representation
func (f *Format) String() string {
	return string(*f)
}
