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

package common

import (
	"io"
	"io/ioutil"
	"os"

	"github.com/gravitational/azfailaway/lib/constants"

	"github.com/gravitational/trace"
	"gopkg.in/alecthomas/kingpin.v2"
)

// GetReader returns the reader for the provided file or stdin if no filename
// or "-" was provided
func GetReader(filename string) (io.ReadCloser, error) {
	if filename == "" || filename == "-" {
		return ioutil.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	return f, nil
}

// ReadPayload returns the contents of the provided file or stdin
func ReadPayload(filename string) ([]byte, error) {
	r, err := GetReader(filename)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	defer r.Close()
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	return data, nil
}

// Format is the CLI parser for output format flag
func Format(s kingpin.Settings) *constants.Format {
	f := constants.EncodingText
	s.SetValue(&f)
	return &f
}
