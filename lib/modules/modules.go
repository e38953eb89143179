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

package modules

import (
	"sync"

	"github.com/gravitational/version"
)

// Modules allows to customize certain behavioral aspects of the tool
type Modules interface {
	// Version returns the tool version
	Version() Version
}

// Version describes the tool version
type Version struct {
	// Edition is the tool edition
	Edition string `json:"edition"`
	// Version is the semantic version
	Version string `json:"version"`
	// GitCommit is the commit the binary was built from
	GitCommit string `json:"gitCommit"`
}

// Set sets the modules interface
func Set(m Modules) {
	mutex.Lock()
	defer mutex.Unlock()
	modules = m
}

// Get returns the modules interface
func Get() Modules {
	mutex.Lock()
	defer mutex.Unlock()
	return modules
}

type defaultModules struct{}

// Version returns the tool version
func (m *defaultModules) Version() Version {
	ver := version.Get()
	return Version{
		Edition:   "open-source",
		Version:   ver.Version,
		GitCommit: ver.GitCommit,
	}
}

var (
	mutex           = &sync.Mutex{}
	modules Modules = &defaultModules{}
)
