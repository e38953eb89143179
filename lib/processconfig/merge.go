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

package processconfig

import (
	"os"

	"github.com/gravitational/trace"
)

// ConfigEnv is the environment variable with the YAML configuration
// that overrides the configuration file
const ConfigEnv = "AZFAILAWAY_CONFIG"

// MergeConfigFromEnv merges the configuration from the ConfigEnv
// environment variable into cfg
func MergeConfigFromEnv(cfg *Config) error {
	data := os.Getenv(ConfigEnv)
	if data == "" {
		return nil
	}
	var env Config
	if err := ParseConfig([]byte(data), &env); err != nil {
		return trace.Wrap(err, "failed to parse %v", ConfigEnv)
	}
	MergeConfig(cfg, &env)
	return nil
}

// MergeConfig merges the fields set in from into into
func MergeConfig(into, from *Config) {
	if from.Region != "" {
		into.Region = from.Region
	}
	if from.AccountID != "" {
		into.AccountID = from.AccountID
	}
	if from.Backend != "" {
		into.Backend = from.Backend
	}
	if from.TableName != "" {
		into.TableName = from.TableName
	}
	if from.BoltPath != "" {
		into.BoltPath = from.BoltPath
	}
	if from.Parallel != 0 {
		into.Parallel = from.Parallel
	}
	if from.CallTimeout != 0 {
		into.CallTimeout = from.CallTimeout
	}
	if from.RetryTimeout != 0 {
		into.RetryTimeout = from.RetryTimeout
	}
	if from.MetricsAddr != "" {
		into.MetricsAddr = from.MetricsAddr
	}
	if from.Queue.Name != "" {
		into.Queue.Name = from.Queue.Name
	}
	if from.Queue.WaitTime != 0 {
		into.Queue.WaitTime = from.Queue.WaitTime
	}
	if from.Queue.VisibilityTimeout != 0 {
		into.Queue.VisibilityTimeout = from.Queue.VisibilityTimeout
	}
	if from.Debug {
		into.Debug = from.Debug
	}
}
