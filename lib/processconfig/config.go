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

// Package processconfig reads the service configuration file
// and creates the recovery store backend it describes
package processconfig

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/gravitational/azfailaway/lib/defaults"
	"github.com/gravitational/azfailaway/lib/storage"
	"github.com/gravitational/azfailaway/lib/storage/dynamo"
	"github.com/gravitational/azfailaway/lib/storage/keyval"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/gravitational/configure"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// ReadConfig reads the configuration file at the specified path.
// If path is empty, the default location is used and a missing file
// yields the default configuration
func ReadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaults.ConfigFile
	}
	log.Debugf("Look up config in %v.", path)
	var cfg Config
	data, err := ioutil.ReadFile(path)
	if err != nil {
		err = trace.ConvertSystemError(err)
		if explicit || (!trace.IsNotFound(err) && !trace.IsAccessDenied(err)) {
			return nil, trace.Wrap(err)
		}
		log.Debugf("%v not found, using defaults.", path)
	} else {
		if err := ParseConfig(data, &cfg); err != nil {
			return nil, trace.Wrap(err, "failed to parse %v", path)
		}
	}
	if err := configure.ParseEnv(&cfg); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := MergeConfigFromEnv(&cfg); err != nil {
		return nil, trace.Wrap(err)
	}
	return &cfg, nil
}

// ParseConfig parses the YAML configuration from data into cfg
func ParseConfig(data []byte, cfg *Config) error {
	return trace.Wrap(configure.ParseYAML(data, cfg, configure.EnableTemplating()))
}

// Config is the service configuration
type Config struct {
	// Region is the AWS region. Detected from the environment if unspecified
	Region string `yaml:"region" env:"AZFAILAWAY_REGION"`

	// AccountID is the account that owns the auto scaling groups.
	// Detected from the environment if unspecified
	AccountID string `yaml:"account_id" env:"AZFAILAWAY_ACCOUNT_ID"`

	// Backend is the type of the recovery store backend
	Backend string `yaml:"backend" env:"AZFAILAWAY_BACKEND"`

	// TableName is the name of the DynamoDB table with recovery records
	TableName string `yaml:"table_name" env:"AZFAILAWAY_TABLE_NAME"`

	// BoltPath is the location of the local recovery store
	BoltPath string `yaml:"bolt_path" env:"AZFAILAWAY_BOLT_PATH"`

	// Parallel limits the number of concurrent group updates
	Parallel int `yaml:"parallel"`

	// CallTimeout bounds every individual AWS API call
	CallTimeout time.Duration `yaml:"call_timeout"`

	// RetryTimeout bounds the retries of read-only AWS API calls
	RetryTimeout time.Duration `yaml:"retry_timeout"`

	// MetricsAddr is the address to serve prometheus metrics on.
	// Metrics are not served if empty
	MetricsAddr string `yaml:"metrics_addr" env:"AZFAILAWAY_METRICS_ADDR"`

	// Queue configures the operation request queue
	Queue QueueConfig `yaml:"queue"`

	// Debug enables debug logging
	Debug bool `yaml:"debug"`
}

// QueueConfig configures the operation request queue
type QueueConfig struct {
	// Name is the name of the SQS queue with operation requests
	Name string `yaml:"name"`
	// WaitTime is the long polling interval
	WaitTime time.Duration `yaml:"wait_time"`
	// VisibilityTimeout hides a received request from other consumers
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
}

// CheckAndSetDefaults validates this configuration and sets defaults
func (cfg *Config) CheckAndSetDefaults() error {
	switch cfg.Backend {
	case "":
		cfg.Backend = defaults.Backend
	case defaults.BackendDynamoDB, defaults.BackendBolt:
	default:
		return trace.BadParameter("unsupported backend type %q, expected one of %v or %v",
			cfg.Backend, defaults.BackendDynamoDB, defaults.BackendBolt)
	}
	if cfg.TableName == "" {
		cfg.TableName = defaults.TableName
	}
	if cfg.BoltPath == "" {
		cfg.BoltPath = defaults.BoltPath
	}
	if cfg.Parallel < 0 {
		return trace.BadParameter("parallel should be positive, got %v", cfg.Parallel)
	}
	if cfg.Parallel == 0 {
		cfg.Parallel = defaults.MaxConcurrentMutations
	}
	if cfg.CallTimeout < 0 || cfg.RetryTimeout < 0 {
		return trace.BadParameter("timeouts should be positive")
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = defaults.CallTimeout
	}
	if cfg.RetryTimeout == 0 {
		cfg.RetryTimeout = defaults.RetryTimeout
	}
	if cfg.Queue.WaitTime == 0 {
		cfg.Queue.WaitTime = defaults.QueueWaitTime
	}
	if cfg.Queue.VisibilityTimeout == 0 {
		cfg.Queue.VisibilityTimeout = defaults.QueueVisibilityTimeout
	}
	return nil
}

// CreateBackend creates the recovery store backend this configuration describes.
// Region must be set to create the DynamoDB backend
func (cfg Config) CreateBackend() (backend storage.Backend, err error) {
	switch cfg.Backend {
	case defaults.BackendBolt:
		log.Debug("Using bolt backend.")
		if err := os.MkdirAll(filepath.Dir(cfg.BoltPath), defaults.SharedDirMask); err != nil {
			return nil, trace.ConvertSystemError(err)
		}
		backend, err = keyval.NewBolt(keyval.BoltConfig{Path: cfg.BoltPath})
	case defaults.BackendDynamoDB:
		log.Debug("Using DynamoDB backend.")
		if cfg.Region == "" {
			return nil, trace.BadParameter("missing region for DynamoDB backend")
		}
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
		if err != nil {
			return nil, trace.Wrap(err)
		}
		backend, err = dynamo.New(dynamo.Config{
			TableName:   cfg.TableName,
			Client:      dynamodb.New(sess),
			CallTimeout: cfg.CallTimeout,
		})
		if err != nil {
			return nil, trace.Wrap(err)
		}
	default:
		return nil, trace.BadParameter("unsupported backend type %q", cfg.Backend)
	}
	return backend, trace.Wrap(err)
}
