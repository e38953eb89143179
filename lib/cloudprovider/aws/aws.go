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

// Package aws detects the AWS account and region the process is running with
package aws

import (
	"context"
	"os"

	"github.com/gravitational/azfailaway/lib/defaults"
	"github.com/gravitational/azfailaway/lib/storage"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/ec2metadata"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// Metadata is an interface representing the EC2 instance metadata API
type Metadata interface {
	Available() bool
	GetInstanceIdentityDocument() (ec2metadata.EC2InstanceIdentityDocument, error)
}

// STS is an interface representing AWS Security Token Service
type STS interface {
	GetCallerIdentityWithContext(aws.Context, *sts.GetCallerIdentityInput, ...request.Option) (*sts.GetCallerIdentityOutput, error)
}

// EnvironmentConfig configures environment detection.
// Explicitly set account and region take precedence over detected values
type EnvironmentConfig struct {
	// AccountID is the explicitly configured account ID
	AccountID string
	// Region is the explicitly configured region
	Region string
	// Metadata is the instance metadata client
	Metadata Metadata
	// STS is the security token service client
	STS STS
	// Getenv returns the value of an environment variable
	Getenv func(string) string
	// Clock provides request timestamps
	Clock clockwork.Clock
}

// CheckAndSetDefaults checks and sets default values
func (cfg *EnvironmentConfig) CheckAndSetDefaults() error {
	if cfg.Getenv == nil {
		cfg.Getenv = os.Getenv
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Metadata == nil || cfg.STS == nil {
		sess, err := session.NewSession()
		if err != nil {
			return trace.Wrap(err)
		}
		if cfg.Metadata == nil {
			cfg.Metadata = ec2metadata.New(sess)
		}
		if cfg.STS == nil {
			config := &aws.Config{}
			if cfg.Region != "" {
				config.Region = aws.String(cfg.Region)
			}
			cfg.STS = sts.New(sess, config)
		}
	}
	return nil
}

// DetectEnvironment returns the account and region operation events
// default to.
//
// The region is taken from configuration, then from the AWS_REGION and
// AWS_DEFAULT_REGION environment variables and then from the instance
// identity document. The account is taken from configuration, then from
// the instance identity document and then from the caller identity.
// Values that cannot be detected are left empty
func DetectEnvironment(ctx context.Context, cfg EnvironmentConfig) (*storage.Environment, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	logger := log.WithField(trace.Component, "environ")
	env := &storage.Environment{
		AccountID: cfg.AccountID,
		Region:    cfg.Region,
		Clock:     cfg.Clock,
	}
	if env.Region == "" {
		env.Region = cfg.Getenv(defaults.RegionEnv)
	}
	if env.Region == "" {
		env.Region = cfg.Getenv(defaults.DefaultRegionEnv)
	}
	if env.Region != "" && env.AccountID != "" {
		return env, nil
	}
	if cfg.Metadata.Available() {
		doc, err := cfg.Metadata.GetInstanceIdentityDocument()
		if err != nil {
			logger.WithError(err).Warn("Failed to fetch instance identity document.")
		} else {
			if env.Region == "" {
				env.Region = doc.Region
			}
			if env.AccountID == "" {
				env.AccountID = doc.AccountID
			}
		}
	}
	if env.AccountID == "" {
		out, err := cfg.STS.GetCallerIdentityWithContext(ctx, &sts.GetCallerIdentityInput{})
		if err != nil {
			logger.WithError(err).Warn("Failed to get caller identity.")
		} else {
			env.AccountID = aws.StringValue(out.Account)
		}
	}
	logger.WithFields(log.Fields{
		"account": env.AccountID,
		"region":  env.Region,
	}).Debug("Detected environment.")
	return env, nil
}

// IsRunningOnAWS indicates if the current running process appears to be running
// on an AWS instance by checking the availability of the AWS metadata API
func IsRunningOnAWS() (bool, error) {
	session, err := session.NewSession()
	if err != nil {
		return false, trace.Wrap(err)
	}
	metadata := ec2metadata.New(session)
	return metadata.Available(), nil
}
