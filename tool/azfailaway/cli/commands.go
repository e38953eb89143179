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

package cli

import (
	"github.com/gravitational/azfailaway/lib/constants"

	"gopkg.in/alecthomas/kingpin.v2"
)

// Application represents the command-line "azfailaway" application and contains
// definitions of all its flags, arguments and subcommands
type Application struct {
	*kingpin.Application
	// Debug allows to run the command in debug mode
	Debug *bool
	// LogFile is the optional file to duplicate logs to
	LogFile *string
	// ConfigFile is the path to the configuration file
	ConfigFile *string
	// Region overrides the configured AWS region
	Region *string
	// AccountID overrides the configured account ID
	AccountID *string
	// Backend overrides the configured recovery store backend
	Backend *string
	// TableName overrides the configured recovery table name
	TableName *string
	// BoltPath overrides the configured local recovery store location
	BoltPath *string
	// Parallel overrides the configured number of concurrent group updates
	Parallel *int
	// MetricsAddr overrides the configured metrics listen address
	MetricsAddr *string
	// VersionCmd outputs the binary version
	VersionCmd VersionCmd
	// RemoveCmd removes a zone from all auto scaling groups using it
	RemoveCmd RemoveCmd
	// RestoreCmd restores a previously removed zone
	RestoreCmd RestoreCmd
	// RunCmd executes an operation request payload
	RunCmd RunCmd
	// ListenCmd executes operation requests received from a queue
	ListenCmd ListenCmd
	// StatusCmd displays the recovery record of a zone
	StatusCmd StatusCmd
	// AuditCmd compares the recovery record of a zone with live groups
	AuditCmd AuditCmd
	// CheckCmd checks the permissions required by the operations
	CheckCmd CheckCmd
}

// VersionCmd displays the binary version
type VersionCmd struct {
	*kingpin.CmdClause
	// Output is output format
	Output *constants.Format
}

// RemoveCmd removes a zone from all auto scaling groups using it
type RemoveCmd struct {
	*kingpin.CmdClause
	// ZoneID is the ID of the zone to remove, e.g. use2-az1
	ZoneID *string
	// Output is output format
	Output *constants.Format
}

// RestoreCmd adds a previously removed zone back to the groups it was removed from
type RestoreCmd struct {
	*kingpin.CmdClause
	// ZoneID is the ID of the zone to restore
	ZoneID *string
	// Output is output format
	Output *constants.Format
}

// RunCmd executes the operation request read from a file or stdin
type RunCmd struct {
	*kingpin.CmdClause
	// Payload is the path to the request payload, "-" for stdin
	Payload *string
	// Output is output format
	Output *constants.Format
}

// ListenCmd executes operation requests received from an SQS queue
type ListenCmd struct {
	*kingpin.CmdClause
	// Queue is the name of the queue
	Queue *string
}

// StatusCmd displays the recovery record of a zone
type StatusCmd struct {
	*kingpin.CmdClause
	// ZoneID is the zone ID
	ZoneID *string
	// Output is output format
	Output *constants.Format
}

// AuditCmd reports the drift of the groups recorded for a zone
type AuditCmd struct {
	*kingpin.CmdClause
	// ZoneID is the zone ID
	ZoneID *string
	// Output is output format
	Output *constants.Format
}

// CheckCmd checks that the current credentials allow every action
// the operations need
type CheckCmd struct {
	*kingpin.CmdClause
	// Policy outputs the policy with the missing actions
	Policy *bool
}
