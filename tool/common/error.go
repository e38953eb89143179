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
	"github.com/gravitational/azfailaway/lib/autoscale/aws"

	"github.com/gravitational/trace"
)

// ProcessRunError looks at the error that happened during a CLI command
// execution and converts it to a user-friendly format
func ProcessRunError(runErr error) error {
	if runErr == nil {
		return nil
	}
	switch err := trace.Unwrap(runErr).(type) {
	case *aws.ResolutionError:
		return trace.NotFound("zone %v does not exist in region %q. Make sure "+
			"the zone ID (e.g. use2-az1) rather than the zone name is used "+
			"and the region is correct", err.ZoneID, err.Region)
	case *aws.PreconditionError:
		return trace.BadParameter("zone %v is the only zone of auto scaling "+
			"group %v and cannot be removed. Groups updated before the failure "+
			"are listed by the status command",
			err.ZoneName, err.Name)
	}
	return runErr
}
