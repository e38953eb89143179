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
	"context"
	"fmt"

	"github.com/gravitational/azfailaway/lib/cloudprovider/aws/validation"
	"github.com/gravitational/azfailaway/lib/defaults"
	"github.com/gravitational/azfailaway/tool/common"

	"github.com/gravitational/trace"
)

// checkPermissions probes every action the operations need and reports
// the ones the current credentials are not allowed to perform
func checkPermissions(ctx context.Context, env *environment, policy bool) error {
	probes := validation.AllProbes
	if env.config.Backend != defaults.BackendDynamoDB {
		probes = probes.Without(validation.DynamoDB)
	}
	actions, err := validation.Validate(ctx, validation.Clients{
		AutoScaling: env.autoScaling,
		EC2:         env.ec2,
		DynamoDB:    env.dynamoDB,
		TableName:   env.config.TableName,
	}, probes)
	if err != nil {
		return trace.Wrap(err)
	}
	if len(actions) == 0 {
		fmt.Println("All required actions are allowed.")
		return nil
	}
	for _, action := range actions {
		common.PrintWarning("%v is not allowed", action)
	}
	if policy {
		doc, err := actions.AsPolicy(defaults.PolicyVersion)
		if err != nil {
			return trace.Wrap(err)
		}
		fmt.Println(doc)
	}
	return trace.AccessDenied("%v of %v required actions are not allowed", len(actions), len(probes))
}
