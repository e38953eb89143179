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
	"os"

	"github.com/gravitational/azfailaway/lib/constants"
	"github.com/gravitational/azfailaway/lib/ops"

	"github.com/gravitational/trace"
)

// status prints the recovery record of the specified zone
func status(ctx context.Context, env *environment, zoneID string, format constants.Format) error {
	record, err := env.store.Get(ctx, env.detected.AccountID, zoneID)
	if err != nil {
		if trace.IsNotFound(err) && format == constants.EncodingText {
			fmt.Printf("No auto scaling groups are recorded for zone %v.\n", zoneID)
			return nil
		}
		return trace.Wrap(err)
	}
	return trace.Wrap(printRecord(os.Stdout, record, format))
}

// audit prints the drift of the groups recorded for the specified zone
func audit(ctx context.Context, env *environment, zoneID string, format constants.Format) error {
	auditor, err := ops.NewAuditor(ops.AuditConfig{
		Records: env.store,
		Groups:  env.autoscaler,
	})
	if err != nil {
		return trace.Wrap(err)
	}
	entries, err := auditor.Audit(ctx, env.detected.AccountID, zoneID)
	if err != nil {
		if trace.IsNotFound(err) && format == constants.EncodingText {
			fmt.Printf("No auto scaling groups are recorded for zone %v.\n", zoneID)
			return nil
		}
		return trace.Wrap(err)
	}
	return trace.Wrap(printAudit(os.Stdout, entries, format))
}
