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
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/gravitational/azfailaway/lib/constants"
	"github.com/gravitational/azfailaway/lib/ops"
	"github.com/gravitational/azfailaway/lib/storage"
	"github.com/gravitational/azfailaway/tool/common"

	"github.com/gravitational/trace"
)

// printExecution prints the outcome of an operation
func printExecution(w io.Writer, exec *ops.Execution, format constants.Format) error {
	if format == constants.EncodingJSON {
		return trace.Wrap(common.PrintJSON(w, exec))
	}
	fmt.Fprintf(w, "%v of zone %v in %v/%v: %v (%v)\n",
		exec.Event.Operation, exec.Event.ZoneID, exec.Event.AccountID, exec.Event.Region,
		exec.State, exec.Duration())
	if len(exec.Branches) == 0 && len(exec.Skipped) == 0 {
		fmt.Fprintln(w, "No auto scaling groups were affected.")
		return nil
	}
	t := tabwriter.NewWriter(w, 0, 10, 5, ' ', 0)
	common.PrintTableHeader(t, []string{"Auto Scaling Group", "State", "Zones", "Subnets", "Error"})
	for _, branch := range exec.Branches {
		var zones, subnets []string
		if branch.Mutation != nil {
			zones = branch.Mutation.AvailabilityZones
			subnets = branch.Mutation.SubnetIDs
		}
		var errMsg string
		if branch.Err != nil {
			errMsg = trace.UserMessage(branch.Err)
		}
		fmt.Fprintf(t, "%v\t%v\t%v\t%v\t%v\n",
			branch.ASG, branch.State, formatList(zones), formatList(subnets), errMsg)
	}
	for _, name := range exec.Skipped {
		fmt.Fprintf(t, "%v\t%v\t%v\t%v\t%v\n", name, "Skipped", "-", "-", "")
	}
	return trace.Wrap(t.Flush())
}

// printRecord prints the groups recorded in a recovery record
func printRecord(w io.Writer, record *storage.RecoveryRecord, format constants.Format) error {
	if format == constants.EncodingJSON {
		return trace.Wrap(common.PrintJSON(w, record))
	}
	t := tabwriter.NewWriter(w, 0, 10, 5, ' ', 0)
	common.PrintTableHeader(t, []string{"Auto Scaling Group", "Zone", "Zones Before", "Zones After", "Subnets Before", "Removed"})
	for _, name := range record.Names() {
		event := record.Events[name]
		fmt.Fprintf(t, "%v\t%v\t%v\t%v\t%v\t%v\n",
			name,
			event.Details.ZoneName,
			formatList(event.Details.AvailabilityZones),
			formatList(event.AvailabilityZones),
			formatList(event.Details.SubnetIDs),
			event.Details.OperationEvent.Time().Format(constants.HumanDateFormatSeconds))
	}
	return trace.Wrap(t.Flush())
}

// printAudit prints the drift of recorded groups
func printAudit(w io.Writer, entries []ops.AuditEntry, format constants.Format) error {
	if format == constants.EncodingJSON {
		return trace.Wrap(common.PrintJSON(w, entries))
	}
	t := tabwriter.NewWriter(w, 0, 10, 5, ' ', 0)
	common.PrintTableHeader(t, []string{"Auto Scaling Group", "Drift", "Recorded Zones", "Live Zones"})
	for _, entry := range entries {
		fmt.Fprintf(t, "%v\t%v\t%v\t%v\n",
			entry.ASG, entry.Drift, formatList(entry.Recorded), formatList(entry.Live))
	}
	return trace.Wrap(t.Flush())
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}
