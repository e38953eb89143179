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
	"github.com/gravitational/azfailaway/lib/defaults"
	"github.com/gravitational/azfailaway/tool/common"

	"gopkg.in/alecthomas/kingpin.v2"
)

// RegisterCommands registers all azfailaway tool flags, arguments and subcommands
func RegisterCommands(app *kingpin.Application) *Application {
	g := &Application{Application: app}

	g.Debug = app.Flag("debug", "Enable debug mode.").Bool()
	g.LogFile = app.Flag("log-file", "Duplicate logs to the specified file.").String()
	g.ConfigFile = app.Flag("config", "Path to the configuration file.").
		Default(defaults.ConfigFile).String()
	g.Region = app.Flag("region", "AWS region. Detected if unspecified.").String()
	g.AccountID = app.Flag("account-id", "Account that owns the auto scaling groups. Detected if unspecified.").String()
	g.Backend = app.Flag("backend", "Recovery store backend, dynamodb or bolt.").String()
	g.TableName = app.Flag("table", "DynamoDB table with recovery records.").String()
	g.BoltPath = app.Flag("bolt-path", "Location of the local recovery store.").String()
	g.Parallel = app.Flag("parallel", "Number of auto scaling groups updated concurrently.").Int()
	g.MetricsAddr = app.Flag("metrics-addr", "Address to serve prometheus metrics on.").String()

	g.VersionCmd.CmdClause = app.Command("version", "Print the version of azfailaway.")
	g.VersionCmd.Output = common.Format(g.VersionCmd.Flag("output", "Output format, text or json.").Short('o'))

	g.RemoveCmd.CmdClause = app.Command("remove", "Remove a zone from every auto scaling group using it.")
	g.RemoveCmd.ZoneID = g.RemoveCmd.Arg("zone-id", "Zone ID, e.g. use2-az1.").Required().String()
	g.RemoveCmd.Output = common.Format(g.RemoveCmd.Flag("output", "Output format, text or json.").Short('o'))

	g.RestoreCmd.CmdClause = app.Command("restore", "Restore a zone to the auto scaling groups it was removed from.")
	g.RestoreCmd.ZoneID = g.RestoreCmd.Arg("zone-id", "Zone ID, e.g. use2-az1.").Required().String()
	g.RestoreCmd.Output = common.Format(g.RestoreCmd.Flag("output", "Output format, text or json.").Short('o'))

	g.RunCmd.CmdClause = app.Command("run", "Execute an operation request.")
	g.RunCmd.Payload = g.RunCmd.Flag("payload", "Path to the JSON request, - for stdin.").Default("-").String()
	g.RunCmd.Output = common.Format(g.RunCmd.Flag("output", "Output format, text or json.").Short('o'))

	g.ListenCmd.CmdClause = app.Command("listen", "Execute operation requests received from an SQS queue.")
	g.ListenCmd.Queue = g.ListenCmd.Flag("queue", "Name of the queue. Defaults to the configured queue.").String()

	g.StatusCmd.CmdClause = app.Command("status", "Display the recovery record of a zone.")
	g.StatusCmd.ZoneID = g.StatusCmd.Arg("zone-id", "Zone ID, e.g. use2-az1.").Required().String()
	g.StatusCmd.Output = common.Format(g.StatusCmd.Flag("output", "Output format, text or json.").Short('o'))

	g.AuditCmd.CmdClause = app.Command("audit", "Compare the recovery record of a zone with the live auto scaling groups.")
	g.AuditCmd.ZoneID = g.AuditCmd.Arg("zone-id", "Zone ID, e.g. use2-az1.").Required().String()
	g.AuditCmd.Output = common.Format(g.AuditCmd.Flag("output", "Output format, text or json.").Short('o'))

	g.CheckCmd.CmdClause = app.Command("check", "Check the permissions required to remove and restore zones.")
	g.CheckCmd.Policy = g.CheckCmd.Flag("policy", "Print the IAM policy granting the missing actions.").Bool()

	return g
}
