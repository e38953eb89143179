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
	"os"

	"github.com/gravitational/azfailaway/lib/constants"
	"github.com/gravitational/azfailaway/lib/defaults"
	"github.com/gravitational/azfailaway/lib/processconfig"
	"github.com/gravitational/azfailaway/lib/storage"
	"github.com/gravitational/azfailaway/lib/utils"

	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField(trace.Component, constants.ComponentCLI)

// Run parses CLI arguments and executes an appropriate azfailaway command
func Run(g *Application) error {
	cmd, err := g.Parse(os.Args[1:])
	if err != nil {
		return trace.Wrap(err)
	}
	InitLogging(*g.Debug, *g.LogFile)
	log.Debugf("Executing: %v.", os.Args)

	if cmd == g.VersionCmd.FullCommand() {
		return printVersion(os.Stdout, *g.VersionCmd.Output)
	}

	config, err := readConfig(g)
	if err != nil {
		return trace.Wrap(err)
	}
	if config.Debug && !*g.Debug {
		trace.SetDebug(true)
		logrus.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	utils.WatchTerminationSignals(ctx, cancel, log)

	env, err := newEnvironment(ctx, *config)
	if err != nil {
		return trace.Wrap(err)
	}
	defer env.Close()

	if config.MetricsAddr != "" {
		go func() {
			if err := serveMetrics(ctx, config.MetricsAddr, env.registry); err != nil {
				log.WithError(err).Warn("Failed to serve metrics.")
			}
		}()
	}

	switch cmd {
	case g.RemoveCmd.FullCommand():
		return execute(ctx, env, storage.OperationEvent{
			Operation: storage.OperationRemove,
			ZoneID:    *g.RemoveCmd.ZoneID,
		}, *g.RemoveCmd.Output)
	case g.RestoreCmd.FullCommand():
		return execute(ctx, env, storage.OperationEvent{
			Operation: storage.OperationRestore,
			ZoneID:    *g.RestoreCmd.ZoneID,
		}, *g.RestoreCmd.Output)
	case g.RunCmd.FullCommand():
		return runRequest(ctx, env, *g.RunCmd.Payload, *g.RunCmd.Output)
	case g.ListenCmd.FullCommand():
		return listen(ctx, env, *g.ListenCmd.Queue)
	case g.StatusCmd.FullCommand():
		return status(ctx, env, *g.StatusCmd.ZoneID, *g.StatusCmd.Output)
	case g.AuditCmd.FullCommand():
		return audit(ctx, env, *g.AuditCmd.ZoneID, *g.AuditCmd.Output)
	case g.CheckCmd.FullCommand():
		return checkPermissions(ctx, env, *g.CheckCmd.Policy)
	}
	return trace.NotFound("unknown command %v", cmd)
}

// InitLogging initializes the logger with the debug or info level.
// If logFile is not empty, logs are duplicated to it
func InitLogging(debug bool, logFile string) {
	level := logrus.InfoLevel
	if debug {
		level = logrus.DebugLevel
	}
	utils.InitLogging(level, logFile)
}

// readConfig reads the configuration file and applies flag overrides.
// A missing configuration file at the default location is not an error
func readConfig(g *Application) (*processconfig.Config, error) {
	path := *g.ConfigFile
	if path == defaults.ConfigFile {
		path = ""
	}
	config, err := processconfig.ReadConfig(path)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	processconfig.MergeConfig(config, &processconfig.Config{
		Region:      *g.Region,
		AccountID:   *g.AccountID,
		Backend:     *g.Backend,
		TableName:   *g.TableName,
		BoltPath:    *g.BoltPath,
		Parallel:    *g.Parallel,
		MetricsAddr: *g.MetricsAddr,
	})
	if err := config.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return config, nil
}
