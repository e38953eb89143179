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

package utils

import (
	"os"

	"github.com/gravitational/azfailaway/lib/defaults"

	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// InitLogging configures the standard logger with the specified level.
// If logFile is not empty, all log entries are additionally appended to it
func InitLogging(level log.Level, logFile string) {
	trace.SetDebug(level == log.DebugLevel)
	log.SetFormatter(&trace.TextFormatter{})
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	if logFile != "" {
		log.StandardLogger().Hooks.Add(&Hook{path: logFile})
	}
}

// Hook implements log.Hook and multiplexes log messages
// both to stderr and a log file
type Hook struct {
	path string
}

// Fire writes the provided log entry to the configured log file
//
// It never returns an error to avoid default logrus behavior of spitting
// out fire hook errors into stderr.
func (r *Hook) Fire(entry *log.Entry) error {
	msg, err := entry.String()
	if err != nil {
		return nil
	}
	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, defaults.PrivateFileMask)
	if err != nil {
		return nil
	}
	defer f.Close()
	f.WriteString(msg)
	return nil
}

// Levels returns all levels
func (r *Hook) Levels() []log.Level {
	return log.AllLevels
}

