/*
Copyright (c) The Bond Authors.

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

package config

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// parseLevel maps the four log levels cmd/ptp4u/main.go accepts onto
// their logrus.Level, rejecting anything else at config validation time
// rather than falling through to log.Fatal deep inside startup.
func parseLevel(level string) (log.Level, error) {
	switch level {
	case "debug":
		return log.DebugLevel, nil
	case "info":
		return log.InfoLevel, nil
	case "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unrecognized log level %q, must be debug, info, warning or error", level)
	}
}

// ApplyLogLevel sets logrus's global level from c.LogLevel. Callers
// invoke this once at daemon startup, after Validate has already
// confirmed the level string is one of the four recognized values.
func (c *Config) ApplyLogLevel() {
	level, _ := parseLevel(c.LogLevel)
	log.SetLevel(level)
}
