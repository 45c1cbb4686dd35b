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

package cmd

import (
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bondwire/bond/control"
	"github.com/bondwire/bond/session"
)

func init() {
	RootCmd.AddCommand(setProbeEnabledCmd)
}

var setProbeEnabledCmd = &cobra.Command{
	Use:   "set-probe-enabled <true|false>",
	Short: "Enable or disable outbound keepalive PROBE packets",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()

		enabled, err := strconv.ParseBool(args[0])
		if err != nil {
			log.Fatalf("invalid boolean %q: %v", args[0], err)
		}
		submitOrFatal(control.Request{Kind: session.CmdSetProbeEnabled.String(), ProbeEnabled: enabled})
	},
}
