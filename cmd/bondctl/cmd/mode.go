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
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bondwire/bond/control"
	"github.com/bondwire/bond/session"
)

func init() {
	RootCmd.AddCommand(setRedundancyModeCmd)
}

var setRedundancyModeCmd = &cobra.Command{
	Use:   "set-redundancy-mode <quality|reliability>",
	Short: "Switch the sender between quality and reliability redundancy modes",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()

		mode := args[0]
		if mode != "quality" && mode != "reliability" {
			log.Fatalf("redundancy mode must be %q or %q, got %q", "quality", "reliability", mode)
		}
		submitOrFatal(control.Request{Kind: session.CmdSetRedundancyMode.String(), RedundancyMode: mode})
	},
}
