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

var (
	pathIDFlag     uint16
	pathLocalFlag  string
	pathRemoteFlag string
	pathIfaceFlag  string
)

func init() {
	RootCmd.AddCommand(addPathCmd, removePathCmd, freezePathCmd, resumePathCmd)

	addPathCmd.Flags().Uint16VarP(&pathIDFlag, "id", "i", 0, "path id to register")
	addPathCmd.Flags().StringVarP(&pathLocalFlag, "local", "l", "", "local bind address, host:port")
	addPathCmd.Flags().StringVarP(&pathRemoteFlag, "remote", "r", "", "remote address, host:port")
	addPathCmd.Flags().StringVar(&pathIfaceFlag, "iface", "", "interface to bind the path's socket to, for link-specific routing")
	_ = addPathCmd.MarkFlagRequired("local")
	_ = addPathCmd.MarkFlagRequired("remote")

	for _, c := range []*cobra.Command{removePathCmd, freezePathCmd, resumePathCmd} {
		c.Flags().Uint16VarP(&pathIDFlag, "id", "i", 0, "path id")
		_ = c.MarkFlagRequired("id")
	}
}

var addPathCmd = &cobra.Command{
	Use:   "add-path",
	Short: "Dial and register a new bonded path",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		submitOrFatal(control.Request{
			Kind:       session.CmdAddPath.String(),
			PathID:     pathIDFlag,
			LocalBind:  pathLocalFlag,
			RemoteAddr: pathRemoteFlag,
			Iface:      pathIfaceFlag,
		})
	},
}

var removePathCmd = &cobra.Command{
	Use:   "remove-path",
	Short: "Quiesce and unregister a path",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		submitOrFatal(control.Request{Kind: session.CmdRemovePath.String(), PathID: pathIDFlag})
	},
}

var freezePathCmd = &cobra.Command{
	Use:   "freeze-path",
	Short: "Stop scheduling new units onto a path without removing it",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		submitOrFatal(control.Request{Kind: session.CmdFreezePath.String(), PathID: pathIDFlag})
	},
}

var resumePathCmd = &cobra.Command{
	Use:   "resume-path",
	Short: "Re-admit a previously frozen path",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		submitOrFatal(control.Request{Kind: session.CmdResumePath.String(), PathID: pathIDFlag})
	},
}

// submitOrFatal posts req to the configured daemon and exits nonzero on
// any transport or daemon-reported error.
func submitOrFatal(req control.Request) {
	if err := client().Submit(req); err != nil {
		log.Fatal(err)
	}
}
