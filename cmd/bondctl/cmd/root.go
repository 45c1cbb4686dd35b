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
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bondwire/bond/control"
)

// RootCmd is bondctl's entry point. It's exported so bondctl could be
// easily extended without touching core functionality.
var RootCmd = &cobra.Command{
	Use:   "bondctl",
	Short: "Operator CLI for a bond-sender/bond-receiver daemon",
}

var (
	rootAddrFlag    string
	rootVerboseFlag bool
)

func init() {
	RootCmd.PersistentFlags().StringVarP(&rootAddrFlag, "addr", "a", "http://127.0.0.1:9900", "Base URL of the daemon's telemetry/control listener")
	RootCmd.PersistentFlags().BoolVarP(&rootVerboseFlag, "verbose", "v", false, "verbose output")
}

// ConfigureVerbosity configures log verbosity based on parsed flags.
// Needs to be called by any subcommand that logs.
func ConfigureVerbosity() {
	log.SetLevel(log.InfoLevel)
	if rootVerboseFlag {
		log.SetLevel(log.DebugLevel)
	}
}

// client returns a control.Client pointed at the configured daemon.
func client() *control.Client {
	return control.NewClient(rootAddrFlag)
}

// Execute is the main entry point for bondctl's CLI interface.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
