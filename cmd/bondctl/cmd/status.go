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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	version "github.com/hashicorp/go-version"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
	"golang.org/x/term"

	"github.com/bondwire/bond/control"
	"github.com/bondwire/bond/session"
	"github.com/bondwire/bond/telemetry"
)

var statusJSONFlag bool

func init() {
	RootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSONFlag, "json", false, "print the raw telemetry snapshot as JSON instead of a table")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the daemon's current telemetry snapshot",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		var snap telemetry.AggregateSnapshot
		if err := control.FetchSnapshot(rootAddrFlag, &snap); err != nil {
			log.Fatal(err)
		}

		if statusJSONFlag {
			js, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				log.Fatal(err)
			}
			fmt.Println(string(js))
			return
		}

		printSnapshot(snap)
	},
}

// stateColor returns the lifecycle state string colorized by how
// healthy that state is, the same traffic-light convention ptpcheck's
// diag command uses for OK/WARN/FAIL.
func stateColor(state string) string {
	switch state {
	case "live":
		return color.GreenString(state)
	case "warm", "probe":
		return color.BlueString(state)
	case "degrade", "cooldown":
		return color.YellowString(state)
	case "dead":
		return color.RedString(state)
	default:
		return state
	}
}

func printSnapshot(snap telemetry.AggregateSnapshot) {
	warnIfIncompatible(snap.ProtocolVersion)

	fmt.Printf(
		"session %d  role=%s  uptime=%s  alive=%d/%d  degradation=%s\n",
		snap.SessionID, snap.Role, time.Duration(snap.UptimeSeconds*float64(time.Second)).Round(time.Second),
		snap.AlivePaths, len(snap.Paths), snap.DegradationStage,
	)
	fmt.Printf(
		"pacing=%.0f bps  delivered=%.0f bps  acked=%d lost=%d late=%d  dup=%d restarts=%d\n",
		snap.TotalPacingBps, snap.TotalDeliveredBps, snap.Acked, snap.Lost, snap.Late,
		snap.DuplicatePackets, snap.RestartCount,
	)

	paths := append([]telemetry.PathSnapshot(nil), snap.Paths...)
	slices.SortFunc(paths, func(a, b telemetry.PathSnapshot) bool { return a.ID < b.ID })

	wide := terminalIsWide()
	table := tablewriter.NewWriter(os.Stdout)
	headers := []string{"id", "state", "rtt(ms)", "loss%", "pacing(bps)"}
	if wide {
		headers = []string{
			"id", "state", "rtt(ms)", "loss%", "bottleneck(bps)", "pacing(bps)", "phase", "weight", "repair%",
		}
	}
	table.SetHeader(headers)
	for _, p := range paths {
		row := []string{
			fmt.Sprintf("%d", p.ID),
			stateColor(p.State),
			fmt.Sprintf("%.1f", float64(p.SmoothedRTTMicros)/1000),
			fmt.Sprintf("%.2f", p.SmoothedLossSlow*100),
		}
		if wide {
			row = append(row, fmt.Sprintf("%.0f", p.BottleneckBwBps))
		}
		row = append(row, fmt.Sprintf("%.0f", p.PacingRateBps))
		if wide {
			row = append(row,
				p.CongestionPhase,
				fmt.Sprintf("%.2f", p.Weight),
				fmt.Sprintf("%.1f", p.RepairRatio*100),
			)
		}
		table.Append(row)
	}
	table.Render()
}

// narrowTableWidth is the terminal column count below which the status
// table drops its secondary columns (bottleneck, phase, weight,
// repair%) to avoid wrapping.
const narrowTableWidth = 100

// terminalIsWide reports whether stdout is a terminal wide enough for
// the full status table. Output redirected to a pipe or file (where
// term.GetSize errors) is treated as wide, matching how a script
// consuming bondctl's output wants the complete, fixed set of columns.
func terminalIsWide() bool {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return true
	}
	return w >= narrowTableWidth
}

// warnIfIncompatible compares the daemon's reported protocol version
// against this build's, so a version skew between bondctl and the
// daemon shows up before an operator mistakes a stale display for a
// live one.
func warnIfIncompatible(reported string) {
	peer, err := version.NewVersion(reported)
	if err != nil {
		log.WithError(err).Debug("bondctl: could not parse daemon protocol version")
		return
	}
	if peer.LessThan(session.MinPeerVersion) {
		log.Warnf("daemon protocol version %s is older than this bondctl's minimum %s", peer, session.MinPeerVersion)
	}
}
