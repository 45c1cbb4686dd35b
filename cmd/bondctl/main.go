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

// Command bondctl is the operator CLI for a running bond-sender or
// bond-receiver daemon: it drives the same control.Handler endpoint the
// daemons mount alongside their telemetry, over HTTP rather than an
// in-process channel.
package main

import "github.com/bondwire/bond/cmd/bondctl/cmd"

func main() {
	cmd.Execute()
}
