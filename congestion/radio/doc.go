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

// Package radio implements the optional congestion-model feed-forward
// hook: an AT-command poll loop over an attached modem's serial port,
// reading signal and channel quality and feeding a derived bandwidth
// ceiling into a congestion.RadioHook. No hardware is required for
// correctness; a session simply never attaches a poller and every
// controller behaves as pure BBR.
package radio
