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

// Package dscp sets the DSCP/traffic-class marking on a path's UDP
// socket, exported for transport/udp so every path can carry its own
// operator-configured marking (cellular uplinks and satellite links
// typically want different markings from wired Ethernet).
package dscp

import (
	"net"

	"golang.org/x/sys/unix"
)

// Enable marks outgoing packets on fd with the given DSCP value
// (0-63), choosing the IPv4 TOS or IPv6 traffic-class sockopt depending
// on whether localAddr is an IPv4 or IPv6 address.
func Enable(fd int, localAddr net.IP, dscpValue int) error {
	if localAddr.To4() == nil {
		return unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_TCLASS, dscpValue<<2)
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_TOS, dscpValue<<2)
}
