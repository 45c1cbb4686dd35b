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

package udp

import (
	"fmt"
	"net"

	"github.com/jsimonetti/rtnetlink"
)

// ResolveBindIP resolves a NIC name to a bind IP (nothing in add_path
// calls it; a path binds the literal address it is given): it asks the kernel (via rtnetlink, the same dependency the teacher
// carries for link-state enumeration) for the named interface's link
// message and then reads its assigned addresses the ordinary way. The
// netlink round trip exists only to fail fast with a clear error when
// the interface does not exist; address enumeration itself uses the
// standard library, exactly as the teacher's own addIfaceIP/checkIP
// helpers do.
func ResolveBindIP(iface string, preferV6 bool) (net.IP, error) {
	conn, err := rtnetlink.Dial(nil)
	if err != nil {
		return nil, fmt.Errorf("udp: dialing rtnetlink: %w", err)
	}
	defer conn.Close()

	links, err := conn.Link.List()
	if err != nil {
		return nil, fmt.Errorf("udp: listing links: %w", err)
	}
	var found bool
	for _, l := range links {
		if l.Attributes != nil && l.Attributes.Name == iface {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("udp: interface %q not found", iface)
	}

	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("udp: %w", err)
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, fmt.Errorf("udp: reading addresses for %s: %w", iface, err)
	}
	var fallback net.IP
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		isV4 := ipNet.IP.To4() != nil
		if preferV6 && !isV4 {
			return ipNet.IP, nil
		}
		if !preferV6 && isV4 {
			return ipNet.IP, nil
		}
		fallback = ipNet.IP
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, fmt.Errorf("udp: interface %s has no usable address", iface)
}
