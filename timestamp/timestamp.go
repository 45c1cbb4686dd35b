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

// Package timestamp holds the one piece of raw socket plumbing the
// transport/udp and dscp packages need but net.UDPConn doesn't expose:
// getting at the underlying file descriptor to apply socket options
// before the first packet goes out.
package timestamp

import "net"

// ConnFd returns the file descriptor backing conn. Callers must not
// retain it past the lifetime of conn; the kernel may reuse the number
// once conn is closed.
func ConnFd(conn *net.UDPConn) (int, error) {
	sc, err := conn.SyscallConn()
	if err != nil {
		return -1, err
	}
	var fd int
	err = sc.Control(func(rawFd uintptr) {
		fd = int(rawFd)
	})
	if err != nil {
		return -1, err
	}
	return fd, nil
}
