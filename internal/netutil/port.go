// Package netutil provides the small networking primitives the session
// depends on: free-port discovery and bounded condition polling.
package netutil

import (
	"fmt"
	"net"
)

// AvailableLocalPort returns a TCP port that was unbound at the time of the
// call. The kernel picks the port via a throwaway listener on port 0.
func AvailableLocalPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to probe for a free port: %w", err)
	}
	defer ln.Close()

	addr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected listener address type %T", ln.Addr())
	}
	return addr.Port, nil
}
