// Package forward abstracts how a browser's execution context reaches a
// locally bound server port. A Backend knows which port the browser side
// should target and can set up a Forwarder carrying traffic to the local
// port, possibly across process, network, or sandbox boundaries.
package forward

// PortPair names the two ends of a forwarding channel: the port the server
// bound locally and the port visible from the browser's context.
type PortPair struct {
	Local  int
	Remote int
}

// Forwarder is an established forwarding channel. URL is the externally
// reachable base endpoint; it always carries a trailing slash so relative
// references resolve beneath it.
type Forwarder interface {
	URL() string
	Close() error
}

// Backend creates forwarders for a browser execution context.
type Backend interface {
	// RemotePort maps a local port to the port the browser-side context
	// should target. For a co-located browser this is the local port itself.
	RemotePort(localPort int) (int, error)

	// CreateForwarder establishes the channel for the given pair. The
	// returned forwarder is exclusively owned by the caller.
	CreateForwarder(pair PortPair) (Forwarder, error)
}
