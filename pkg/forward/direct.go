package forward

import "fmt"

// DirectBackend serves a browser running on the same host and network
// namespace as the server. No tunnel is needed: the remote port equals the
// local port and the forwarder is a plain handle around the local URL.
type DirectBackend struct {
	host string
}

// NewDirectBackend creates a backend for a co-located browser. An empty
// host defaults to 127.0.0.1.
func NewDirectBackend(host string) *DirectBackend {
	if host == "" {
		host = "127.0.0.1"
	}
	return &DirectBackend{host: host}
}

// RemotePort implements Backend.
func (b *DirectBackend) RemotePort(localPort int) (int, error) {
	return localPort, nil
}

// CreateForwarder implements Backend.
func (b *DirectBackend) CreateForwarder(pair PortPair) (Forwarder, error) {
	return &directForwarder{
		url: fmt.Sprintf("http://%s:%d/", b.host, pair.Remote),
	}, nil
}

type directForwarder struct {
	url string
}

func (f *directForwarder) URL() string { return f.url }

// Close implements Forwarder. There is no channel state to release.
func (f *directForwarder) Close() error { return nil }
