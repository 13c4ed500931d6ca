package forward

import (
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/webvisor/webvisor/internal/netutil"
	"github.com/webvisor/webvisor/pkg/logger"
)

// RelayBackend reaches the server through an actual TCP relay: the browser
// side targets a distinct remote port and every accepted connection is
// proxied to the local port. This is the backend for browsers that cannot
// address the server's port directly (containers, sandboxes, port-remapped
// environments).
type RelayBackend struct {
	host string
	log  *logger.Logger
}

// NewRelayBackend creates a relaying backend. An empty host defaults to
// 127.0.0.1.
func NewRelayBackend(host string, log *logger.Logger) *RelayBackend {
	if host == "" {
		host = "127.0.0.1"
	}
	if log == nil {
		log = logger.NewTestLogger()
	}
	return &RelayBackend{host: host, log: log}
}

// RemotePort implements Backend. The relay listens on its own
// backend-chosen port, never on the server's.
func (b *RelayBackend) RemotePort(localPort int) (int, error) {
	return netutil.AvailableLocalPort()
}

// CreateForwarder implements Backend. It binds the remote port immediately;
// relaying runs until the forwarder is closed.
func (b *RelayBackend) CreateForwarder(pair PortPair) (Forwarder, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", b.host, pair.Remote))
	if err != nil {
		return nil, fmt.Errorf("failed to bind relay port %d: %w", pair.Remote, err)
	}

	f := &tcpForwarder{
		url:      fmt.Sprintf("http://%s:%d/", b.host, pair.Remote),
		target:   fmt.Sprintf("127.0.0.1:%d", pair.Local),
		listener: ln,
		log:      b.log,
		conns:    make(map[net.Conn]struct{}),
	}
	go f.acceptLoop()

	b.log.Debug("relay forwarder established",
		zap.Int("local_port", pair.Local),
		zap.Int("remote_port", pair.Remote))

	return f, nil
}

// tcpForwarder relays byte streams from its listener to the target address.
type tcpForwarder struct {
	url      string
	target   string
	listener net.Listener
	log      *logger.Logger

	mu     sync.Mutex
	closed bool
	conns  map[net.Conn]struct{}
}

func (f *tcpForwarder) URL() string { return f.url }

func (f *tcpForwarder) acceptLoop() {
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			// Listener closed; the forwarder is done.
			return
		}
		if !f.track(conn) {
			conn.Close()
			return
		}
		go f.relay(conn)
	}
}

func (f *tcpForwarder) track(conn net.Conn) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.conns[conn] = struct{}{}
	return true
}

func (f *tcpForwarder) untrack(conn net.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.conns, conn)
}

func (f *tcpForwarder) relay(browser net.Conn) {
	defer f.untrack(browser)
	defer browser.Close()

	server, err := net.Dial("tcp", f.target)
	if err != nil {
		f.log.Debug("relay dial failed", zap.String("target", f.target), zap.Error(err))
		return
	}
	if !f.track(server) {
		server.Close()
		return
	}
	defer f.untrack(server)
	defer server.Close()

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(server, browser)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(browser, server)
		done <- struct{}{}
	}()

	// Either direction ending tears the pair down; the deferred closes
	// unblock the other copy.
	<-done
}

// Close implements Forwarder. It stops the listener and severs any relays
// still in flight. Safe to call more than once.
func (f *tcpForwarder) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	open := make([]net.Conn, 0, len(f.conns))
	for c := range f.conns {
		open = append(open, c)
	}
	f.conns = make(map[net.Conn]struct{})
	f.mu.Unlock()

	err := f.listener.Close()
	for _, c := range open {
		c.Close()
	}
	return err
}
