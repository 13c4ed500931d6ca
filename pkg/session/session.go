// Package session provisions a short-lived file-backed HTTP server for a
// browser test: it allocates a port, spawns the file server executable over
// a set of local paths, tunnels the port through a forwarding backend,
// waits until the server accepts connections, and guarantees idempotent
// teardown of everything it spawned.
package session

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/webvisor/webvisor/internal/config"
	"github.com/webvisor/webvisor/internal/netutil"
	"github.com/webvisor/webvisor/internal/pathutil"
	"github.com/webvisor/webvisor/pkg/forward"
	"github.com/webvisor/webvisor/pkg/logger"
)

// Session owns one file server process and one forwarding channel. It is
// not safe for concurrent use by multiple goroutines, except that Close may
// race the finalizer backstop.
type Session struct {
	log *logger.Logger

	localPort int
	paths     []string
	baseDir   string
	urlBase   string

	serverCmd    []string
	readyTimeout time.Duration
	pollInterval time.Duration

	mu        sync.Mutex
	state     State
	cmd       *exec.Cmd
	devnull   *os.File
	forwarder forward.Forwarder
}

// Option adjusts session construction.
type Option func(*Session)

// WithServerCommand overrides the file server executable (and any leading
// arguments) the session spawns. The port and paths are appended.
func WithServerCommand(name string, args ...string) Option {
	return func(s *Session) {
		s.serverCmd = append([]string{name}, args...)
	}
}

// WithReadyTimeout overrides how long the readiness gate waits for the
// server to accept a TCP connection.
func WithReadyTimeout(d time.Duration) Option {
	return func(s *Session) { s.readyTimeout = d }
}

// WithPollInterval overrides the readiness poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) { s.pollInterval = d }
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log *logger.Logger) Option {
	return func(s *Session) { s.log = log }
}

// New validates paths, allocates a local port, spawns the file server over
// the paths, establishes a forwarder through backend, and blocks until the
// server accepts TCP connections. On any failure the partially constructed
// resources are released before the error is returned.
//
// The caller owns the session and must Close it; a finalizer releases the
// process and tunnel as a last resort if the session becomes unreachable
// unclosed.
func New(backend forward.Backend, paths []string, opts ...Option) (*Session, error) {
	defaults := config.DefaultConfig()

	s := &Session{
		log:          logger.NewTestLogger(),
		serverCmd:    []string{defaults.ServerCommand},
		readyTimeout: defaults.ReadyTimeout,
		pollInterval: defaults.PollInterval,
		state:        StateStarting,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Paths are validated before any port or process resource exists, so a
	// bad path leaves nothing to clean up.
	canonical, err := pathutil.Canonicalize(paths)
	if err != nil {
		s.state = StateClosed
		return nil, err
	}
	s.paths = canonical
	s.baseDir = pathutil.CommonBaseDir(canonical)

	port, err := netutil.AvailableLocalPort()
	if err != nil {
		s.state = StateClosed
		return nil, err
	}
	s.localPort = port

	if err := s.spawn(); err != nil {
		s.state = StateClosed
		return nil, err
	}

	if err := s.start(backend); err != nil {
		s.Close()
		return nil, err
	}

	s.mu.Lock()
	s.state = StateReady
	s.mu.Unlock()

	// Backstop only; tests and callers must not rely on finalizer timing.
	runtime.SetFinalizer(s, (*Session).finalize)

	s.log.Debug("session ready",
		zap.Int("port", s.localPort),
		zap.String("base_dir", s.baseDir),
		zap.String("url", s.urlBase))

	return s, nil
}

// spawn launches the server process bound to the session's port, working
// directory set to the base directory, output discarded.
func (s *Session) spawn() error {
	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", os.DevNull, err)
	}

	name, err := s.resolveServerCommand()
	if err != nil {
		devnull.Close()
		return &SpawnError{Command: s.serverCmd[0], Err: err}
	}

	args := append([]string{}, s.serverCmd[1:]...)
	args = append(args, strconv.Itoa(s.localPort))
	args = append(args, s.paths...)

	cmd := exec.Command(name, args...)
	cmd.Dir = s.baseDir
	cmd.Env = environWithDir(ownDir())
	cmd.Stdout = devnull
	cmd.Stderr = devnull

	if err := cmd.Start(); err != nil {
		devnull.Close()
		return &SpawnError{Command: name, Err: err}
	}

	s.mu.Lock()
	s.cmd = cmd
	s.devnull = devnull
	s.mu.Unlock()

	s.log.Debug("server spawned",
		zap.String("command", name),
		zap.Int("pid", cmd.Process.Pid),
		zap.Int("port", s.localPort))

	return nil
}

// start creates the forwarder and runs the readiness gate.
func (s *Session) start(backend forward.Backend) error {
	remote, err := backend.RemotePort(s.localPort)
	if err != nil {
		return err
	}
	fwd, err := backend.CreateForwarder(forward.PortPair{Local: s.localPort, Remote: remote})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.forwarder = fwd
	s.urlBase = fwd.URL()
	s.mu.Unlock()

	addr := net.JoinHostPort("localhost", strconv.Itoa(s.localPort))
	err = netutil.WaitFor(func() bool {
		conn, err := net.DialTimeout("tcp", addr, s.pollInterval)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, s.readyTimeout, s.pollInterval)
	if err != nil {
		return &NotReadyError{Port: s.localPort, Timeout: s.readyTimeout}
	}
	return nil
}

// resolveServerCommand locates the server executable. A bare name is looked
// up first next to the running executable, then on PATH.
func (s *Session) resolveServerCommand() (string, error) {
	name := s.serverCmd[0]
	if strings.ContainsRune(name, os.PathSeparator) {
		return name, nil
	}

	if dir := ownDir(); dir != "" {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return exec.LookPath(name)
}

// ownDir returns the directory of the running executable, or empty.
func ownDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(exe)
}

// environWithDir returns the parent environment with dir prepended to PATH,
// so the spawned server resolves helpers installed beside this executable.
func environWithDir(dir string) []string {
	env := os.Environ()
	if dir == "" {
		return env
	}
	for i, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			env[i] = "PATH=" + dir + string(os.PathListSeparator) + kv[len("PATH="):]
			return env
		}
	}
	return append(env, "PATH="+dir)
}

// Paths returns the canonical served paths.
func (s *Session) Paths() []string {
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

// BaseDir returns the directory URLs are computed against.
func (s *Session) BaseDir() string { return s.baseDir }

// LocalPort returns the port the server bound locally.
func (s *Session) LocalPort() int { return s.localPort }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// URL returns the externally reachable base URL. Valid only once New has
// returned successfully.
func (s *Session) URL() string { return s.urlBase }

// URLOf computes the absolute URL for a path at or beneath the served
// paths. A trailing path separator survives as a trailing slash, since it
// is meaningful in a URL. Paths outside the base directory are not guarded.
func (s *Session) URLOf(path string) (string, error) {
	rel, err := filepath.Rel(s.baseDir, path)
	if err != nil {
		return "", fmt.Errorf("failed to relativize %s: %w", path, err)
	}

	rel = filepath.ToSlash(rel)
	if hasTrailingSeparator(path) && !strings.HasSuffix(rel, "/") {
		rel += "/"
	}

	base, err := url.Parse(s.urlBase)
	if err != nil {
		return "", fmt.Errorf("invalid base url %s: %w", s.urlBase, err)
	}
	ref, err := url.Parse(rel)
	if err != nil {
		return "", fmt.Errorf("invalid relative path %s: %w", rel, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func hasTrailingSeparator(path string) bool {
	if strings.HasSuffix(path, "/") {
		return true
	}
	return os.PathSeparator != '/' && strings.HasSuffix(path, string(os.PathSeparator))
}

// Close releases the forwarder, then the server process, then the output
// sink. It is idempotent and never fails; release errors are suppressed
// because teardown also runs during unwinding and finalization.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	runtime.SetFinalizer(s, nil)

	if s.forwarder != nil {
		if err := s.forwarder.Close(); err != nil {
			s.log.Debug("forwarder close failed", zap.Error(err))
		}
		s.forwarder = nil
	}

	if s.cmd != nil {
		// Forced termination: the server never exits on its own and a
		// graceful signal could block teardown.
		if err := s.cmd.Process.Kill(); err != nil {
			s.log.Debug("server kill failed", zap.Error(err))
		}
		s.cmd.Wait()
		s.cmd = nil
	}

	if s.devnull != nil {
		s.devnull.Close()
		s.devnull = nil
	}

	s.log.Debug("session closed", zap.Int("port", s.localPort))
	return nil
}

func (s *Session) finalize() {
	s.Close()
}
