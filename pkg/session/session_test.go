package session

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webvisor/webvisor/pkg/forward"
	"github.com/webvisor/webvisor/pkg/logger"
)

// TestHelperProcess stands in for the webvisor-server executable. It is
// re-executed by tests through the session's server command; it serves its
// working directory, which the session sets to the base directory.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	if len(args) == 0 {
		os.Exit(2)
	}

	if os.Getenv("WEBVISOR_HELPER_MODE") == "deaf" {
		// Never binds the port; construction must hit the readiness timeout.
		time.Sleep(time.Minute)
		return
	}

	ln, err := net.Listen("tcp", "127.0.0.1:"+args[0])
	if err != nil {
		os.Exit(1)
	}
	http.Serve(ln, http.FileServer(http.Dir(".")))
}

// helperOptions makes New spawn this test binary in helper mode, with a
// short readiness budget so failure tests stay fast.
func helperOptions(t *testing.T, extra ...Option) []Option {
	t.Helper()
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")

	opts := []Option{
		WithServerCommand(os.Args[0], "-test.run=TestHelperProcess", "--"),
		WithReadyTimeout(5 * time.Second),
		WithPollInterval(20 * time.Millisecond),
		WithLogger(logger.NewTestLoggerWithT(t)),
	}
	return append(opts, extra...)
}

// fixtureDir builds a served tree: <dir>/x, <dir>/y, <dir>/sub/z. The
// directory is symlink-resolved so expectations match canonical paths.
func fixtureDir(t *testing.T) (dir, x, y string) {
	t.Helper()
	dir = t.TempDir()
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	dir = resolved
	x = filepath.Join(dir, "x")
	y = filepath.Join(dir, "y")
	require.NoError(t, os.WriteFile(x, []byte("contents of x"), 0644))
	require.NoError(t, os.WriteFile(y, []byte("contents of y"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "z"), []byte("z"), 0644))
	return dir, x, y
}

// recordingBackend counts collaborator calls and hands out recording
// forwarders.
type recordingBackend struct {
	remoteCalls int
	createCalls int
	forwarder   *recordingForwarder
}

func (b *recordingBackend) RemotePort(localPort int) (int, error) {
	b.remoteCalls++
	return localPort, nil
}

func (b *recordingBackend) CreateForwarder(pair forward.PortPair) (forward.Forwarder, error) {
	b.createCalls++
	b.forwarder = &recordingForwarder{
		url: fmt.Sprintf("http://127.0.0.1:%d/", pair.Remote),
	}
	return b.forwarder, nil
}

type recordingForwarder struct {
	url    string
	closes int
}

func (f *recordingForwarder) URL() string { return f.url }

func (f *recordingForwarder) Close() error {
	f.closes++
	return nil
}

func fetch(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestNew_ServesFiles(t *testing.T) {
	_, x, y := fixtureDir(t)

	sess, err := New(forward.NewDirectBackend(""), []string{x, y}, helperOptions(t)...)
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, StateReady, sess.State())
	assert.True(t, sess.LocalPort() > 0)
	require.NotEmpty(t, sess.URL())

	urlOfX, err := sess.URLOf(x)
	require.NoError(t, err)
	code, body := fetch(t, urlOfX)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "contents of x", body)
}

func TestNew_BaseDirOfSiblings(t *testing.T) {
	dir, x, y := fixtureDir(t)

	sess, err := New(forward.NewDirectBackend(""), []string{x, y}, helperOptions(t)...)
	require.NoError(t, err)
	defer sess.Close()

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, resolved, sess.BaseDir())

	urlOfX, err := sess.URLOf(filepath.Join(resolved, "x"))
	require.NoError(t, err)
	assert.Equal(t, sess.URL()+"x", urlOfX)
}

func TestNew_SingleDirectoryBasesAtParent(t *testing.T) {
	dir, _, _ := fixtureDir(t)

	sess, err := New(forward.NewDirectBackend(""), []string{dir}, helperOptions(t)...)
	require.NoError(t, err)
	defer sess.Close()

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(resolved), sess.BaseDir())

	urlOfDir, err := sess.URLOf(resolved + "/")
	require.NoError(t, err)
	assert.Equal(t, sess.URL()+filepath.Base(resolved)+"/", urlOfDir)
}

func TestURLOf_TrailingSlash(t *testing.T) {
	dir, x, y := fixtureDir(t)

	sess, err := New(forward.NewDirectBackend(""), []string{x, y}, helperOptions(t)...)
	require.NoError(t, err)
	defer sess.Close()

	sub := filepath.Join(dir, "sub")

	withSlash, err := sess.URLOf(sub + "/")
	require.NoError(t, err)
	assert.True(t, len(withSlash) > 0 && withSlash[len(withSlash)-1] == '/',
		"trailing separator must survive: %q", withSlash)

	withoutSlash, err := sess.URLOf(sub)
	require.NoError(t, err)
	assert.False(t, withoutSlash[len(withoutSlash)-1] == '/',
		"no trailing slash expected: %q", withoutSlash)
	assert.Equal(t, withoutSlash+"/", withSlash)
}

func TestNew_MissingPathNeverTouchesCollaborators(t *testing.T) {
	backend := &recordingBackend{}
	missing := filepath.Join(t.TempDir(), "absent")

	sess, err := New(backend, []string{missing}, helperOptions(t)...)
	require.Error(t, err)
	assert.Nil(t, sess)

	var notFound *PathNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, missing, notFound.Path)

	assert.Zero(t, backend.remoteCalls, "backend must not be consulted")
	assert.Zero(t, backend.createCalls, "no forwarder may be created")
}

func TestNew_SpawnFailure(t *testing.T) {
	_, x, _ := fixtureDir(t)
	backend := &recordingBackend{}

	_, err := New(backend, []string{x},
		WithServerCommand(filepath.Join(t.TempDir(), "no-such-server")),
		WithLogger(logger.NewTestLoggerWithT(t)))
	require.Error(t, err)

	var spawn *SpawnError
	require.True(t, errors.As(err, &spawn))
	assert.Zero(t, backend.createCalls, "spawn failure must precede forwarding")
}

func TestNew_ReadinessTimeoutClosesForwarder(t *testing.T) {
	_, x, _ := fixtureDir(t)
	t.Setenv("WEBVISOR_HELPER_MODE", "deaf")
	backend := &recordingBackend{}

	_, err := New(backend, []string{x}, helperOptions(t,
		WithReadyTimeout(300*time.Millisecond),
		WithPollInterval(20*time.Millisecond))...)
	require.Error(t, err)

	var notReady *NotReadyError
	require.True(t, errors.As(err, &notReady))
	assert.Equal(t, 300*time.Millisecond, notReady.Timeout)

	require.NotNil(t, backend.forwarder)
	assert.Equal(t, 1, backend.forwarder.closes, "partial construction must release the forwarder")
}

func TestClose_Idempotent(t *testing.T) {
	_, x, _ := fixtureDir(t)
	backend := &recordingBackend{}

	sess, err := New(backend, []string{x}, helperOptions(t)...)
	require.NoError(t, err)

	port := sess.LocalPort()
	for i := 0; i < 3; i++ {
		assert.NoError(t, sess.Close())
	}
	assert.Equal(t, StateClosed, sess.State())
	assert.Equal(t, 1, backend.forwarder.closes, "repeated Close must not re-release the forwarder")

	// The port must come free again once the server is gone.
	assert.Eventually(t, func() bool {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return false
		}
		ln.Close()
		return true
	}, 5*time.Second, 50*time.Millisecond)
}

func TestSequentialSessions_DistinctPorts(t *testing.T) {
	_, x, y := fixtureDir(t)

	first, err := New(forward.NewDirectBackend(""), []string{x, y}, helperOptions(t)...)
	require.NoError(t, err)
	defer first.Close()

	second, err := New(forward.NewDirectBackend(""), []string{x, y}, helperOptions(t)...)
	require.NoError(t, err)
	defer second.Close()

	assert.NotEqual(t, first.LocalPort(), second.LocalPort())

	urlFirst, err := first.URLOf(x)
	require.NoError(t, err)
	urlSecond, err := second.URLOf(y)
	require.NoError(t, err)

	code, body := fetch(t, urlFirst)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "contents of x", body)

	code, body = fetch(t, urlSecond)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "contents of y", body)
}

func TestSession_RelayBackend(t *testing.T) {
	_, x, _ := fixtureDir(t)

	backend := forward.NewRelayBackend("", logger.NewTestLoggerWithT(t))
	sess, err := New(backend, []string{x}, helperOptions(t)...)
	require.NoError(t, err)
	defer sess.Close()

	urlOfX, err := sess.URLOf(x)
	require.NoError(t, err)
	code, body := fetch(t, urlOfX)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "contents of x", body)
}

func TestPaths_ReturnsCopy(t *testing.T) {
	_, x, y := fixtureDir(t)

	sess, err := New(forward.NewDirectBackend(""), []string{x, y, x}, helperOptions(t)...)
	require.NoError(t, err)
	defer sess.Close()

	paths := sess.Paths()
	require.Len(t, paths, 2, "duplicates must collapse")
	paths[0] = "mutated"
	assert.NotEqual(t, "mutated", sess.Paths()[0])
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateUninitialized, "uninitialized"},
		{StateStarting, "starting"},
		{StateReady, "ready"},
		{StateClosed, "closed"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.String())
		})
	}
}
