//go:build e2e

package e2e

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

// serverBinary is the freshly built webvisor-server all tests spawn.
var serverBinary string

func TestMain(m *testing.M) {
	buildDir, err := os.MkdirTemp("", "webvisor-e2e")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create build dir: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(buildDir)

	serverBinary = filepath.Join(buildDir, "webvisor-server")
	build := exec.Command("go", "build", "-o", serverBinary, "github.com/webvisor/webvisor/cmd/webvisor-server")
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to build webvisor-server: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	// Safety net for test failures/panics where defer browser.Close()
	// didn't run.
	cleanupOrphanedBrowsers()

	os.Exit(code)
}

// cleanupOrphanedBrowsers attempts to kill Chrome processes left behind by
// failed tests. Best-effort; non-zero exits mean nothing matched.
func cleanupOrphanedBrowsers() {
	switch runtime.GOOS {
	case "darwin", "linux":
		_ = exec.Command("pkill", "-f", "chromium|chrome").Run()
	case "windows":
		_ = exec.Command("taskkill", "/F", "/IM", "chrome.exe").Run()
		_ = exec.Command("taskkill", "/F", "/IM", "chromium.exe").Run()
	}
}
