//go:build e2e

package e2e

import (
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// browserClient wraps Rod with a headless Chrome suitable for CI
// containers.
type browserClient struct {
	browser *rod.Browser
	timeout time.Duration
}

func newBrowserClient() (*browserClient, error) {
	l := launcher.New().
		Headless(true).
		Set("no-sandbox").
		Set("disable-gpu")

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch Chrome: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to Chrome: %w", err)
	}

	return &browserClient{browser: browser, timeout: 30 * time.Second}, nil
}

// open navigates a fresh page to url and waits for it to load.
func (c *browserClient) open(url string) (*rod.Page, error) {
	page := c.browser.MustPage()

	if err := page.Timeout(c.timeout).Navigate(url); err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.Timeout(c.timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("page never loaded: %w", err)
	}
	page.CancelTimeout()
	return page, nil
}

// close cleans up browser resources. Always call this (via defer) to
// prevent orphaned Chrome processes.
func (c *browserClient) close() error {
	if c.browser != nil {
		return c.browser.Close()
	}
	return nil
}
