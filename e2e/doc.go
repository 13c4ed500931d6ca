//go:build e2e

// Package e2e provides end-to-end tests for webvisor.
//
// These tests are isolated from the standard test suite via build tags.
// They require a Chrome browser (auto-downloaded by Rod if not present)
// and the Go toolchain, which TestMain uses to build the real
// webvisor-server binary the sessions spawn.
//
// Running E2E tests:
//
//	go test -tags=e2e ./e2e/...
//
// Running all tests except E2E:
//
//	go test ./...
//
// Test isolation:
// Each test provisions its own session on a random port and drives its own
// browser page, so tests can run in parallel.
package e2e
