// Package testutil provides shared helpers for ren tests.
package testutil

import (
	"os"
	"testing"
)

// SkipIfNoNetwork skips the test if REN_TEST_SKIP_NETWORK is set.
// Use this for tests that listen on loopback TCP, which may not be
// available in sandboxed environments.
func SkipIfNoNetwork(t *testing.T) {
	t.Helper()
	if os.Getenv("REN_TEST_SKIP_NETWORK") != "" {
		t.Skip("skipping network test: REN_TEST_SKIP_NETWORK is set")
	}
}
