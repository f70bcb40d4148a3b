package app

import (
	"os"
	"sync"
	"sync/atomic"
)

const testModeEnv = "STOCKCORE_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	testModeFlag.Store(os.Getenv(testModeEnv) == "1")
}

// InTestMode reports whether the binaries should skip startup side effects
// (connections, servers). Set STOCKCORE_TEST_MODE=1 in test environments.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads the flag after the environment changes.
func RefreshTestMode() {
	detectTestMode()
}
