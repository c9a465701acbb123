package main

import (
	"sync"

	"github.com/nodemesh/kmesh/core"
)

var (
	handle     *core.Handle
	handleOnce sync.Once
)

// getHandle lazily creates the process-wide demonstration handle, mirroring
// cmd/cli's connPool/cpOnce pattern for other long-lived resources.
func getHandle() *core.Handle {
	handleOnce.Do(func() {
		handle = core.HandleNew(1, core.LogErr, 0)
	})
	return handle
}
