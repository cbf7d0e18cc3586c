package shedconfig

import (
	"sync"

	"github.com/hashicorp/hcl/v2"
)

var locks = sync.Map{}

// getContextLock ensures that a HCL evaluation context is not written and
// read at the same time. The returned function releases the lock.
func getContextLock(ctx *hcl.EvalContext) func() {
	var lock any
	var ok bool

	lock, ok = locks.Load(ctx)

	// lazy instantiate the lock
	if !ok {
		lock = &sync.Mutex{}

		locks.Store(ctx, lock)
	}

	// obtain a lock
	lock.(*sync.Mutex).Lock()

	// return a function to allow unlocking
	return func() {
		lock.(*sync.Mutex).Unlock()
	}
}

// withContextLock runs the given function while holding the lock for the
// context
func withContextLock(ctx *hcl.EvalContext, fn func()) {
	ul := getContextLock(ctx)
	defer ul()

	fn()
}
