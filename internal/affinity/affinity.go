// Package affinity provides the platform-neutral API for pinning the
// calling OS thread to a PU index. Platform-specific implementations
// live in separate build-tag-guarded files (affinity_linux.go,
// affinity_other.go), mirroring the teacher's affinity/affinity.go
// dispatch shape. Unlike the teacher, the Linux implementation here
// uses golang.org/x/sys/unix's pure-Go Sched_setaffinity rather than
// cgo's pthread_setaffinity_np — see DESIGN.md for why cgo was dropped.
//
// Author: heterosched contributors
// License: Apache-2.0
package affinity

import (
	"runtime"

	"github.com/arcana-lab/heterosched/internal/errs"
)

// Pin locks the calling goroutine to its current OS thread and pins
// that thread to the given PU index (interpreted as an OS cpuset
// index, matching spec.md's pu_id <-> cpuset-index contract). Returns
// errs.ErrAffinityFailure if the OS refuses.
func Pin(puID int) error {
	runtime.LockOSThread()
	if err := pinPlatform(puID); err != nil {
		return errs.AffinityFailure(puID, err)
	}
	return nil
}

// Unpin releases the calling goroutine's OS thread lock. It does not
// attempt to clear any affinity mask the OS applied.
func Unpin() {
	runtime.UnlockOSThread()
}
