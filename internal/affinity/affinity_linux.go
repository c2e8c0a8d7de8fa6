//go:build linux
// +build linux

// File: internal/affinity/affinity_linux.go
//
// Linux pinning via golang.org/x/sys/unix's pure-Go Sched_setaffinity,
// replacing the teacher's cgo pthread_setaffinity_np call
// (affinity/affinity_linux.go) with the equivalent syscall wrapper the
// same dependency already exercises elsewhere in the teacher
// (reactor/reactor_linux.go's unix.Epoll* calls).
package affinity

import "golang.org/x/sys/unix"

func pinPlatform(puID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(puID)
	// pid 0 means "the calling thread" under sched_setaffinity(2).
	return unix.SchedSetaffinity(0, &set)
}
