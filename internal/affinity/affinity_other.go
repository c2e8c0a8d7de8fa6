//go:build !linux
// +build !linux

// File: internal/affinity/affinity_other.go
//
// Stub implementation for platforms without a pure-Go affinity syscall
// path, mirroring the teacher's affinity/affinity_stub.go.
package affinity

import "errors"

func pinPlatform(puID int) error {
	return errors.New("affinity: pinning not supported on this platform")
}
