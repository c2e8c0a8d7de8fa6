// Package runtimelog is the single stderr logger shared by the thread
// pool and the scheduler. It mirrors the
// teacher repo's own convention across core/concurrency, pool, and
// affinity: plain log.Printf, no structured logging library.
//
// Author: heterosched contributors
// License: Apache-2.0
package runtimelog

import (
	"log"
	"os"
)

// L is the package-level logger. Tests may redirect its output via
// SetOutput.
var L = log.New(os.Stderr, "heterosched: ", log.LstdFlags|log.Lmicroseconds)
