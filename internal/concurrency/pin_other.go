//go:build !linux

// File: internal/concurrency/pin_other.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package concurrency

import "runtime"

// PinCurrentThread is not available on this platform.
func PinCurrentThread(cpu int) error {
	return ErrAffinityNotSupported
}

// NumCPUs returns the number of logical CPUs.
func NumCPUs() int {
	return runtime.NumCPU()
}

// AllowedCPUs lists every logical CPU.
func AllowedCPUs() []int {
	cpus := make([]int, runtime.NumCPU())
	for i := range cpus {
		cpus[i] = i
	}
	return cpus
}
