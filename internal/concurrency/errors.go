// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error definitions for concurrency module.

package concurrency

import (
	"errors"

	"github.com/momentics/hioload-httpd/api"
)

var (
	// ErrResourceInit indicates a primitive could not be constructed
	ErrResourceInit = api.ErrResourceInit

	// ErrInvalidConfig indicates non-positive pool sizing
	ErrInvalidConfig = api.ErrInvalidConfig

	// ErrSpawn indicates a worker failed to start
	ErrSpawn = errors.New("worker spawn failed")

	// ErrAffinityNotSupported indicates CPU affinity is not supported on this platform
	ErrAffinityNotSupported = errors.New("CPU affinity not supported")
)
