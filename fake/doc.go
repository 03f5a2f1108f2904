// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the poller, listener,
// connection and controller contracts of package api.

package fake
