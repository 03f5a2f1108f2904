// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp implements the raw non-blocking TCP listening socket used by
// the reactor. Accepted descriptors are non-blocking and close-on-exec.
package tcp
