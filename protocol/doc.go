// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Minimal HTTP/1.1 static file collaborator driven by the reactor. Only GET
// is served; responses are written with writev straight from a read-only
// mapping of the file. Request pipelining is not supported: bytes following a
// complete request are discarded when the connection is kept alive.

package protocol
