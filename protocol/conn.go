// File: protocol/conn.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-connection HTTP state machine over a raw non-blocking descriptor.

package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"net/netip"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/momentics/hioload-httpd/api"
	"golang.org/x/sys/unix"
)

// Conn implements api.Conn for one client socket. It is owned by one
// goroutine at a time and carries no lock.
type Conn struct {
	h    *Handler
	fd   int
	peer netip.AddrPort
	ctl  api.Controller

	rbuf []byte
	rlen int

	head      []byte
	body      []byte // read-only mapping, unmapped after the response
	iov       [][]byte
	keepAlive bool
}

var _ api.Conn = (*Conn)(nil)

// Init binds the connection to a freshly accepted descriptor.
func (c *Conn) Init(fd int, peer netip.AddrPort, ctl api.Controller) {
	c.fd = fd
	c.peer = peer
	c.ctl = ctl
	c.reset()
}

func (c *Conn) reset() {
	c.rlen = 0
	c.head = c.head[:0]
	c.unmap()
	c.iov = c.iov[:0]
	c.keepAlive = false
}

func (c *Conn) unmap() {
	if c.body != nil {
		_ = unix.Munmap(c.body)
		c.body = nil
	}
}

// Read drains the socket until it would block. EOF, a socket error or a
// full buffer without a complete header block returns false.
func (c *Conn) Read() bool {
	for {
		if c.rlen >= len(c.rbuf) {
			return headerComplete(c.rbuf[:c.rlen])
		}
		n, err := unix.Read(c.fd, c.rbuf[c.rlen:])
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return true
		case err != nil:
			c.h.log.Debug("read failed", "fd", c.fd, "error", fmt.Errorf("%w: %w", api.ErrConnectionIO, err))
			return false
		case n == 0:
			return false
		}
		c.rlen += n
	}
}

// Process parses the buffered request and prepares a response, then re-arms
// the descriptor for read (incomplete request) or write.
func (c *Conn) Process() {
	buf := c.rbuf[:c.rlen]
	if !headerComplete(buf) {
		c.rearm(api.InterestRead)
		return
	}
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(buf)))
	switch {
	case err != nil:
		c.h.log.Debug("malformed request", "fd", c.fd, "peer", c.peer, "error", err)
		c.respondError(http.StatusBadRequest, "GET")
	case req.Method != http.MethodGet:
		c.keepAlive = !req.Close
		c.respondError(http.StatusNotImplemented, req.Method)
	default:
		c.keepAlive = !req.Close
		c.serveFile(req)
	}
	c.rearm(api.InterestWrite)
}

var (
	crlfcrlf = []byte("\r\n\r\n")
	lflf     = []byte("\n\n")
)

// headerComplete reports whether buf holds a full request header block.
func headerComplete(buf []byte) bool {
	return bytes.Contains(buf, crlfcrlf) || bytes.Contains(buf, lflf)
}

func (c *Conn) rearm(in api.Interest) {
	if err := c.ctl.Rearm(c.fd, in); err != nil {
		c.h.log.Debug("rearm failed", "fd", c.fd, "error", err)
		c.ctl.Release(c.fd)
	}
}

func (c *Conn) serveFile(req *http.Request) {
	clean := path.Clean("/" + req.URL.Path)
	name := filepath.Join(c.h.root, filepath.FromSlash(clean))

	st, err := os.Stat(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.respondError(http.StatusNotFound, req.Method)
		return
	case err != nil:
		c.respondError(http.StatusForbidden, req.Method)
		return
	case st.IsDir():
		c.respondError(http.StatusBadRequest, req.Method)
		return
	case st.Mode().Perm()&0o004 == 0:
		c.respondError(http.StatusForbidden, req.Method)
		return
	case st.Size() > c.h.cfg.MaxFileSize:
		c.h.log.Warn("file exceeds max_file_size", "path", clean, "size", st.Size())
		c.respondError(http.StatusInternalServerError, req.Method)
		return
	}

	if st.Size() > 0 {
		body, err := mapFile(name, int(st.Size()))
		if err != nil {
			c.h.log.Debug("map failed", "path", clean, "error", err)
			c.respondError(http.StatusForbidden, req.Method)
			return
		}
		c.body = body
	}
	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	c.writeHead(http.StatusOK, ctype, len(c.body))
	c.iov = append(c.iov, c.head, c.body)
	c.h.metrics.RequestServed(req.Method, http.StatusOK)
	c.h.log.Debug("request", "fd", c.fd, "peer", c.peer, "method", req.Method, "path", clean, "status", http.StatusOK)
}

func mapFile(name string, size int) ([]byte, error) {
	fd, err := unix.Open(name, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	defer unix.Close(fd)
	return unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_PRIVATE)
}

func (c *Conn) respondError(status int, method string) {
	if status == http.StatusBadRequest {
		c.keepAlive = false
	}
	text := http.StatusText(status)
	body := text + "\n"
	c.writeHead(status, "text/plain; charset=utf-8", len(body))
	c.head = append(c.head, body...)
	c.iov = append(c.iov, c.head)
	c.h.metrics.RequestServed(method, status)
	c.h.log.Debug("request", "fd", c.fd, "peer", c.peer, "method", method, "status", status)
}

func (c *Conn) writeHead(status int, ctype string, length int) {
	h := c.head[:0]
	h = append(h, "HTTP/1.1 "...)
	h = strconv.AppendInt(h, int64(status), 10)
	h = append(h, ' ')
	h = append(h, http.StatusText(status)...)
	h = append(h, "\r\nContent-Type: "...)
	h = append(h, ctype...)
	h = append(h, "\r\nContent-Length: "...)
	h = strconv.AppendInt(h, int64(length), 10)
	if c.keepAlive {
		h = append(h, "\r\nConnection: keep-alive\r\n\r\n"...)
	} else {
		h = append(h, "\r\nConnection: close\r\n\r\n"...)
	}
	c.head = h
}

// Write flushes the pending response. It re-arms for write when the socket
// is full and for read once a keep-alive response is complete. False means
// the connection is done or broken.
func (c *Conn) Write() bool {
	for len(c.iov) > 0 {
		n, err := unix.Writev(c.fd, c.iov)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return c.ctl.Rearm(c.fd, api.InterestWrite) == nil
		case err != nil:
			c.h.log.Debug("write failed", "fd", c.fd, "error", fmt.Errorf("%w: %w", api.ErrConnectionIO, err))
			c.unmap()
			return false
		}
		c.advance(n)
	}

	c.unmap()
	if !c.keepAlive {
		return false
	}
	c.reset()
	return c.ctl.Rearm(c.fd, api.InterestRead) == nil
}

func (c *Conn) advance(n int) {
	for n > 0 && len(c.iov) > 0 {
		if n < len(c.iov[0]) {
			c.iov[0] = c.iov[0][n:]
			return
		}
		n -= len(c.iov[0])
		c.iov = c.iov[1:]
	}
	for len(c.iov) > 0 && len(c.iov[0]) == 0 {
		c.iov = c.iov[1:]
	}
}

// Close drops request state when the registry retires the slot.
func (c *Conn) Close() {
	c.reset()
	c.fd = -1
	c.ctl = nil
}

// Abort releases the descriptor when Process did not finish.
func (c *Conn) Abort() {
	if c.ctl != nil {
		c.ctl.Release(c.fd)
	}
}
