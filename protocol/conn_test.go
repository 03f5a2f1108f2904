//go:build linux

package protocol_test

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/fake"
	"github.com/momentics/hioload-httpd/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

var peer = netip.MustParseAddrPort("127.0.0.1:5555")

type statusRecorder struct {
	statuses []int
}

func (r *statusRecorder) RequestServed(_ string, status int) {
	r.statuses = append(r.statuses, status)
}

type fixture struct {
	conn    *protocol.Conn
	ctl     *fake.Controller
	client  *os.File
	reader  *bufio.Reader
	root    string
	metrics *statusRecorder
}

func newFixture(t *testing.T, cfg protocol.Config) *fixture {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>hello</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "empty.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.txt"), []byte("nope"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0o755))

	rec := &statusRecorder{}
	cfg.DocRoot = root
	cfg.Metrics = rec
	h, err := protocol.NewHandler(cfg)
	require.NoError(t, err)

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	client := os.NewFile(uintptr(fds[1]), "client")
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = client.Close()
	})

	ctl := &fake.Controller{}
	c := h.NewConn()
	c.Init(fds[0], peer, ctl)
	return &fixture{conn: c, ctl: ctl, client: client, reader: bufio.NewReader(client), root: root, metrics: rec}
}

func (f *fixture) send(t *testing.T, raw string) {
	t.Helper()
	_, err := f.client.Write([]byte(raw))
	require.NoError(t, err)
}

// roundTrip pushes one request through Read, Process and Write and returns
// the parsed response.
func (f *fixture) roundTrip(t *testing.T, raw string) (*http.Response, string) {
	t.Helper()
	f.send(t, raw)
	require.True(t, f.conn.Read())
	f.conn.Process()
	require.Equal(t, api.InterestWrite, last(f.ctl.Rearms()))
	f.conn.Write()

	resp, err := http.ReadResponse(f.reader, nil)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, string(body)
}

func last(in []api.Interest) api.Interest {
	if len(in) == 0 {
		return 0
	}
	return in[len(in)-1]
}

func TestNewHandlerValidation(t *testing.T) {
	_, err := protocol.NewHandler(protocol.Config{})
	assert.ErrorIs(t, err, api.ErrInvalidConfig)

	_, err = protocol.NewHandler(protocol.Config{DocRoot: filepath.Join(t.TempDir(), "missing")})
	assert.ErrorIs(t, err, api.ErrInvalidConfig)

	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = protocol.NewHandler(protocol.Config{DocRoot: file})
	assert.ErrorIs(t, err, api.ErrInvalidConfig)
}

func TestServeFileKeepAlive(t *testing.T) {
	f := newFixture(t, protocol.Config{})

	resp, body := f.roundTrip(t, "GET /index.html HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<h1>hello</h1>", body)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, api.InterestRead, last(f.ctl.Rearms()), "keep-alive re-arms for read")

	// The connection is reusable.
	resp, _ = f.roundTrip(t, "GET /empty.txt HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, resp.ContentLength)
	assert.Equal(t, []int{200, 200}, f.metrics.statuses)
}

func TestConnectionClose(t *testing.T) {
	f := newFixture(t, protocol.Config{})
	f.send(t, "GET /index.html HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
	require.True(t, f.conn.Read())
	f.conn.Process()
	assert.False(t, f.conn.Write(), "a finished non keep-alive response closes")

	resp, err := http.ReadResponse(f.reader, nil)
	require.NoError(t, err)
	// net/http folds the Connection: close header into resp.Close
	assert.True(t, resp.Close)
}

func TestHTTP10ClosesByDefault(t *testing.T) {
	f := newFixture(t, protocol.Config{})
	f.send(t, "GET /index.html HTTP/1.0\r\n\r\n")
	require.True(t, f.conn.Read())
	f.conn.Process()
	assert.False(t, f.conn.Write())
}

func TestErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		req    string
		status int
	}{
		{"missing", "GET /nope.html HTTP/1.1\r\nHost: x\r\n\r\n", http.StatusNotFound},
		{"escape is confined to root", "GET /../../etc/passwd HTTP/1.1\r\nHost: x\r\n\r\n", http.StatusNotFound},
		{"not world readable", "GET /secret.txt HTTP/1.1\r\nHost: x\r\n\r\n", http.StatusForbidden},
		{"directory", "GET /dir HTTP/1.1\r\nHost: x\r\n\r\n", http.StatusBadRequest},
		{"method", "POST /index.html HTTP/1.1\r\nHost: x\r\nContent-Length: 0\r\n\r\n", http.StatusNotImplemented},
		{"malformed", "BLAH\r\n\r\n", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, protocol.Config{})
			resp, body := f.roundTrip(t, tt.req)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, http.StatusText(tt.status)+"\n", body)
			assert.Equal(t, []int{tt.status}, f.metrics.statuses)
		})
	}
}

func TestFileTooLarge(t *testing.T) {
	f := newFixture(t, protocol.Config{MaxFileSize: 4})
	resp, _ := f.roundTrip(t, "GET /index.html HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestIncompleteRequestRearmsRead(t *testing.T) {
	f := newFixture(t, protocol.Config{})

	f.send(t, "GET /index.html HT")
	require.True(t, f.conn.Read())
	f.conn.Process()
	assert.Equal(t, []api.Interest{api.InterestRead}, f.ctl.Rearms())

	f.send(t, "TP/1.1\r\nHost: x\r\n\r\n")
	require.True(t, f.conn.Read())
	f.conn.Process()
	assert.Equal(t, api.InterestWrite, last(f.ctl.Rearms()))
	f.conn.Write()

	resp, err := http.ReadResponse(f.reader, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadEOF(t *testing.T) {
	f := newFixture(t, protocol.Config{})
	require.NoError(t, f.client.Close())
	assert.False(t, f.conn.Read())
}

func TestReadOverflow(t *testing.T) {
	f := newFixture(t, protocol.Config{ReadBufferSize: 64})
	f.send(t, "GET /"+strings.Repeat("a", 100)+" HTTP/1.1\r\n\r\n")
	assert.False(t, f.conn.Read())
}

func TestReadRequestFillingBuffer(t *testing.T) {
	f := newFixture(t, protocol.Config{ReadBufferSize: 256})
	head := "GET /index.html HTTP/1.1\r\nHost: x\r\nX-Pad: "
	tail := "\r\n\r\n"
	raw := head + strings.Repeat("p", 256-len(head)-len(tail)) + tail
	require.Len(t, raw, 256)

	resp, body := f.roundTrip(t, raw)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<h1>hello</h1>", body)
}

func TestAbortReleasesConnection(t *testing.T) {
	f := newFixture(t, protocol.Config{})
	f.conn.Abort()
	assert.Equal(t, 1, f.ctl.Releases())

	f.conn.Close()
	f.conn.Abort()
	assert.Equal(t, 1, f.ctl.Releases(), "closed connection has no controller")
}

func TestLargeBodyResumesOnEAGAIN(t *testing.T) {
	f := newFixture(t, protocol.Config{})
	payload := bytes.Repeat([]byte("0123456789abcdef"), 256<<10/16*4)
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "big.bin"), payload, 0o644))

	f.send(t, "GET /big.bin HTTP/1.1\r\nHost: x\r\n\r\n")
	require.True(t, f.conn.Read())
	f.conn.Process()

	got := make(chan []byte, 1)
	go func() {
		resp, err := http.ReadResponse(f.reader, nil)
		if err != nil {
			got <- nil
			return
		}
		b, _ := io.ReadAll(resp.Body)
		got <- b
	}()

	// Act as the reactor: keep flushing while the response is armed for write.
	for last(f.ctl.Rearms()) != api.InterestRead {
		require.True(t, f.conn.Write())
	}
	assert.Equal(t, payload, <-got)
}

func TestCloseResetsState(t *testing.T) {
	f := newFixture(t, protocol.Config{})
	f.send(t, "GET /index.html HTTP/1.1\r\nHost: x\r\n\r\n")
	require.True(t, f.conn.Read())
	f.conn.Process()
	f.conn.Close()
	assert.False(t, f.conn.Write(), "closed connection has nothing to flush")
}
