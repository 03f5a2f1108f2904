// Package benchmarks
// Author: momentics <momentics@gmail.com>
//
// Performance benchmarks for hioload-httpd components.

package benchmarks

import (
	"net/netip"
	"testing"

	"github.com/momentics/hioload-httpd/fake"
	"github.com/momentics/hioload-httpd/internal/concurrency"
	"github.com/momentics/hioload-httpd/internal/ratelimiter"
	"github.com/momentics/hioload-httpd/internal/session"
)

// BenchmarkThreadPoolAppend measures admission into a pool with 4 workers.
func BenchmarkThreadPoolAppend(b *testing.B) {
	pool, err := concurrency.NewThreadPool[*fake.Conn](4, 1024)
	if err != nil {
		b.Fatal(err)
	}
	defer pool.Close()
	conn := fake.NewConn()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			pool.Append(conn)
		}
	})
	b.StopTimer()
	st := pool.Stats()
	b.ReportMetric(float64(st.Rejected)/float64(b.N), "rejects/op")
}

// BenchmarkWorkQueueThroughput tests FIFO push/pop under the queue lock.
func BenchmarkWorkQueueThroughput(b *testing.B) {
	q := concurrency.NewWorkQueue[int](1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !q.Push(i) {
			q.Pop()
			q.Push(i)
		}
	}
}

// BenchmarkRegistryOpenRelease cycles one slot through a full lifetime.
func BenchmarkRegistryOpenRelease(b *testing.B) {
	reg, err := session.New(session.Config[*fake.Conn]{
		MaxFD:   64,
		Poller:  fake.NewPoller(),
		New:     fake.NewConn,
		CloseFD: func(int) error { return nil },
	})
	if err != nil {
		b.Fatal(err)
	}
	peer := netip.MustParseAddrPort("127.0.0.1:50000")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := reg.Open(7, peer); err != nil {
			b.Fatal(err)
		}
		reg.Release(7)
	}
}

// BenchmarkAcceptLimiter measures the per-accept admission check.
func BenchmarkAcceptLimiter(b *testing.B) {
	for _, tc := range []struct {
		name  string
		rate  float64
		burst int
	}{
		{"unlimited", 0, 0},
		{"limited", 1e9, 1 << 20},
	} {
		b.Run(tc.name, func(b *testing.B) {
			l := ratelimiter.New(tc.rate, tc.burst)
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					l.Allow()
				}
			})
		})
	}
}
