// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract interface for the readiness poller used by the
// dispatch loop. The poller is the single multiplexing context of the process.

package api

// Interest selects the readiness condition a descriptor is armed for.
type Interest uint8

const (
	// InterestRead arms the descriptor for input readiness.
	InterestRead Interest = 1 << iota
	// InterestWrite arms the descriptor for output readiness.
	InterestWrite
)

// String implements fmt.Stringer.
func (i Interest) String() string {
	switch i {
	case InterestRead:
		return "read"
	case InterestWrite:
		return "write"
	case InterestRead | InterestWrite:
		return "read|write"
	default:
		return "none"
	}
}

// EventMask is the set of conditions reported for a ready descriptor.
type EventMask uint8

const (
	EventRead EventMask = 1 << iota
	EventWrite
	EventHangup
	EventError
)

// Event encapsulates the result of an OS-level readiness notification.
type Event struct {
	Fd   int
	Mask EventMask
}

// Readable reports input readiness.
func (e Event) Readable() bool { return e.Mask&EventRead != 0 }

// Writable reports output readiness.
func (e Event) Writable() bool { return e.Mask&EventWrite != 0 }

// Broken reports a hang-up or error condition on the descriptor.
func (e Event) Broken() bool { return e.Mask&(EventHangup|EventError) != 0 }

// Poller is the readiness multiplexer.
//
// Client descriptors are always registered edge-triggered and one-shot: after
// an event fires the descriptor stays disarmed until Modify re-arms it. The
// listening descriptor is registered with AddListener, level-triggered and
// persistent, so it can always accept.
type Poller interface {
	// AddListener registers fd for persistent level-triggered read interest.
	AddListener(fd int) error

	// Add registers fd edge-triggered and one-shot for the given interest.
	Add(fd int, in Interest) error

	// Modify re-arms a one-shot descriptor with a new interest.
	Modify(fd int, in Interest) error

	// Remove deregisters fd.
	Remove(fd int) error

	// Wait blocks until events are available or timeoutMs elapses
	// (negative blocks forever) and writes them into events.
	// An interrupted wait returns ErrInterrupted.
	Wait(events []Event, timeoutMs int) (int, error)

	// Wakeup makes a blocked Wait return early with zero events.
	Wakeup() error

	// Close releases the multiplexing context.
	Close() error
}
