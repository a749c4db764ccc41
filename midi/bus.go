package midi

import "time"

// Bus is the engine's view of the MIDI I/O layer. The transport core never
// constructs the concrete driver binding; a Bus is injected at launch.
//
// The output side must be safe to call from the output worker goroutine
// while the input side is polled from the input worker goroutine.
type Bus interface {
	// Send queues a single event on its output port.
	Send(ev Event) error

	// Flush pushes queued output to the device.
	Flush() error

	// Stop tells the output device playback has halted.
	Stop()

	// Panic silences everything: all notes off and all sound off on every
	// channel of every output port.
	Panic()

	// InitClock primes downstream MIDI-clock receivers for playback
	// starting at the given tick.
	InitClock(tick int64)

	// EmitClock sends any timing-clock pulses due up to the given tick.
	EmitClock(tick int64)

	// PollForMIDI blocks up to timeout and returns the number of input
	// events available. A zero return after the timeout is normal.
	PollForMIDI(timeout time.Duration) int

	// GetMIDIEvent pops one pending input event without blocking.
	GetMIDIEvent() (Event, bool)

	// IsMoreInput reports whether more input is immediately available.
	IsMoreInput() bool

	// Close releases ports. After Close, Poll returns 0 and Send errors.
	Close() error
}
