package midi

import (
	"fmt"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // register MIDI driver

	"go-perform/debug"
)

// inboxSize bounds buffered input between polls. Input beyond this while
// the input worker is stalled is dropped (transient, logged only).
const inboxSize = 256

// RtBus is the Bus implementation over gomidi/rtmidi ports. One output
// port, any number of input ports; input arrives on the driver's listener
// goroutine and is buffered until the input worker polls it out.
type RtBus struct {
	sender   func(gomidi.Message) error
	outName  string
	ppqn     int
	clockOut bool

	inbox   chan Event
	stops   []func()
	inPorts []drivers.In

	mu        sync.Mutex
	pending   []Event // events peeked out of inbox by PollForMIDI
	clockBase int64   // next clock pulse is due at clockBase
	closed    bool
}

// OpenRtBus opens the named output port (substring match, first port when
// empty) and listens on every available input port. ppqn is needed to space
// outgoing clock pulses; clockOut enables them.
func OpenRtBus(outPort string, ppqn int, clockOut bool) (*RtBus, error) {
	b := &RtBus{
		ppqn:     ppqn,
		clockOut: clockOut,
		inbox:    make(chan Event, inboxSize),
	}

	out, err := findOutPort(outPort)
	if err != nil {
		return nil, err
	}
	sender, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("opening MIDI out %q: %w", out.String(), err)
	}
	b.sender = sender
	b.outName = out.String()

	for i, in := range gomidi.GetInPorts() {
		busIdx := i
		stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, _ int32) {
			ev, ok := Decode(msg)
			if !ok {
				debug.Log("midi", "dropping undecodable input on %d", busIdx)
				return
			}
			ev.Bus = busIdx
			select {
			case b.inbox <- ev:
			default:
				debug.Log("midi", "inbox full, dropping input on %d", busIdx)
			}
		}, gomidi.UseSysEx(), gomidi.UseTimeCode())
		if err != nil {
			debug.Log("midi", "cannot listen on %q: %v", in.String(), err)
			continue
		}
		b.stops = append(b.stops, stop)
		b.inPorts = append(b.inPorts, in)
	}
	return b, nil
}

func findOutPort(name string) (drivers.Out, error) {
	outs := gomidi.GetOutPorts()
	if len(outs) == 0 {
		return nil, fmt.Errorf("no MIDI output ports available")
	}
	if name == "" {
		return outs[0], nil
	}
	for _, p := range outs {
		if strings.Contains(strings.ToLower(p.String()), strings.ToLower(name)) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no MIDI output port matches %q", name)
}

// OutPort returns the name of the opened output port.
func (b *RtBus) OutPort() string { return b.outName }

// InPorts returns the names of the listening input ports, indexed by the
// Bus field of delivered events.
func (b *RtBus) InPorts() []string {
	names := make([]string, len(b.inPorts))
	for i, p := range b.inPorts {
		names[i] = p.String()
	}
	return names
}

// Send implements Bus.
func (b *RtBus) Send(ev Event) error {
	msg := encode(ev)
	if msg == nil {
		return nil
	}
	return b.sender(msg)
}

func encode(ev Event) gomidi.Message {
	if ev.Status == StatusSysEx {
		return gomidi.Message(ev.SysEx)
	}
	if ev.IsRealtime() {
		return gomidi.Message{ev.Status}
	}
	switch ev.Kind() {
	case StatusProgram, StatusChanPressure:
		return gomidi.Message{ev.Status, ev.D0}
	case StatusNoteOff, StatusNoteOn, StatusAftertouch, StatusCC, StatusPitchBend:
		return gomidi.Message{ev.Status, ev.D0, ev.D1}
	}
	if ev.Status == StatusSongPos {
		return gomidi.Message{ev.Status, ev.D0, ev.D1}
	}
	return gomidi.Message{ev.Status}
}

// Flush implements Bus. rtmidi sends synchronously, so there is nothing
// queued to push.
func (b *RtBus) Flush() error { return nil }

// Stop implements Bus.
func (b *RtBus) Stop() {
	if b.clockOut {
		b.sender(gomidi.Message{StatusStop})
	}
}

// Panic implements Bus: all notes off and all sound off on every channel.
func (b *RtBus) Panic() {
	for ch := uint8(0); ch < 16; ch++ {
		b.sender(gomidi.Message{StatusCC | ch, CCAllNotesOff, 0})
		b.sender(gomidi.Message{StatusCC | ch, CCAllSoundOff, 0})
	}
}

// InitClock implements Bus. Starting at 0 sends Start; resuming elsewhere
// sends Song Position plus Continue, per the MIDI sync handshake.
func (b *RtBus) InitClock(tick int64) {
	b.mu.Lock()
	b.clockBase = tick
	b.mu.Unlock()
	if !b.clockOut {
		return
	}
	if tick == 0 {
		b.sender(gomidi.Message{StatusStart})
		return
	}
	beats := tick / int64(b.ppqn/4) // a MIDI beat is a 16th note
	b.sender(gomidi.Message{StatusSongPos, uint8(beats & 0x7F), uint8(beats >> 7 & 0x7F)})
	b.sender(gomidi.Message{StatusContinue})
}

// EmitClock implements Bus: one timing-clock pulse per PPQN/24 ticks
// elapsed since the last call.
func (b *RtBus) EmitClock(tick int64) {
	if !b.clockOut {
		return
	}
	inc := int64(b.ppqn / 24)
	if inc <= 0 {
		inc = 1
	}
	b.mu.Lock()
	base := b.clockBase
	for base <= tick {
		b.sender(gomidi.Message{StatusClock})
		base += inc
	}
	b.clockBase = base
	b.mu.Unlock()
}

// PollForMIDI implements Bus. It waits up to timeout for input and returns
// how many events are ready. An event received while waiting is parked on
// the pending list so GetMIDIEvent still sees it.
func (b *RtBus) PollForMIDI(timeout time.Duration) int {
	b.mu.Lock()
	n := len(b.pending)
	b.mu.Unlock()
	if n+len(b.inbox) > 0 {
		return n + len(b.inbox)
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case ev, ok := <-b.inbox:
		if !ok {
			return 0
		}
		b.mu.Lock()
		b.pending = append(b.pending, ev)
		n = len(b.pending)
		b.mu.Unlock()
		return n + len(b.inbox)
	case <-t.C:
		return 0
	}
}

// GetMIDIEvent implements Bus.
func (b *RtBus) GetMIDIEvent() (Event, bool) {
	b.mu.Lock()
	if len(b.pending) > 0 {
		ev := b.pending[0]
		b.pending = b.pending[1:]
		b.mu.Unlock()
		return ev, true
	}
	b.mu.Unlock()
	select {
	case ev := <-b.inbox:
		return ev, true
	default:
		return Event{}, false
	}
}

// IsMoreInput implements Bus.
func (b *RtBus) IsMoreInput() bool {
	b.mu.Lock()
	n := len(b.pending)
	b.mu.Unlock()
	return n+len(b.inbox) > 0
}

// Close implements Bus.
func (b *RtBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	for _, stop := range b.stops {
		stop()
	}
	for _, p := range b.inPorts {
		p.Close()
	}
	return nil
}
