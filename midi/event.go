package midi

// MIDI status bytes. Channel/voice messages carry the channel in the low
// nibble; everything at 0xF0 and above is system-wide.
const (
	StatusNoteOff      uint8 = 0x80
	StatusNoteOn       uint8 = 0x90
	StatusAftertouch   uint8 = 0xA0
	StatusCC           uint8 = 0xB0
	StatusProgram      uint8 = 0xC0
	StatusChanPressure uint8 = 0xD0
	StatusPitchBend    uint8 = 0xE0
	StatusSysEx        uint8 = 0xF0
	StatusSongPos      uint8 = 0xF2
	StatusClock        uint8 = 0xF8
	StatusStart        uint8 = 0xFA
	StatusContinue     uint8 = 0xFB
	StatusStop         uint8 = 0xFC
	StatusActiveSense  uint8 = 0xFE
	StatusReset        uint8 = 0xFF
)

// Controller numbers used for the panic path.
const (
	CCAllSoundOff = 120
	CCAllNotesOff = 123
)

// Event is a decoded MIDI event inside the sequencer. Tick is the transport
// position the event belongs to: the recorded position for input, the
// scheduled position for output. Bus identifies which input port the event
// arrived on (or which output port it should leave by).
type Event struct {
	Tick   int64
	Status uint8
	D0     uint8
	D1     uint8
	Bus    int
	SysEx  []byte
}

// Kind returns the status with the channel nibble masked off for channel
// messages, or the full status byte for system messages.
func (e Event) Kind() uint8 {
	if e.Status < StatusSysEx {
		return e.Status & 0xF0
	}
	return e.Status
}

// Channel returns the MIDI channel of a channel/voice message.
func (e Event) Channel() uint8 { return e.Status & 0x0F }

// IsChannel reports whether the event is a channel/voice message
// (status below SysEx).
func (e Event) IsChannel() bool { return e.Status < StatusSysEx }

// IsRealtime reports whether the event is a system realtime message.
func (e Event) IsRealtime() bool { return e.Status >= StatusClock }

// IsNoteOn reports a note-on with nonzero velocity. Velocity-zero note-ons
// are note-offs on the wire and are treated as such.
func (e Event) IsNoteOn() bool {
	return e.Kind() == StatusNoteOn && e.D1 > 0
}

// IsNoteOff reports a note-off, including the velocity-zero note-on form.
func (e Event) IsNoteOff() bool {
	return e.Kind() == StatusNoteOff || (e.Kind() == StatusNoteOn && e.D1 == 0)
}

// NoteOn builds a note-on event.
func NoteOn(ch, key, vel uint8) Event {
	return Event{Status: StatusNoteOn | ch&0x0F, D0: key, D1: vel}
}

// NoteOff builds a note-off event.
func NoteOff(ch, key uint8) Event {
	return Event{Status: StatusNoteOff | ch&0x0F, D0: key}
}

// ControlChange builds a control-change event.
func ControlChange(ch, controller, value uint8) Event {
	return Event{Status: StatusCC | ch&0x0F, D0: controller, D1: value}
}

// CombineBytes merges the two 7-bit data bytes of a Song Position message
// into its 14-bit MIDI-beat count (d0 is the LSB).
func CombineBytes(d0, d1 uint8) int64 {
	return int64(d0&0x7F) | int64(d1&0x7F)<<7
}

// Decode parses a raw MIDI byte string into an Event. It returns false for
// empty or truncated messages.
func Decode(raw []byte) (Event, bool) {
	if len(raw) == 0 {
		return Event{}, false
	}
	status := raw[0]
	if status < 0x80 { // stray data byte, not a status byte
		return Event{}, false
	}
	if status >= StatusClock { // realtime, single byte
		return Event{Status: status}, true
	}
	if status == StatusSysEx {
		return Event{Status: status, SysEx: raw}, true
	}
	kind := status & 0xF0
	switch kind {
	case StatusProgram, StatusChanPressure:
		if len(raw) < 2 {
			return Event{}, false
		}
		return Event{Status: status, D0: raw[1]}, true
	case StatusNoteOff, StatusNoteOn, StatusAftertouch, StatusCC, StatusPitchBend:
		if len(raw) < 3 {
			return Event{}, false
		}
		return Event{Status: status, D0: raw[1], D1: raw[2]}, true
	}
	if status == StatusSongPos {
		if len(raw) < 3 {
			return Event{}, false
		}
		return Event{Status: status, D0: raw[1], D1: raw[2]}, true
	}
	// Other system-common messages are recognized but carry no data we use.
	return Event{Status: status}, true
}
