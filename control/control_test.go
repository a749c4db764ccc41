package control

import (
	"testing"

	"go-perform/midi"
)

type call struct {
	op Op
	a  Action
	d0 uint8
	d1 uint8
}

func recorder(calls *[]call, op Op) Handler {
	return func(a Action, d0, d1 uint8) bool {
		*calls = append(*calls, call{op, a, d0, d1})
		return true
	}
}

func TestHandleKeyDefaults(t *testing.T) {
	var calls []call
	d := NewDispatcher()
	d.Register(OpPlay, recorder(&calls, OpPlay))
	d.Register(OpStop, recorder(&calls, OpStop))
	d.Register(OpUndo, recorder(&calls, OpUndo))

	tests := []struct {
		key  string
		want Op
		a    Action
	}{
		{" ", OpPlay, ActionToggle},
		{"escape", OpStop, ActionOn},
		{"u", OpUndo, ActionOn},
	}
	for _, tt := range tests {
		calls = calls[:0]
		if !d.HandleKey(tt.key) {
			t.Errorf("HandleKey(%q) = false", tt.key)
			continue
		}
		if len(calls) != 1 || calls[0].op != tt.want || calls[0].a != tt.a {
			t.Errorf("HandleKey(%q) dispatched %+v, want op %v action %v", tt.key, calls, tt.want, tt.a)
		}
	}
}

func TestHandleKeyUnbound(t *testing.T) {
	d := NewDispatcher()
	d.Register(OpPlay, func(Action, uint8, uint8) bool { return true })
	if d.HandleKey("z") {
		t.Error("unbound key consumed")
	}
	// Bound key with no registered handler is also not consumed.
	if d.HandleKey("escape") {
		t.Error("handlerless key consumed")
	}
}

func TestBindKeyOverride(t *testing.T) {
	var calls []call
	d := NewDispatcher()
	d.Register(OpPanic, recorder(&calls, OpPanic))
	d.BindKey(" ", OpPanic, ActionOn)
	if !d.HandleKey(" ") {
		t.Fatal("rebound key not consumed")
	}
	if calls[0].op != OpPanic {
		t.Errorf("dispatched %v, want panic", calls[0].op)
	}
}

func TestHandleMIDI(t *testing.T) {
	var calls []call
	d := NewDispatcher()
	d.Register(OpMutePattern, recorder(&calls, OpMutePattern))
	d.BindMIDI(midi.StatusNoteOn, 36, OpMutePattern, ActionOn)

	ev := midi.NoteOn(0, 36, 100)
	if !d.HandleMIDI(ev) {
		t.Fatal("bound MIDI event not consumed")
	}
	if calls[0].a != ActionOn || calls[0].d0 != 36 || calls[0].d1 != 100 {
		t.Errorf("dispatched %+v", calls[0])
	}

	// Velocity zero turns an on-action into off.
	calls = calls[:0]
	ev.D1 = 0
	if !d.HandleMIDI(ev) {
		t.Fatal("velocity-zero event not consumed")
	}
	if calls[0].a != ActionOff {
		t.Errorf("action = %v, want off", calls[0].a)
	}
}

func TestHandleMIDIIgnoresUnbound(t *testing.T) {
	d := NewDispatcher()
	d.Register(OpMutePattern, func(Action, uint8, uint8) bool { return true })
	d.BindMIDI(midi.StatusNoteOn, 36, OpMutePattern, ActionToggle)

	if d.HandleMIDI(midi.NoteOn(0, 40, 100)) {
		t.Error("unbound note consumed")
	}
	if d.HandleMIDI(midi.Event{Status: midi.StatusClock}) {
		t.Error("realtime message consumed as control")
	}
	// Channel nibble is masked: the same note on any channel matches.
	if !d.HandleMIDI(midi.NoteOn(9, 36, 100)) {
		t.Error("bound note on another channel not consumed")
	}
}

func TestOpString(t *testing.T) {
	if OpPlay.String() != "play" {
		t.Errorf("OpPlay = %q", OpPlay.String())
	}
	if Op(999).String() != "unknown" {
		t.Errorf("unknown op = %q", Op(999).String())
	}
}
