// Package control maps keystrokes and MIDI control messages to named
// transport operations. The table lives outside the transport core; the
// engine only ever sees the Dispatcher interface seam.
package control

import (
	"sync"

	"go-perform/debug"
	"go-perform/midi"
)

// Op names an automation operation.
type Op int

const (
	OpNone Op = iota
	OpPlay
	OpStop
	OpPause
	OpRecord
	OpPanic
	OpBPMUp
	OpBPMDown
	OpSongMode
	OpLoop
	OpMutePattern  // d0 = pattern id
	OpQueuePattern // d0 = pattern id
	OpOneShot      // d0 = pattern id
	OpUndo
	OpRedo
)

var opNames = map[Op]string{
	OpNone:         "none",
	OpPlay:         "play",
	OpStop:         "stop",
	OpPause:        "pause",
	OpRecord:       "record",
	OpPanic:        "panic",
	OpBPMUp:        "bpm-up",
	OpBPMDown:      "bpm-down",
	OpSongMode:     "song-mode",
	OpLoop:         "loop",
	OpMutePattern:  "mute-pattern",
	OpQueuePattern: "queue-pattern",
	OpOneShot:      "one-shot",
	OpUndo:         "undo",
	OpRedo:         "redo",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "unknown"
}

// Action qualifies an operation invocation.
type Action int

const (
	ActionOff Action = iota
	ActionOn
	ActionToggle
)

// Handler performs one operation. d0/d1 carry operation-specific data
// (pattern id, controller value). Returns false when the operation could
// not apply.
type Handler func(a Action, d0, d1 uint8) bool

type binding struct {
	op Op
	a  Action
}

type midiKey struct {
	kind uint8 // masked status
	d0   uint8
}

// Dispatcher resolves keys and MIDI control events to operations and
// invokes the registered handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Op]Handler
	keys     map[string]binding
	midiMap  map[midiKey]binding
}

// NewDispatcher returns a dispatcher with the default key map and an empty
// MIDI map.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[Op]Handler),
		keys:     defaultKeys(),
		midiMap:  make(map[midiKey]binding),
	}
}

// Register installs the handler for an operation, replacing any previous
// one.
func (d *Dispatcher) Register(op Op, h Handler) {
	d.mu.Lock()
	d.handlers[op] = h
	d.mu.Unlock()
}

// BindKey maps a key name (bubbletea key string) to an operation.
func (d *Dispatcher) BindKey(key string, op Op, a Action) {
	d.mu.Lock()
	d.keys[key] = binding{op, a}
	d.mu.Unlock()
}

// BindMIDI maps a control event (status kind + first data byte) to an
// operation. Note-on velocity / CC value arrives as the handler's d1.
func (d *Dispatcher) BindMIDI(kind, d0 uint8, op Op, a Action) {
	d.mu.Lock()
	d.midiMap[midiKey{kind & 0xF0, d0}] = binding{op, a}
	d.mu.Unlock()
}

// HandleKey dispatches a key press. Returns false if the key is unbound.
func (d *Dispatcher) HandleKey(key string) bool {
	d.mu.RLock()
	b, ok := d.keys[key]
	h := d.handlers[b.op]
	d.mu.RUnlock()
	if !ok || h == nil {
		return false
	}
	debug.Log("control", "key %q -> %s", key, b.op)
	return h(b.a, 0, 0)
}

// HandleMIDI dispatches a channel/voice message as a control event.
// Returns false if no binding consumed it, in which case the caller should
// treat it as musical input.
func (d *Dispatcher) HandleMIDI(ev midi.Event) bool {
	if !ev.IsChannel() {
		return false
	}
	d.mu.RLock()
	b, ok := d.midiMap[midiKey{ev.Kind(), ev.D0}]
	h := d.handlers[b.op]
	d.mu.RUnlock()
	if !ok || h == nil {
		return false
	}
	a := b.a
	if a == ActionOn && ev.D1 == 0 {
		a = ActionOff // velocity-zero note-on and zero CC mean "off"
	}
	debug.Log("control", "midi %02X/%d -> %s", ev.Status, ev.D0, b.op)
	return h(a, ev.D0, ev.D1)
}

func defaultKeys() map[string]binding {
	return map[string]binding{
		" ":      {OpPlay, ActionToggle},
		"escape": {OpStop, ActionOn},
		".":      {OpPause, ActionToggle},
		"r":      {OpRecord, ActionToggle},
		"p":      {OpPanic, ActionOn},
		"+":      {OpBPMUp, ActionOn},
		"=":      {OpBPMUp, ActionOn},
		"-":      {OpBPMDown, ActionOn},
		"s":      {OpSongMode, ActionToggle},
		"l":      {OpLoop, ActionToggle},
		"u":      {OpUndo, ActionOn},
		"U":      {OpRedo, ActionOn},
	}
}
