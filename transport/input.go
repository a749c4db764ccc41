package transport

import (
	"time"

	"go-perform/debug"
	"go-perform/midi"
)

// inputLoop polls the bus for incoming MIDI and routes it. The poll
// timeout is the scheduling quantum, so shutdown is noticed promptly even
// with no input arriving.
func (e *Engine) inputLoop() {
	defer e.wg.Done()
	timeout := time.Duration(e.quantumUs) * time.Microsecond
	for e.ioActive.Load() {
		if e.bus.PollForMIDI(timeout) <= 0 {
			continue
		}
		// Drain everything currently available before polling again.
		for {
			if ev, ok := e.bus.GetMIDIEvent(); ok {
				e.routeEvent(ev)
			}
			if !e.bus.IsMoreInput() {
				break
			}
		}
	}
}

// routeEvent sends channel/voice messages through control dispatch first
// (when the source is a control surface) and otherwise into recording;
// system realtime messages drive the MIDI-clock state machine.
func (e *Engine) routeEvent(ev midi.Event) {
	if ev.IsChannel() {
		fromControl := e.controlBus >= 0 && ev.Bus == e.controlBus
		if fromControl && e.dispatch != nil && e.dispatch.HandleMIDI(ev) {
			return
		}
		ev.Tick = e.tick.Load()
		e.record(ev)
		return
	}

	switch ev.Status {
	case midi.StatusStart:
		e.midiStart()
	case midi.StatusContinue:
		e.midiContinue()
	case midi.StatusStop:
		e.midiStop()
	case midi.StatusClock:
		if e.clockRunning.Load() {
			e.clockTick.Add(ClockIncrement(e.PPQN()))
		}
	case midi.StatusSongPos:
		beats := midi.CombineBytes(ev.D0, ev.D1)
		e.clockPos.Store(BeatsToTicks(beats, e.PPQN()))
		debug.Log("clock", "song position %d beats", beats)
	case midi.StatusSysEx:
		debug.Log("input", "sysex, %d bytes", len(ev.SysEx))
		if e.passSysEx {
			if err := e.bus.Send(ev); err != nil {
				e.recordError("sysex passthrough: %v", err)
			}
		}
	default:
		// Active sense, reset, and other system commons are ignored.
	}
}

// record routes a musical input event to a recording pattern: first a
// pattern recording from this input port, then one recording on this
// channel, then the globally-armed recording pattern.
func (e *Engine) record(ev midi.Event) {
	pats := e.set.Patterns()
	if e.recordByBus {
		for _, p := range pats {
			if p.Recording() && p.InBus() == ev.Bus {
				p.StreamEvent(ev)
				return
			}
		}
	}
	if e.recordByChan {
		for _, p := range pats {
			if p.Recording() && p.Channel() == ev.Channel() {
				p.StreamEvent(ev)
				return
			}
		}
	}
	if p := e.recordTarget.Load(); p != nil {
		p.StreamEvent(ev)
	}
}

// midiStart: reset to zero, slave to the incoming clock, and begin
// playback in live mode. The first Clock pulse after Start is the downbeat.
func (e *Engine) midiStart() {
	debug.Log("clock", "MIDI start")
	e.songMode.Store(false)
	e.clockTick.Store(0)
	e.clockPos.Store(0)
	e.useMIDIClock.Store(true)
	e.clockRunning.Store(true)
	e.dontResetTicks.Store(false)
	e.playing.Store(true)
	e.innerStart()
	e.notify(Notification{Kind: NotifyTransport, Pattern: -1})
}

// midiContinue: resume from wherever the transport sits (or from a Song
// Position received just before), still slaved to the incoming clock.
func (e *Engine) midiContinue() {
	debug.Log("clock", "MIDI continue")
	e.songMode.Store(false)
	if e.clockPos.Load() < 0 {
		e.clockPos.Store(e.tick.Load())
	}
	e.dontResetTicks.Store(true)
	e.useMIDIClock.Store(true)
	e.clockRunning.Store(true)
	e.playing.Store(true)
	e.innerStart()
	e.notify(Notification{Kind: NotifyTransport, Pattern: -1})
}

// midiStop: silence immediately, capture the position as the resume point
// for a later Continue, and halt. Clock pulses that keep arriving are
// ignored until the next Start/Continue.
func (e *Engine) midiStop() {
	debug.Log("clock", "MIDI stop")
	e.Panic()
	e.useMIDIClock.Store(true)
	e.clockRunning.Store(false)
	e.clockPos.Store(e.tick.Load())
	e.dontResetTicks.Store(true)
	e.playing.Store(false)
	e.innerStop()
	e.notify(Notification{Kind: NotifyTransport, Pattern: -1})
}
