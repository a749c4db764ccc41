// Package transport is the real-time playback engine: a dedicated output
// worker advancing transport position in musical ticks, an input worker
// routing incoming MIDI, and the state machine arbitrating between
// internal timing, incoming MIDI clock, and an external transport master.
package transport

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go-perform/config"
	"go-perform/control"
	"go-perform/midi"
	"go-perform/pattern"
)

// defaultQuantumUs is the output worker's scheduling quantum: it wakes at
// least this often to advance the transport and to notice shutdown.
const defaultQuantumUs = 4000

// ExternalTransport reports an authoritative playback position from an
// outside sync source (a transport master). When Running returns true its
// position overrides both internal timing and MIDI clock.
type ExternalTransport interface {
	Running() bool
	PositionTick() float64
	Stopped() bool // master requested stop this cycle
}

// Notification is published on the engine's observer list when state the
// UI cares about changes. Pattern is -1 for engine-wide changes.
type Notification struct {
	Kind    NotifyKind
	Pattern int
}

type NotifyKind int

const (
	NotifyTransport NotifyKind = iota // started/stopped/paused
	NotifyTempo
	NotifyPattern // pattern armed/muted/trigger change
)

type triggerSnapshot struct {
	track    int
	triggers []pattern.Trigger
}

// Engine drives playback. Construct with New, wire handlers, then Launch.
// All exported methods are safe to call from any goroutine.
type Engine struct {
	bus      midi.Bus
	set      *pattern.PlaySet
	dispatch *control.Dispatcher
	external ExternalTransport

	// lifecycle gate: running is additionally guarded by mu+cond so the
	// output worker cannot miss a start signal.
	mu       sync.Mutex
	cond     *sync.Cond
	ioActive atomic.Bool
	running  atomic.Bool
	playing  atomic.Bool // "the user pressed play", distinct from running

	bpmBits atomic.Uint64
	ppqn    atomic.Int32
	minBPM  float64
	maxBPM  float64

	songMode      atomic.Bool
	looping       atomic.Bool
	resumeNoteOns atomic.Bool
	leftTick      atomic.Int64
	rightTick     atomic.Int64
	startingTick  atomic.Int64

	// incoming MIDI clock state
	useMIDIClock atomic.Bool
	clockRunning atomic.Bool
	clockTick    atomic.Int64 // pulses accumulated, consumed by the output worker
	clockPos     atomic.Int64 // pending reposition target, -1 none

	dontResetTicks atomic.Bool // pause keeps the position
	tick           atomic.Int64

	quantumUs int64
	now       func() int64 // microsecond clock, injectable for tests
	sleep     func(us int64)

	recordTarget atomic.Pointer[pattern.Pattern]
	recordByBus  bool
	recordByChan bool
	controlBus   int
	passSysEx    bool

	overruns    atomic.Int64
	flushBroken atomic.Bool // bus flush failed; output degraded to no-ops
	errMu       sync.Mutex
	errs        []string

	undoMu sync.Mutex
	undo   []triggerSnapshot
	redo   []triggerSnapshot

	obsMu     sync.Mutex
	observers []func(Notification)

	wg sync.WaitGroup
}

// New builds an engine from an injected bus and play-set plus the settings
// read at launch. The config object is copied; the engine never reaches
// into global state.
func New(bus midi.Bus, set *pattern.PlaySet, cfg *config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("transport config: %w", err)
	}
	t := cfg.Transport
	e := &Engine{
		bus:          bus,
		set:          set,
		minBPM:       t.MinBPM,
		maxBPM:       t.MaxBPM,
		quantumUs:    defaultQuantumUs,
		controlBus:   cfg.Ports.ControlBus,
		passSysEx:    cfg.Ports.PassSysEx,
		recordByBus:  cfg.Record.ByBus,
		recordByChan: cfg.Record.ByChannel,
	}
	e.cond = sync.NewCond(&e.mu)
	e.bpmBits.Store(math.Float64bits(t.BPM))
	e.ppqn.Store(int32(t.PPQN))
	e.songMode.Store(t.SongMode)
	e.looping.Store(t.Looping)
	e.resumeNoteOns.Store(t.ResumeNoteOns)
	e.leftTick.Store(t.LeftTick)
	e.rightTick.Store(t.RightTick)
	e.startingTick.Store(t.LeftTick)
	e.useMIDIClock.Store(t.UseMIDIClock)
	e.clockPos.Store(-1)
	// Monotonic clock: wall-clock steps (NTP) must never move the
	// transport.
	start := time.Now()
	e.now = func() int64 { return time.Since(start).Microseconds() }
	e.sleep = func(us int64) { time.Sleep(time.Duration(us) * time.Microsecond) }
	return e, nil
}

// SetExternal injects an external transport master. Must be called before
// Launch.
func (e *Engine) SetExternal(ext ExternalTransport) { e.external = ext }

// SetDispatcher injects the control dispatch used for control-surface
// input, and registers the engine's operations on it.
func (e *Engine) SetDispatcher(d *control.Dispatcher) {
	e.dispatch = d
	e.registerOps(d)
}

// Launch starts the two worker goroutines. Call exactly once.
func (e *Engine) Launch() {
	e.ioActive.Store(true)
	e.wg.Add(2)
	go e.outputLoop()
	go e.inputLoop()
}

// Finish shuts both workers down and joins them. Safe to call while the
// output worker is waiting on the gate or mid-sleep; shutdown latency is
// bounded by the scheduling quantum.
func (e *Engine) Finish() {
	e.mu.Lock()
	e.ioActive.Store(false)
	e.running.Store(false)
	e.cond.Broadcast()
	e.mu.Unlock()
	e.wg.Wait()
}

// innerStart opens the gate: set running under the lock, then signal, so
// the waiting output worker cannot miss the wake-up.
func (e *Engine) innerStart() {
	e.mu.Lock()
	if !e.running.Load() {
		e.running.Store(true)
		e.cond.Broadcast()
	}
	e.mu.Unlock()
}

// innerStop clears running. No signal needed: the worker notices the flag
// before starting another iteration.
func (e *Engine) innerStop() {
	e.running.Store(false)
}

// Play starts playback. In song mode the position starts from the left
// marker; in live mode from wherever the transport sits.
func (e *Engine) Play() {
	if e.songMode.Load() {
		e.startingTick.Store(e.leftTick.Load())
	}
	e.playing.Store(true)
	e.innerStart()
	e.notify(Notification{Kind: NotifyTransport, Pattern: -1})
}

// Stop halts playback and rewinds to the left marker (song mode) or zero
// (live mode).
func (e *Engine) Stop() {
	e.dontResetTicks.Store(false)
	e.playing.Store(false)
	e.innerStop()
	e.notify(Notification{Kind: NotifyTransport, Pattern: -1})
}

// Pause halts playback keeping the position, so Play resumes in place.
func (e *Engine) Pause() {
	e.dontResetTicks.Store(true)
	e.playing.Store(false)
	e.innerStop()
	e.notify(Notification{Kind: NotifyTransport, Pattern: -1})
}

// TogglePlay flips between playing and paused.
func (e *Engine) TogglePlay() {
	if e.running.Load() {
		e.Pause()
	} else {
		e.Play()
	}
}

// Panic silences everything immediately: pattern note-offs plus an
// all-notes-off sweep on the bus.
func (e *Engine) Panic() {
	e.set.Off()
	e.bus.Panic()
	e.flushBus()
}

// Running reports whether the output worker is actively advancing.
func (e *Engine) Running() bool { return e.running.Load() }

// PatternPlaying reports the user-level play state.
func (e *Engine) PatternPlaying() bool { return e.playing.Load() }

// Tick returns the current transport position.
func (e *Engine) Tick() int64 { return e.tick.Load() }

// BPM returns the current tempo.
func (e *Engine) BPM() float64 { return math.Float64frombits(e.bpmBits.Load()) }

// SetBPM validates and applies a tempo change. Out-of-range values are
// rejected and the previous tempo is kept.
func (e *Engine) SetBPM(bpm float64) error {
	if bpm < e.minBPM || bpm > e.maxBPM {
		return fmt.Errorf("bpm %g outside [%g, %g]", bpm, e.minBPM, e.maxBPM)
	}
	e.bpmBits.Store(math.Float64bits(bpm))
	e.notify(Notification{Kind: NotifyTempo, Pattern: -1})
	return nil
}

// PPQN returns the current resolution.
func (e *Engine) PPQN() int { return int(e.ppqn.Load()) }

// ChangePPQN applies a new resolution. Rejected while playback is active,
// since every derived tick-rate constant changes with it.
func (e *Engine) ChangePPQN(ppqn int) error {
	if e.running.Load() {
		return fmt.Errorf("cannot change ppqn while playing")
	}
	if ppqn < 32 || ppqn > 19200 {
		return fmt.Errorf("ppqn %d out of range [32, 19200]", ppqn)
	}
	e.ppqn.Store(int32(ppqn))
	return nil
}

// SongMode reports song (trigger-driven) versus live playback.
func (e *Engine) SongMode() bool { return e.songMode.Load() }

func (e *Engine) SetSongMode(on bool) { e.songMode.Store(on) }

// Looping reports whether the loop markers are honored.
func (e *Engine) Looping() bool { return e.looping.Load() }

func (e *Engine) SetLooping(on bool) { e.looping.Store(on) }

// SetLoop validates and applies loop markers.
func (e *Engine) SetLoop(left, right int64) error {
	if left < 0 || right <= left {
		return fmt.Errorf("invalid loop [%d, %d)", left, right)
	}
	e.leftTick.Store(left)
	e.rightTick.Store(right)
	return nil
}

// LoopTicks returns the loop markers.
func (e *Engine) LoopTicks() (left, right int64) {
	return e.leftTick.Load(), e.rightTick.Load()
}

// UseMIDIClock reports whether tick advancement is slaved to incoming
// MIDI clock.
func (e *Engine) UseMIDIClock() bool { return e.useMIDIClock.Load() }

// SetUseMIDIClock switches the tick source by hand (it also flips
// automatically when MIDI Start/Stop arrive).
func (e *Engine) SetUseMIDIClock(on bool) { e.useMIDIClock.Store(on) }

// SetRecordTarget arms pat as the globally-armed recording pattern; nil
// disarms.
func (e *Engine) SetRecordTarget(pat *pattern.Pattern) {
	e.recordTarget.Store(pat)
}

// RecordTarget returns the globally-armed recording pattern, or nil.
func (e *Engine) RecordTarget() *pattern.Pattern {
	return e.recordTarget.Load()
}

// PlaySet returns the engine's play-set.
func (e *Engine) PlaySet() *pattern.PlaySet { return e.set }

// Overruns returns how many output iterations took longer than the
// scheduling quantum. Diagnostic only.
func (e *Engine) Overruns() int64 { return e.overruns.Load() }

// Errors returns the process-wide error list accumulated by the workers.
func (e *Engine) Errors() []string {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	out := make([]string, len(e.errs))
	copy(out, e.errs)
	return out
}

// maxErrors bounds the error list; the workers run at the quantum rate and
// must not grow memory on a persistent failure.
const maxErrors = 64

func (e *Engine) recordError(format string, args ...any) {
	e.errMu.Lock()
	if len(e.errs) < maxErrors {
		e.errs = append(e.errs, fmt.Sprintf(format, args...))
	}
	e.errMu.Unlock()
}

// flushBus pushes queued output, degrading to a silent no-op after the
// first failure: a dead port is reported once, not once per quantum.
func (e *Engine) flushBus() {
	if e.flushBroken.Load() {
		return
	}
	if err := e.bus.Flush(); err != nil {
		e.flushBroken.Store(true)
		e.recordError("flush: %v", err)
	}
}

// Subscribe registers an observer for engine notifications. Observers are
// called from whatever goroutine triggered the change, never from the
// output worker's hot loop.
func (e *Engine) Subscribe(fn func(Notification)) {
	e.obsMu.Lock()
	e.observers = append(e.observers, fn)
	e.obsMu.Unlock()
}

func (e *Engine) notify(n Notification) {
	e.obsMu.Lock()
	obs := make([]func(Notification), len(e.observers))
	copy(obs, e.observers)
	e.obsMu.Unlock()
	for _, fn := range obs {
		fn(n)
	}
}

// PushTriggerUndo snapshots the named track's triggers before an edit.
// Any pending redo history is invalidated.
func (e *Engine) PushTriggerUndo(track int) {
	p := e.set.Find(track)
	if p == nil {
		return
	}
	e.undoMu.Lock()
	e.undo = append(e.undo, triggerSnapshot{track: track, triggers: p.Triggers()})
	e.redo = nil
	e.undoMu.Unlock()
}

// PopTriggerUndo restores the most recent snapshot, pushing the inverse
// onto the redo stack.
func (e *Engine) PopTriggerUndo() bool {
	e.undoMu.Lock()
	defer e.undoMu.Unlock()
	if len(e.undo) == 0 {
		return false
	}
	s := e.undo[len(e.undo)-1]
	e.undo = e.undo[:len(e.undo)-1]
	p := e.set.Find(s.track)
	if p == nil {
		return false
	}
	e.redo = append(e.redo, triggerSnapshot{track: s.track, triggers: p.Triggers()})
	p.RestoreTriggers(s.triggers)
	e.notify(Notification{Kind: NotifyPattern, Pattern: s.track})
	return true
}

// PopTriggerRedo re-applies the most recently undone edit.
func (e *Engine) PopTriggerRedo() bool {
	e.undoMu.Lock()
	defer e.undoMu.Unlock()
	if len(e.redo) == 0 {
		return false
	}
	s := e.redo[len(e.redo)-1]
	e.redo = e.redo[:len(e.redo)-1]
	p := e.set.Find(s.track)
	if p == nil {
		return false
	}
	e.undo = append(e.undo, triggerSnapshot{track: s.track, triggers: p.Triggers()})
	p.RestoreTriggers(s.triggers)
	e.notify(Notification{Kind: NotifyPattern, Pattern: s.track})
	return true
}

// SaveTo writes the engine's current transport settings back into cfg,
// for persisting at shutdown.
func (e *Engine) SaveTo(cfg *config.Config) {
	cfg.Transport.BPM = e.BPM()
	cfg.Transport.PPQN = e.PPQN()
	cfg.Transport.SongMode = e.songMode.Load()
	cfg.Transport.Looping = e.looping.Load()
	cfg.Transport.LeftTick = e.leftTick.Load()
	cfg.Transport.RightTick = e.rightTick.Load()
	cfg.Transport.UseMIDIClock = e.useMIDIClock.Load()
	cfg.Transport.ResumeNoteOns = e.resumeNoteOns.Load()
}

// registerOps installs the engine's operations on the dispatcher. The
// key/MIDI tables stay outside the core; these are the call-in points.
func (e *Engine) registerOps(d *control.Dispatcher) {
	d.Register(control.OpPlay, func(a control.Action, _, _ uint8) bool {
		switch a {
		case control.ActionOn:
			e.Play()
		case control.ActionOff:
			e.Stop()
		default:
			e.TogglePlay()
		}
		return true
	})
	d.Register(control.OpStop, func(control.Action, uint8, uint8) bool {
		e.Stop()
		return true
	})
	d.Register(control.OpPause, func(control.Action, uint8, uint8) bool {
		if e.running.Load() {
			e.Pause()
		} else {
			e.Play()
		}
		return true
	})
	d.Register(control.OpPanic, func(control.Action, uint8, uint8) bool {
		e.Panic()
		return true
	})
	d.Register(control.OpBPMUp, func(control.Action, uint8, uint8) bool {
		return e.SetBPM(e.BPM()+1) == nil
	})
	d.Register(control.OpBPMDown, func(control.Action, uint8, uint8) bool {
		return e.SetBPM(e.BPM()-1) == nil
	})
	d.Register(control.OpSongMode, func(control.Action, uint8, uint8) bool {
		e.songMode.Store(!e.songMode.Load())
		return true
	})
	d.Register(control.OpLoop, func(control.Action, uint8, uint8) bool {
		e.looping.Store(!e.looping.Load())
		return true
	})
	d.Register(control.OpMutePattern, func(a control.Action, d0, _ uint8) bool {
		p := e.set.Find(int(d0))
		if p == nil {
			return false
		}
		switch a {
		case control.ActionOn:
			p.SetArmed(true)
		case control.ActionOff:
			p.SetArmed(false)
		default:
			p.ToggleArmed()
		}
		e.notify(Notification{Kind: NotifyPattern, Pattern: int(d0)})
		return true
	})
	d.Register(control.OpQueuePattern, func(_ control.Action, d0, _ uint8) bool {
		p := e.set.Find(int(d0))
		if p == nil {
			return false
		}
		p.ToggleQueued(e.tick.Load())
		return true
	})
	d.Register(control.OpOneShot, func(_ control.Action, d0, _ uint8) bool {
		p := e.set.Find(int(d0))
		if p == nil {
			return false
		}
		p.ToggleOneShot(e.tick.Load())
		return true
	})
	d.Register(control.OpRecord, func(_ control.Action, _, _ uint8) bool {
		p := e.recordTarget.Load()
		if p == nil {
			return false
		}
		p.SetRecording(!p.Recording())
		return true
	})
	d.Register(control.OpUndo, func(control.Action, uint8, uint8) bool {
		return e.PopTriggerUndo()
	})
	d.Register(control.OpRedo, func(control.Action, uint8, uint8) bool {
		return e.PopTriggerRedo()
	})
}
