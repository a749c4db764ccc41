package transport

import (
	"go-perform/debug"
)

// pad carries the output worker's position state through one playback run.
// currentTick is a float so the sub-tick fraction survives loop wraps; the
// delta remainder (frac) is carried across iterations so rounding never
// accumulates into drift.
type pad struct {
	currentTick float64
	clockTick   float64
	totalTick   float64
	frac        float64
	dumping     bool
	initClock   bool
	extStopped  bool
}

// outputLoop is the real-time worker. It lives for the whole engine
// lifetime; each pass of the outer loop is one playback run, gated on the
// condition variable while stopped.
func (e *Engine) outputLoop() {
	defer e.wg.Done()
	for e.ioActive.Load() {
		e.mu.Lock()
		for !e.running.Load() && e.ioActive.Load() {
			e.cond.Wait()
		}
		e.mu.Unlock()
		if !e.ioActive.Load() {
			break
		}
		e.playbackRun()

		// Run ended. Reposition unless an external tick source owns the
		// position (it decides where we resume).
		ext := e.external
		if !e.useMIDIClock.Load() && (ext == nil || !ext.Running()) {
			if e.songMode.Load() {
				e.tick.Store(e.leftTick.Load())
			} else if !e.dontResetTicks.Load() {
				e.tick.Store(0)
			}
		}
		e.flushBus()
		e.bus.Stop()
	}
}

// playbackRun advances the transport until running goes false.
func (e *Engine) playbackRun() {
	var p pad
	p.initClock = true

	resumed := e.dontResetTicks.Load()
	if resumed {
		p.currentTick = float64(e.tick.Load())
		p.clockTick = p.currentTick
		p.totalTick = p.currentTick
	} else {
		e.tick.Store(0)
	}

	startAtMarker := e.songMode.Load() && !resumed
	e.dontResetTicks.Store(false)
	if startAtMarker {
		st := e.startingTick.Load()
		p.currentTick = float64(st)
		p.clockTick = float64(st)
		p.totalTick = float64(st)
		e.set.SetLastTicks(st)
		e.tick.Store(st)
	} else if !resumed {
		e.set.SetLastTicks(0)
	}

	lastPlayed := int64(-1)
	lastUs := e.now()
	for e.running.Load() {
		nowUs := e.now()
		deltaUs := nowUs - lastUs
		lastUs = nowUs
		if deltaUs < 0 {
			deltaUs = 0 // clock stepped backwards, hold position
		}

		bpm := e.BPM()
		ppqn := int(e.ppqn.Load())
		deltaTick, frac := TickDelta(bpm, ppqn, deltaUs, p.frac)
		p.frac = frac

		// Incoming MIDI clock overrides the computed delta: ticks come
		// only from counted pulses.
		if e.useMIDIClock.Load() {
			deltaTick = e.clockTick.Swap(0)
		}

		// A pending reposition is applied whole at the top of the
		// iteration, never mid-emission.
		if pos := e.clockPos.Swap(-1); pos >= 0 {
			deltaTick = 0
			p.currentTick = float64(pos)
			p.clockTick = float64(pos)
			p.totalTick = float64(pos)
			p.frac = 0
			e.set.SetLastTicks(pos)
			e.tick.Store(pos)
			lastPlayed = -1
		}

		// Precedence: external transport master, then MIDI clock, then
		// the internal delta computed above.
		ext := e.external
		if ext != nil && ext.Running() {
			pos := ext.PositionTick()
			p.currentTick = pos
			p.clockTick = pos
			p.totalTick = pos
			p.dumping = true
			if ext.Stopped() {
				p.extStopped = true
			}
		} else {
			p.clockTick += float64(deltaTick)
			p.currentTick += float64(deltaTick)
			p.totalTick += float64(deltaTick)
			p.dumping = true
		}

		if p.initClock {
			e.bus.InitClock(int64(p.clockTick))
			p.initClock = false
		}

		if p.dumping {
			if e.looping.Load() {
				right := e.rightTick.Load()
				if p.currentTick >= float64(right) {
					// Play out to the boundary, then wrap keeping the
					// fractional leftover so the loop point is exact.
					leftover := p.currentTick - float64(right)
					e.playTick(right-1, &lastPlayed)
					left := e.leftTick.Load()
					e.set.SetLastTicks(left)
					p.currentTick = float64(left) + leftover
					lastPlayed = -1
				}
			}
			e.playTick(int64(p.currentTick), &lastPlayed)
			e.bus.EmitClock(int64(p.clockTick))
		}
		e.flushBus()
		e.tick.Store(int64(p.currentTick))

		if p.extStopped {
			p.extStopped = false
			e.innerStop()
			break
		}

		// Sleep for the remainder of the quantum, clamped so we never
		// sleep past the next outgoing clock pulse.
		bodyUs := e.now() - nowUs
		sleepUs := e.quantumUs - bodyUs
		nextClockUs := (ClockTicks(ppqn) - 1) * PulseLengthUs(bpm, ppqn)
		if nextClockUs < float64(2*e.quantumUs) && int64(nextClockUs) < sleepUs {
			sleepUs = int64(nextClockUs)
		}
		if sleepUs > 0 {
			e.sleep(sleepUs)
		} else {
			e.overruns.Add(1)
			debug.LogEvery(100, "output", "iteration overran quantum by %dus", -sleepUs)
		}
	}
}

// playTick invokes play-set playback once per distinct tick. Re-invoking
// for an unchanged nonzero tick is skipped: at low PPQN two iterations can
// round to the same tick and would double-fire notes.
func (e *Engine) playTick(tick int64, lastPlayed *int64) {
	if tick == *lastPlayed && tick != 0 {
		return
	}
	*lastPlayed = tick
	e.set.PlayQueue(tick, e.songMode.Load(), e.resumeNoteOns.Load())
}
