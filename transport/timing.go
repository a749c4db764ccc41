package transport

// usPerMinute is the denominator of the tick rate: bpm * ppqn ticks per
// 60 000 000 µs.
const usPerMinute = 60000000.0

// midiClocksPerQuarter is fixed by the MIDI spec: timing clock runs at
// 24 pulses per quarter note regardless of PPQN.
const midiClocksPerQuarter = 24

// TickDelta converts an elapsed span of microseconds into whole ticks,
// carrying the sub-tick remainder across calls. The caller feeds the
// returned remainder back in on the next call; dropping it makes a long
// song drift audibly.
func TickDelta(bpm float64, ppqn int, deltaUs int64, frac float64) (int64, float64) {
	num := bpm*float64(ppqn)*float64(deltaUs) + frac
	delta := int64(num / usPerMinute)
	frac = num - float64(delta)*usPerMinute
	return delta, frac
}

// PulseLengthUs returns the duration of one tick in microseconds.
func PulseLengthUs(bpm float64, ppqn int) float64 {
	return usPerMinute / (bpm * float64(ppqn))
}

// TicksToUs converts a tick count to microseconds at the given tempo.
func TicksToUs(ticks int64, bpm float64, ppqn int) int64 {
	return int64(float64(ticks) * PulseLengthUs(bpm, ppqn))
}

// ClockIncrement returns how many ticks one incoming MIDI timing-clock
// pulse is worth.
func ClockIncrement(ppqn int) int64 {
	inc := int64(ppqn / midiClocksPerQuarter)
	if inc < 1 {
		inc = 1
	}
	return inc
}

// ClockTicks returns the tick spacing of outgoing clock pulses as a
// fraction, used for the sleep clamp in the output loop.
func ClockTicks(ppqn int) float64 {
	return float64(ppqn) / midiClocksPerQuarter
}

// BeatsToTicks converts a Song Position beat count (MIDI beats are 16th
// notes) to ticks.
func BeatsToTicks(beats int64, ppqn int) int64 {
	return beats * int64(ppqn) / 4
}

// BarLength returns the length of one bar in ticks for the given time
// signature. A quarter note is ppqn ticks; the beat unit is scaled by the
// beat width.
func BarLength(ppqn, beatsPerBar, beatWidth int) int64 {
	if beatWidth <= 0 {
		beatWidth = 4
	}
	beat := 4 * int64(ppqn) / int64(beatWidth)
	return beat * int64(beatsPerBar)
}
