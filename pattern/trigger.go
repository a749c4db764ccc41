package pattern

// Trigger is a (start, end, offset) interval on the song timeline telling
// when a pattern should sound in song mode. Offset shifts the pattern's
// events relative to the trigger start; Transpose is in half-steps.
type Trigger struct {
	Start     int64
	End       int64
	Offset    int64
	Transpose int8
}

// Length returns the trigger length in ticks, inclusive of both ends.
func (t Trigger) Length() int64 { return t.End - t.Start + 1 }

// contains reports whether tick falls inside the trigger.
func (t Trigger) contains(tick int64) bool {
	return tick >= t.Start && tick <= t.End
}

// TriggerList holds a pattern's triggers ordered by start tick. It is not
// self-locking; the owning Pattern serializes access.
type TriggerList struct {
	list   []Trigger
	length int64 // owning pattern length, for offset adjustment
}

// adjustOffset wraps an offset into [0, length).
func (tl *TriggerList) adjustOffset(offset int64) int64 {
	if tl.length > 0 {
		offset %= tl.length
		if offset < 0 {
			offset += tl.length
		}
	}
	return offset
}

// Add inserts a trigger covering [tick, tick+len-1]. Existing triggers
// overlapping the new range are swallowed, trimmed, or split so that
// triggers never overlap.
func (tl *TriggerList) Add(tick, length, offset int64, transpose int8) {
	if tick < 0 || length <= 0 {
		return
	}
	nt := Trigger{
		Start:     tick,
		End:       tick + length - 1,
		Offset:    tl.adjustOffset(offset),
		Transpose: transpose,
	}
	var out []Trigger
	for _, t := range tl.list {
		switch {
		case t.Start >= nt.Start && t.End <= nt.End:
			// fully covered, drop it
		case t.contains(nt.Start) && t.contains(nt.End):
			// split around the new trigger
			left, right := t, t
			left.End = nt.Start - 1
			right.Start = nt.End + 1
			if left.Start <= left.End {
				out = append(out, left)
			}
			if right.Start <= right.End {
				out = append(out, right)
			}
		case t.contains(nt.Start):
			t.End = nt.Start - 1
			if t.Start <= t.End {
				out = append(out, t)
			}
		case t.contains(nt.End):
			t.Start = nt.End + 1
			if t.Start <= t.End {
				out = append(out, t)
			}
		default:
			out = append(out, t)
		}
	}
	// insert keeping start order
	pos := len(out)
	for i, t := range out {
		if t.Start > nt.Start {
			pos = i
			break
		}
	}
	out = append(out[:pos], append([]Trigger{nt}, out[pos:]...)...)
	tl.list = out
}

// Split divides the trigger containing tick into two triggers at tick.
// The right half keeps a corrected offset so the pattern content does not
// shift audibly across the split point.
func (tl *TriggerList) Split(tick int64) bool {
	for i, t := range tl.list {
		if !t.contains(tick) || tick == t.Start {
			continue
		}
		right := t
		right.Start = tick
		if tl.length > 0 {
			right.Offset = tl.adjustOffset(t.Offset + (tick - t.Start))
		}
		tl.list[i].End = tick - 1
		rest := append([]Trigger{right}, tl.list[i+1:]...)
		tl.list = append(tl.list[:i+1], rest...)
		return true
	}
	return false
}

// Grow extends the trigger containing tick so its end lands on newEnd.
// Shrinking below the start removes nothing; the call is ignored.
func (tl *TriggerList) Grow(tick, newEnd int64) bool {
	for i, t := range tl.list {
		if !t.contains(tick) {
			continue
		}
		if newEnd <= t.Start {
			return false
		}
		// clamp against the following trigger
		if i+1 < len(tl.list) && newEnd >= tl.list[i+1].Start {
			newEnd = tl.list[i+1].Start - 1
		}
		tl.list[i].End = newEnd
		return true
	}
	return false
}

// Move shifts the trigger containing tick by delta ticks, clamping at zero
// and at the neighboring triggers.
func (tl *TriggerList) Move(tick, delta int64) bool {
	for i, t := range tl.list {
		if !t.contains(tick) {
			continue
		}
		start := t.Start + delta
		end := t.End + delta
		if start < 0 {
			end -= start
			start = 0
		}
		if i > 0 && start <= tl.list[i-1].End {
			shift := tl.list[i-1].End + 1 - start
			start += shift
			end += shift
		}
		if i+1 < len(tl.list) && end >= tl.list[i+1].Start {
			shift := end - (tl.list[i+1].Start - 1)
			start -= shift
			end -= shift
		}
		if start < 0 || (i > 0 && start <= tl.list[i-1].End) {
			return false
		}
		tl.list[i].Start = start
		tl.list[i].End = end
		return true
	}
	return false
}

// Remove deletes the trigger containing tick.
func (tl *TriggerList) Remove(tick int64) bool {
	for i, t := range tl.list {
		if t.contains(tick) {
			tl.list = append(tl.list[:i], tl.list[i+1:]...)
			return true
		}
	}
	return false
}

// Paste duplicates the trigger containing tick immediately after itself.
func (tl *TriggerList) Paste(tick int64) bool {
	for _, t := range tl.list {
		if t.contains(tick) {
			dup := t
			span := t.Length()
			dup.Start = t.End + 1
			dup.End = dup.Start + span - 1
			tl.Add(dup.Start, span, dup.Offset, dup.Transpose)
			return true
		}
	}
	return false
}

// Clear drops every trigger.
func (tl *TriggerList) Clear() { tl.list = nil }

// StateAt reports whether any trigger covers the given tick.
func (tl *TriggerList) StateAt(tick int64) bool {
	for _, t := range tl.list {
		if t.contains(tick) {
			return true
		}
		if t.Start > tick {
			break
		}
	}
	return false
}

// All returns a copy of the trigger list.
func (tl *TriggerList) All() []Trigger {
	out := make([]Trigger, len(tl.list))
	copy(out, tl.list)
	return out
}

// Restore replaces the trigger list with a snapshot taken by All.
func (tl *TriggerList) Restore(snapshot []Trigger) {
	tl.list = make([]Trigger, len(snapshot))
	copy(tl.list, snapshot)
}

// frame scans the window (everything at or before end) and reports the
// trigger state the pattern should be in by the end of the window, along
// with the tick where the state last changed, the active offset, and the
// transpose. Mirrors one slice of song-mode playback.
func (tl *TriggerList) frame(end int64) (state bool, changeTick, offset int64, transpose int8) {
	for _, t := range tl.list {
		if t.Start <= end {
			state = true
			changeTick = t.Start
			offset = t.Offset
			transpose = t.Transpose
		}
		if t.End <= end {
			state = false
			changeTick = t.End
			offset = t.Offset
		}
		if t.Start > end || t.End > end {
			break
		}
	}
	return state, changeTick, offset, transpose
}
