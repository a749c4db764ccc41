package pattern

import (
	"testing"

	"go-perform/midi"
)

// captureSender records everything a pattern emits.
type captureSender struct {
	events []midi.Event
}

func (c *captureSender) Send(ev midi.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func (c *captureSender) notes() []midi.Event {
	var out []midi.Event
	for _, ev := range c.events {
		if ev.IsNoteOn() || ev.IsNoteOff() {
			out = append(out, ev)
		}
	}
	return out
}

func (c *captureSender) noteOnTicks() []int64 {
	var out []int64
	for _, ev := range c.events {
		if ev.IsNoteOn() {
			out = append(out, ev.Tick)
		}
	}
	return out
}

// note adds a note-on/note-off pair at a local tick.
func note(p *Pattern, tick int64, key uint8, dur int64) {
	p.AddEvent(midi.Event{Tick: tick, Status: midi.StatusNoteOn, D0: key, D1: 100})
	p.AddEvent(midi.Event{Tick: tick + dur, Status: midi.StatusNoteOff, D0: key})
}

func equalTicks(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPlayEmitsWindowExactlyOnce(t *testing.T) {
	out := &captureSender{}
	p := New(0, 0, 192)
	p.SetSender(out)
	p.SetArmed(true)
	note(p, 0, 60, 24)
	note(p, 96, 64, 24)

	// Walk a full cycle in uneven windows.
	for _, tick := range []int64{10, 50, 95, 96, 150, 191} {
		p.Play(tick, false, false)
	}
	if got := out.noteOnTicks(); !equalTicks(got, []int64{0, 96}) {
		t.Errorf("note-on ticks = %v, want [0 96]", got)
	}

	// Replaying the same tick is an empty window: nothing new.
	before := len(out.events)
	p.Play(191, false, false)
	if len(out.events) != before {
		t.Errorf("replay emitted %d extra events", len(out.events)-before)
	}
}

func TestPlayUnrollsAcrossCycles(t *testing.T) {
	out := &captureSender{}
	p := New(0, 0, 100)
	p.SetSender(out)
	p.SetArmed(true)
	note(p, 0, 60, 10)

	// One window spanning three cycles picks up every repetition.
	p.Play(299, false, false)
	if got := out.noteOnTicks(); !equalTicks(got, []int64{0, 100, 200}) {
		t.Errorf("note-on ticks = %v, want [0 100 200]", got)
	}
}

func TestPlayAppliesChannelAndTranspose(t *testing.T) {
	out := &captureSender{}
	p := New(0, 5, 192)
	p.SetSender(out)
	note(p, 0, 60, 24)
	p.AddTrigger(0, 192, 0)
	p.mu.Lock()
	p.triggers.list[0].Transpose = 12
	p.mu.Unlock()

	p.Play(50, true, false)
	notes := out.notes()
	if len(notes) == 0 {
		t.Fatal("no notes emitted")
	}
	if notes[0].Channel() != 5 {
		t.Errorf("channel = %d, want 5", notes[0].Channel())
	}
	if notes[0].D0 != 72 {
		t.Errorf("key = %d, want 72", notes[0].D0)
	}
}

func TestSongModeTriggerGates(t *testing.T) {
	out := &captureSender{}
	p := New(0, 0, 100)
	p.SetSender(out)
	note(p, 0, 60, 10)
	note(p, 50, 64, 10)
	p.AddTrigger(100, 100, 0) // sounds only in [100, 199]

	p.Play(99, true, false)
	if len(out.notes()) != 0 {
		t.Fatalf("emitted %d notes before the trigger", len(out.notes()))
	}

	p.Play(199, true, false)
	if got := out.noteOnTicks(); !equalTicks(got, []int64{100, 150}) {
		t.Errorf("note-on ticks = %v, want [100 150]", got)
	}

	// Past the trigger end the pattern mutes itself and releases notes.
	p.Play(250, true, false)
	if p.Armed() {
		t.Error("pattern still armed past trigger end")
	}
	after := out.noteOnTicks()
	if !equalTicks(after, []int64{100, 150}) {
		t.Errorf("note-on ticks after gate closed = %v", after)
	}
}

func TestSongModeTriggerOffset(t *testing.T) {
	out := &captureSender{}
	p := New(0, 0, 100)
	p.SetSender(out)
	note(p, 0, 60, 10)
	p.AddTrigger(100, 100, 30) // content shifted 30 ticks late

	p.SetLastTick(100)
	p.Play(199, true, false)
	if got := out.noteOnTicks(); !equalTicks(got, []int64{130}) {
		t.Errorf("note-on ticks = %v, want [130]", got)
	}
}

func TestQueuedFlipsAtBoundary(t *testing.T) {
	out := &captureSender{}
	p := New(0, 0, 100)
	p.SetSender(out)
	note(p, 0, 60, 10)

	p.ToggleQueued(50) // flip on at tick 100
	if p.Armed() {
		t.Fatal("armed before the boundary")
	}
	p.PlayQueue(99, false, false)
	if p.Armed() || len(out.noteOnTicks()) != 0 {
		t.Fatal("queue consumed before the boundary")
	}
	p.PlayQueue(120, false, false)
	if !p.Armed() {
		t.Fatal("not armed after the boundary")
	}
	if got := out.noteOnTicks(); !equalTicks(got, []int64{100}) {
		t.Errorf("note-on ticks = %v, want [100]", got)
	}

	// Queue off: plays up to the boundary, then mutes.
	p.ToggleQueued(150) // flip off at tick 200
	p.PlayQueue(230, false, false)
	if p.Armed() {
		t.Error("still armed after queued mute")
	}
}

func TestOneShotPlaysOnePass(t *testing.T) {
	out := &captureSender{}
	p := New(0, 0, 100)
	p.SetSender(out)
	note(p, 10, 60, 10)

	p.ToggleOneShot(50) // pass runs [100, 199]
	p.PlayQueue(99, false, false)
	if len(out.noteOnTicks()) != 0 {
		t.Fatal("one-shot fired early")
	}
	p.PlayQueue(199, false, false)
	if got := out.noteOnTicks(); !equalTicks(got, []int64{110}) {
		t.Fatalf("note-on ticks = %v, want [110]", got)
	}
	p.PlayQueue(299, false, false)
	if p.Armed() {
		t.Error("pattern still armed after the single pass")
	}
	if got := out.noteOnTicks(); !equalTicks(got, []int64{110}) {
		t.Errorf("second pass emitted: %v", got)
	}
}

func TestOffReleasesSoundingNotes(t *testing.T) {
	out := &captureSender{}
	p := New(0, 3, 192)
	p.SetSender(out)
	p.SetArmed(true)
	note(p, 0, 60, 100)

	p.Play(50, false, false) // note-on sent, note-off still pending
	p.Off()

	last := out.events[len(out.events)-1]
	if !last.IsNoteOff() || last.D0 != 60 || last.Channel() != 3 {
		t.Errorf("last event = %+v, want note-off for key 60 on channel 3", last)
	}
}

func TestStreamEventRecordsFolded(t *testing.T) {
	p := New(0, 0, 100)
	p.SetRecording(true)

	ev := midi.NoteOn(0, 60, 100)
	ev.Tick = 250 // transport tick, folds to local 50
	if !p.StreamEvent(ev) {
		t.Fatal("StreamEvent = false while recording")
	}
	events := p.Events()
	if len(events) != 1 || events[0].Tick != 50 {
		t.Errorf("recorded %+v, want one event at local tick 50", events)
	}

	p.SetRecording(false)
	if p.StreamEvent(ev) {
		t.Error("StreamEvent = true while not recording")
	}
}

func TestStreamEventKeepsSorted(t *testing.T) {
	p := New(0, 0, 100)
	p.SetRecording(true)
	for _, tick := range []int64{70, 20, 50, 20} {
		ev := midi.NoteOn(0, uint8(tick), 100)
		ev.Tick = tick
		p.StreamEvent(ev)
	}
	events := p.Events()
	for i := 1; i < len(events); i++ {
		if events[i].Tick < events[i-1].Tick {
			t.Fatalf("events out of order: %v", events)
		}
	}
}

func TestPlaySetFindAndOff(t *testing.T) {
	set := NewPlaySet()
	out := &captureSender{}
	for i := 0; i < 3; i++ {
		p := New(i, uint8(i), 192)
		p.SetSender(out)
		set.Add(p)
	}
	if set.Len() != 3 {
		t.Fatalf("Len = %d, want 3", set.Len())
	}
	if p := set.Find(1); p == nil || p.ID() != 1 {
		t.Fatal("Find(1) failed")
	}
	if set.Find(99) != nil {
		t.Fatal("Find(99) returned a pattern")
	}
	set.Remove(set.Find(1))
	if set.Len() != 2 || set.Find(1) != nil {
		t.Error("Remove did not drop the pattern")
	}
}
