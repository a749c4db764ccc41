package midi

import "time"

// NullBus is a Bus that discards everything. It keeps the engine runnable
// with no MIDI ports and no audio device.
type NullBus struct{}

func NewNullBus() *NullBus { return &NullBus{} }

func (*NullBus) Send(Event) error { return nil }

func (*NullBus) Flush() error { return nil }

func (*NullBus) Stop() {}

func (*NullBus) Panic() {}

func (*NullBus) InitClock(int64) {}

func (*NullBus) EmitClock(int64) {}

func (*NullBus) PollForMIDI(timeout time.Duration) int {
	time.Sleep(timeout)
	return 0
}

func (*NullBus) GetMIDIEvent() (Event, bool) { return Event{}, false }

func (*NullBus) IsMoreInput() bool { return false }

func (*NullBus) Close() error { return nil }
