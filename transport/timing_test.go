package transport

import (
	"math"
	"testing"
)

func TestTickDeltaRate(t *testing.T) {
	tests := []struct {
		name    string
		bpm     float64
		ppqn    int
		deltaUs int64
		want    int64
	}{
		{"one beat at 120/192", 120, 192, 500000, 192},
		{"one second at 120/192", 120, 192, 1000000, 384},
		{"one beat at 60/96", 60, 96, 1000000, 96},
		{"quantum at 120/192", 120, 192, 4000, 1}, // 1.536 ticks, remainder carried
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := TickDelta(tt.bpm, tt.ppqn, tt.deltaUs, 0)
			if got != tt.want {
				t.Errorf("TickDelta(%g, %d, %d) = %d, want %d", tt.bpm, tt.ppqn, tt.deltaUs, got, tt.want)
			}
		})
	}
}

// Advancing in many small steps must land on the same tick as one big step:
// the carried remainder keeps rounding loss from accumulating.
func TestTickDeltaNoDrift(t *testing.T) {
	const (
		bpm   = 123.5
		ppqn  = 192
		steps = 10000
		du    = 3777 // deliberately not a divisor of anything
	)
	var total int64
	var frac float64
	for i := 0; i < steps; i++ {
		d, f := TickDelta(bpm, ppqn, du, frac)
		total += d
		frac = f
	}
	want, wantFrac := TickDelta(bpm, ppqn, steps*du, 0)
	if total != want {
		t.Errorf("stepped total = %d, single span = %d", total, want)
	}
	if math.Abs(frac-wantFrac) > 1 {
		t.Errorf("stepped frac = %g, single span frac = %g", frac, wantFrac)
	}
}

func TestPulseLengthUs(t *testing.T) {
	got := PulseLengthUs(120, 192)
	want := 60000000.0 / (120 * 192)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("PulseLengthUs(120, 192) = %g, want %g", got, want)
	}
}

func TestTicksToUs(t *testing.T) {
	// 192 ticks at 120 bpm / 192 ppqn is one beat: half a second.
	if got := TicksToUs(192, 120, 192); got != 500000 {
		t.Errorf("TicksToUs(192, 120, 192) = %d, want 500000", got)
	}
}

func TestClockIncrement(t *testing.T) {
	tests := []struct {
		ppqn int
		want int64
	}{
		{192, 8},
		{96, 4},
		{24, 1},
		{12, 1}, // below one tick per pulse, floored to 1
	}
	for _, tt := range tests {
		if got := ClockIncrement(tt.ppqn); got != tt.want {
			t.Errorf("ClockIncrement(%d) = %d, want %d", tt.ppqn, got, tt.want)
		}
	}
}

func TestBeatsToTicks(t *testing.T) {
	// MIDI beats are 16th notes: 4 per quarter.
	if got := BeatsToTicks(16, 192); got != 768 {
		t.Errorf("BeatsToTicks(16, 192) = %d, want 768", got)
	}
	if got := BeatsToTicks(1, 192); got != 48 {
		t.Errorf("BeatsToTicks(1, 192) = %d, want 48", got)
	}
}

func TestBarLength(t *testing.T) {
	tests := []struct {
		beats, width int
		want         int64
	}{
		{4, 4, 768},
		{3, 4, 576},
		{6, 8, 576},
		{7, 0, 1344}, // zero width falls back to quarters
	}
	for _, tt := range tests {
		if got := BarLength(192, tt.beats, tt.width); got != tt.want {
			t.Errorf("BarLength(192, %d, %d) = %d, want %d", tt.beats, tt.width, got, tt.want)
		}
	}
}
