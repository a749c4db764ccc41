package pattern

import (
	"reflect"
	"testing"
)

func newList(length int64, triggers ...Trigger) *TriggerList {
	tl := &TriggerList{length: length}
	for _, t := range triggers {
		tl.Add(t.Start, t.End-t.Start+1, t.Offset, t.Transpose)
	}
	return tl
}

func spans(tl *TriggerList) [][2]int64 {
	var out [][2]int64
	for _, t := range tl.list {
		out = append(out, [2]int64{t.Start, t.End})
	}
	return out
}

func TestTriggerAddOverlap(t *testing.T) {
	tests := []struct {
		name     string
		existing [][2]int64
		add      [2]int64 // start, length
		want     [][2]int64
	}{
		{
			name: "disjoint keeps order",
			existing: [][2]int64{{0, 99}, {300, 399}},
			add:  [2]int64{150, 100},
			want: [][2]int64{{0, 99}, {150, 249}, {300, 399}},
		},
		{
			name: "swallows covered trigger",
			existing: [][2]int64{{100, 150}},
			add:  [2]int64{50, 200},
			want: [][2]int64{{50, 249}},
		},
		{
			name: "splits surrounding trigger",
			existing: [][2]int64{{0, 399}},
			add:  [2]int64{100, 100},
			want: [][2]int64{{0, 99}, {100, 199}, {200, 399}},
		},
		{
			name: "trims tail of left neighbor",
			existing: [][2]int64{{0, 199}},
			add:  [2]int64{150, 100},
			want: [][2]int64{{0, 149}, {150, 249}},
		},
		{
			name: "trims head of right neighbor",
			existing: [][2]int64{{100, 299}},
			add:  [2]int64{50, 100},
			want: [][2]int64{{50, 149}, {150, 299}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := &TriggerList{length: 192}
			for _, e := range tt.existing {
				tl.Add(e[0], e[1]-e[0]+1, 0, 0)
			}
			tl.Add(tt.add[0], tt.add[1], 0, 0)
			if got := spans(tl); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("spans = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTriggerAddIgnoresBadInput(t *testing.T) {
	tl := &TriggerList{length: 192}
	tl.Add(-1, 100, 0, 0)
	tl.Add(0, 0, 0, 0)
	if len(tl.list) != 0 {
		t.Errorf("list has %d triggers, want 0", len(tl.list))
	}
}

func TestTriggerSplit(t *testing.T) {
	tl := newList(192, Trigger{Start: 0, End: 383})
	if !tl.Split(200) {
		t.Fatal("Split(200) = false")
	}
	want := [][2]int64{{0, 199}, {200, 383}}
	if got := spans(tl); !reflect.DeepEqual(got, want) {
		t.Fatalf("spans = %v, want %v", got, want)
	}
	// The right half's offset compensates for the split point so content
	// does not shift: 200 into a 192-long pattern is 8 ticks of phase.
	if tl.list[1].Offset != 8 {
		t.Errorf("right offset = %d, want 8", tl.list[1].Offset)
	}

	if tl.Split(0) {
		t.Error("Split at a trigger start should be a no-op")
	}
	if tl.Split(1000) {
		t.Error("Split outside any trigger should be a no-op")
	}
}

func TestTriggerGrow(t *testing.T) {
	tl := newList(192, Trigger{Start: 0, End: 99}, Trigger{Start: 300, End: 399})
	if !tl.Grow(50, 500) {
		t.Fatal("Grow = false")
	}
	// clamped against the next trigger
	if tl.list[0].End != 299 {
		t.Errorf("end = %d, want 299", tl.list[0].End)
	}
	if tl.Grow(350, 300) {
		t.Error("Grow to at or below the start should fail")
	}
}

func TestTriggerMove(t *testing.T) {
	tests := []struct {
		name  string
		tick  int64
		delta int64
		want  [][2]int64
	}{
		{"move right", 150, 50, [][2]int64{{0, 49}, {150, 249}, {400, 499}}},
		{"clamp at left neighbor", 150, -100, [][2]int64{{0, 49}, {50, 149}, {400, 499}}},
		{"clamp at right neighbor", 150, 1000, [][2]int64{{0, 49}, {300, 399}, {400, 499}}},
		{"clamp at zero", 25, -100, [][2]int64{{0, 49}, {100, 199}, {400, 499}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := newList(192,
				Trigger{Start: 0, End: 49},
				Trigger{Start: 100, End: 199},
				Trigger{Start: 400, End: 499})
			if !tl.Move(tt.tick, tt.delta) {
				t.Fatal("Move = false")
			}
			if got := spans(tl); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("spans = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTriggerRemoveAndPaste(t *testing.T) {
	tl := newList(192, Trigger{Start: 100, End: 199})
	if !tl.Paste(150) {
		t.Fatal("Paste = false")
	}
	want := [][2]int64{{100, 199}, {200, 299}}
	if got := spans(tl); !reflect.DeepEqual(got, want) {
		t.Fatalf("after paste: spans = %v, want %v", got, want)
	}
	if !tl.Remove(150) {
		t.Fatal("Remove = false")
	}
	if got := spans(tl); !reflect.DeepEqual(got, [][2]int64{{200, 299}}) {
		t.Errorf("after remove: spans = %v", got)
	}
	if tl.Remove(1000) {
		t.Error("Remove outside any trigger should fail")
	}
}

func TestTriggerStateAt(t *testing.T) {
	tl := newList(192, Trigger{Start: 100, End: 199})
	for _, tc := range []struct {
		tick int64
		want bool
	}{
		{0, false}, {99, false}, {100, true}, {150, true}, {199, true}, {200, false},
	} {
		if got := tl.StateAt(tc.tick); got != tc.want {
			t.Errorf("StateAt(%d) = %v, want %v", tc.tick, got, tc.want)
		}
	}
}

func TestTriggerFrame(t *testing.T) {
	tl := newList(192,
		Trigger{Start: 100, End: 199},
		Trigger{Start: 300, End: 399})

	tests := []struct {
		name       string
		end        int64
		state      bool
		changeTick int64
	}{
		{"before first", 50, false, 0},
		{"inside first", 150, true, 100},
		{"in the gap", 250, false, 199},
		{"inside second", 350, true, 300},
		{"after all", 500, false, 399},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, changeTick, _, _ := tl.frame(tt.end)
			if state != tt.state || changeTick != tt.changeTick {
				t.Errorf("frame(%d) = (%v, %d), want (%v, %d)",
					tt.end, state, changeTick, tt.state, tt.changeTick)
			}
		})
	}
}

func TestTriggerSnapshotRestore(t *testing.T) {
	tl := newList(192, Trigger{Start: 0, End: 99}, Trigger{Start: 200, End: 299})
	snap := tl.All()
	tl.Remove(50)
	tl.Add(500, 100, 0, 0)
	tl.Restore(snap)
	if got := tl.All(); !reflect.DeepEqual(got, snap) {
		t.Errorf("restored %v, want %v", got, snap)
	}
}
