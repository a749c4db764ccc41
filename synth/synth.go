// Package synth is a small polyphonic software synthesizer used as the
// output device when no MIDI port is available. It implements midi.Bus;
// the input side is empty (a synth has no keys).
package synth

import (
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"go-perform/midi"
)

const (
	sampleRate   = 44100
	channelCount = 2
	bitDepth     = 2 // 16-bit
)

type voice struct {
	note      uint8
	channel   uint8
	velocity  uint8
	frequency float64
	phase     float64
	envelope  float64
	releasing bool
	active    bool
}

// Synth mixes sine voices into an oto stream.
type Synth struct {
	mu           sync.Mutex
	player       *oto.Player
	voices       []*voice
	maxVoices    int
	masterVolume float64
}

// Open creates the audio context and starts the stream.
func Open() (*Synth, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready

	s := &Synth{
		maxVoices:    64,
		masterVolume: 0.3,
	}
	s.player = ctx.NewPlayer(&reader{synth: s})
	s.player.Play()
	return s, nil
}

// Send implements midi.Bus. Only note events make sound; everything else
// is accepted and dropped.
func (s *Synth) Send(ev midi.Event) error {
	switch {
	case ev.IsNoteOn():
		s.noteOn(ev.Channel(), ev.D0, ev.D1)
	case ev.IsNoteOff():
		s.noteOff(ev.Channel(), ev.D0)
	case ev.Kind() == midi.StatusCC && (ev.D0 == midi.CCAllNotesOff || ev.D0 == midi.CCAllSoundOff):
		s.allNotesOff()
	}
	return nil
}

// Flush implements midi.Bus; samples stream continuously, nothing queues.
func (s *Synth) Flush() error { return nil }

// Stop implements midi.Bus.
func (s *Synth) Stop() { s.allNotesOff() }

// Panic implements midi.Bus.
func (s *Synth) Panic() { s.allNotesOff() }

// InitClock implements midi.Bus; the synth has no downstream clock.
func (s *Synth) InitClock(int64) {}

// EmitClock implements midi.Bus.
func (s *Synth) EmitClock(int64) {}

// PollForMIDI implements midi.Bus: a synth produces no input, so this just
// burns the timeout to keep the input worker's poll cadence.
func (s *Synth) PollForMIDI(timeout time.Duration) int {
	time.Sleep(timeout)
	return 0
}

// GetMIDIEvent implements midi.Bus.
func (s *Synth) GetMIDIEvent() (midi.Event, bool) { return midi.Event{}, false }

// IsMoreInput implements midi.Bus.
func (s *Synth) IsMoreInput() bool { return false }

// Close implements midi.Bus. oto players need no explicit close as of v3.4.
func (s *Synth) Close() error {
	s.allNotesOff()
	return nil
}

// SetVolume sets the master volume in [0, 1].
func (s *Synth) SetVolume(vol float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if vol < 0 {
		vol = 0
	} else if vol > 1 {
		vol = 1
	}
	s.masterVolume = vol
}

func (s *Synth) noteOn(channel, note, velocity uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var v *voice
	for _, cand := range s.voices {
		if !cand.active {
			v = cand
			break
		}
	}
	if v == nil {
		if len(s.voices) < s.maxVoices {
			v = &voice{}
			s.voices = append(s.voices, v)
		} else {
			v = s.voices[0] // steal the oldest
		}
	}
	v.note = note
	v.channel = channel
	v.velocity = velocity
	v.frequency = noteToFreq(note)
	v.phase = 0
	v.envelope = 0
	v.releasing = false
	v.active = true
}

func (s *Synth) noteOff(channel, note uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.voices {
		if v.active && v.note == note && v.channel == channel && !v.releasing {
			v.releasing = true
			break
		}
	}
}

func (s *Synth) allNotesOff() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.voices {
		if v.active {
			v.releasing = true
		}
	}
}

// reader generates the audio stream for oto.
type reader struct {
	synth *Synth
}

func (r *reader) Read(buf []byte) (int, error) {
	s := r.synth
	s.mu.Lock()
	defer s.mu.Unlock()

	numSamples := len(buf) / (channelCount * bitDepth)
	for i := 0; i < numSamples; i++ {
		var sample float64
		for _, v := range s.voices {
			if !v.active {
				continue
			}
			sample += math.Sin(2*math.Pi*v.phase) * float64(v.velocity) / 127.0 * v.envelope * 0.2

			v.phase += v.frequency / sampleRate
			if v.phase >= 1.0 {
				v.phase -= 1.0
			}
			if v.releasing {
				v.envelope *= 0.9995 // exponential release
				if v.envelope < 0.001 {
					v.active = false
				}
			} else if v.envelope < 1.0 {
				v.envelope += 0.001 // linear attack
				if v.envelope > 1.0 {
					v.envelope = 1.0
				}
			}
		}

		sample *= s.masterVolume
		if sample > 1.0 {
			sample = 1.0
		} else if sample < -1.0 {
			sample = -1.0
		}
		val := int16(sample * 32767)
		idx := i * channelCount * bitDepth
		buf[idx] = byte(val)
		buf[idx+1] = byte(val >> 8)
		buf[idx+2] = byte(val)
		buf[idx+3] = byte(val >> 8)
	}
	return len(buf), nil
}

func noteToFreq(note uint8) float64 {
	return 440.0 * math.Pow(2.0, (float64(note)-69.0)/12.0) // A4 = 440 Hz
}
