package connector

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// Wave is an oscillator shape for generated clips
type Wave int

const (
	WaveSine Wave = iota
	WaveSquare
	WaveSaw
	WaveNoise
)

// tone is a fixed-length stereo oscillator
type tone struct {
	freq  float64
	phase float64
	left  int
	wave  Wave
	rate  beep.SampleRate
}

// Tone returns a finite oscillator stream
func Tone(freq float64, d time.Duration, wave Wave, rate beep.SampleRate) beep.Streamer {
	return &tone{freq: freq, left: rate.N(d), wave: wave, rate: rate}
}

func (t *tone) Stream(samples [][2]float64) (int, bool) {
	if t.left <= 0 {
		return 0, false
	}
	n := min(len(samples), t.left)
	step := t.freq / float64(t.rate)
	for i := 0; i < n; i++ {
		var v float64
		switch t.wave {
		case WaveSine:
			v = math.Sin(2 * math.Pi * t.phase)
		case WaveSquare:
			v = 1
			if t.phase >= 0.5 {
				v = -1
			}
		case WaveSaw:
			v = 2*t.phase - 1
		case WaveNoise:
			v = rand.Float64()*2 - 1
		}
		samples[i] = [2]float64{v, v}
		t.phase += step
		t.phase -= math.Floor(t.phase)
	}
	t.left -= n
	return n, true
}

func (t *tone) Err() error { return nil }

// fade applies a linear attack and release to a stream of known length
type fade struct {
	s                    beep.Streamer
	pos, attack, release int
	total                int
}

// Fade shapes s with linear attack and release ramps over total length d
func Fade(s beep.Streamer, d, attack, release time.Duration, rate beep.SampleRate) beep.Streamer {
	return &fade{s: s, total: rate.N(d), attack: rate.N(attack), release: rate.N(release)}
}

func (f *fade) Stream(samples [][2]float64) (int, bool) {
	n, ok := f.s.Stream(samples)
	for i := 0; i < n; i++ {
		gain := 1.0
		if f.pos < f.attack {
			gain = float64(f.pos) / float64(f.attack)
		}
		if rem := f.total - f.pos; f.release > 0 && rem < f.release {
			gain = math.Max(0, float64(rem)/float64(f.release))
		}
		samples[i][0] *= gain
		samples[i][1] *= gain
		f.pos++
	}
	return n, ok
}

func (f *fade) Err() error { return f.s.Err() }

// Gain scales s linearly; zero or negative silences it
func Gain(s beep.Streamer, g float64) beep.Streamer {
	if g <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(g)}
}
