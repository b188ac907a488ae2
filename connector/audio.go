package connector

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"github.com/lixenwraith/thundagun/asset"
	"github.com/lixenwraith/thundagun/core"
)

// DefaultAudioChunk is the stream length buffered per integration step
const DefaultAudioChunk = 100 * time.Millisecond

// ErrAudioBusy is returned when a clip is loaded while a load is in flight
var ErrAudioBusy = errors.New("audio clip already loading")

// AudioClip buffers a stream into memory over several asset steps
// A reload keeps the previous buffer playable until the new one is complete
type AudioClip struct {
	id    uuid.UUID
	p     *Pipeline
	chunk time.Duration

	loading atomic.Bool
	buf     atomic.Pointer[beep.Buffer]
}

// NewAudioClip creates a clip handle; chunk <= 0 uses DefaultAudioChunk
func NewAudioClip(p *Pipeline, chunk time.Duration) *AudioClip {
	if chunk <= 0 {
		chunk = DefaultAudioChunk
	}
	return &AudioClip{id: uuid.New(), p: p, chunk: chunk}
}

// ID implements Connector
func (a *AudioClip) ID() uuid.UUID { return a.id }

// Kind implements Connector
func (a *AudioClip) Kind() Kind { return KindAudioClip }

// LoadWAV decodes the header now and buffers the samples through the asset queue
// The reader is closed once loading ends
func (a *AudioClip) LoadWAV(r io.ReadCloser, highPriority bool) *core.Future[int] {
	s, format, err := wav.Decode(r)
	if err != nil {
		_ = r.Close()
		f := core.NewFuture[int]()
		f.Fault(fmt.Errorf("decode wav: %w", err))
		return f
	}
	return a.load(s, format, s, highPriority)
}

// LoadStream buffers any finite stream; the future resolves with the sample count
func (a *AudioClip) LoadStream(s beep.Streamer, format beep.Format, highPriority bool) *core.Future[int] {
	return a.load(s, format, nil, highPriority)
}

func (a *AudioClip) load(s beep.Streamer, format beep.Format, closer io.Closer, highPriority bool) *core.Future[int] {
	f := core.NewFuture[int]()
	if !a.loading.CompareAndSwap(false, true) {
		if closer != nil {
			_ = closer.Close()
		}
		f.Fault(ErrAudioBusy)
		return f
	}

	per := max(1, format.SampleRate.N(a.chunk))
	var buf *beep.Buffer
	finish := func(err error) {
		if closer != nil {
			_ = closer.Close()
		}
		defer a.loading.Store(false)
		if err != nil {
			f.Fault(err)
			return
		}
		a.buf.Store(buf)
		f.Resolve(buf.Len())
	}

	step := func() (done bool, err error) {
		defer func() {
			if r := recover(); r != nil {
				finish(fmt.Errorf("%w: %v", asset.ErrPanic, r))
				panic(r)
			}
		}()
		if buf == nil {
			buf = beep.NewBuffer(format)
		}
		before := buf.Len()
		buf.Append(beep.Take(per, s))
		if err := s.Err(); err != nil {
			finish(err)
			return true, err
		}
		if buf.Len()-before < per {
			finish(nil)
			return true, nil
		}
		return false, nil
	}

	a.p.Assets.EnqueueSteps(fmt.Sprintf("audio.load %s", a.id), asset.StepFunc(step), highPriority)
	return f
}

// Ready reports whether the whole stream is buffered
func (a *AudioClip) Ready() bool {
	return a.buf.Load() != nil
}

// Streamer returns a playback stream over the buffered clip
func (a *AudioClip) Streamer() (beep.StreamSeeker, bool) {
	buf := a.buf.Load()
	if buf == nil {
		return nil, false
	}
	return buf.Streamer(0, buf.Len()), true
}

// Duration returns the buffered length, zero until ready
func (a *AudioClip) Duration() time.Duration {
	buf := a.buf.Load()
	if buf == nil {
		return 0
	}
	return buf.Format().SampleRate.D(buf.Len())
}
