package audio

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

const OutputRate beep.SampleRate = 44100

var (
	speakerOnce sync.Once
	speakerErr  error
)

func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(OutputRate, OutputRate.N(time.Second/10))
	})
	return speakerErr
}

// Player plays one stream on the shared speaker and can be stopped midway.
type Player struct {
	streamer beep.Streamer
	format   beep.Format
	ctrl     *beep.Ctrl
	started  atomic.Bool
	done     atomic.Bool
}

func NewPlayer(s beep.Streamer, format beep.Format) *Player {
	return &Player{streamer: s, format: format}
}

func (p *Player) Play() error {
	if err := initSpeaker(); err != nil {
		return err
	}

	var s beep.Streamer = p.streamer
	if p.format.SampleRate != OutputRate {
		s = beep.Resample(4, p.format.SampleRate, OutputRate, s)
	}

	p.ctrl = &beep.Ctrl{Streamer: s}
	p.started.Store(true)

	speaker.Play(beep.Seq(p.ctrl, beep.Callback(func() {
		p.done.Store(true)
	})))

	return nil
}

func (p *Player) Active() bool {
	return p.started.Load() && !p.done.Load()
}

// Stop cuts the stream; the speaker moves on to the completion callback.
func (p *Player) Stop() {
	if p.ctrl != nil {
		speaker.Lock()
		p.ctrl.Streamer = nil
		speaker.Unlock()
	}
	p.done.Store(true)
}
