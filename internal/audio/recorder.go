package audio

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	log "log/slog"

	"github.com/gordonklaus/portaudio"
)

const (
	SampleRate = 16000
	frameSize  = 320 // 20ms
	frameDur   = 20 * time.Millisecond

	defaultThreshold = 0.015
	minThreshold     = 0.005
	calibrationGain  = 1.5
)

// ErrWaitTimeout means nobody started talking before the silence timeout.
var ErrWaitTimeout = errors.New("no speech before timeout")

// Capture shapes one phrase recording.
type Capture struct {
	// SilenceTimeout is how long to wait for speech to start; 0 waits forever.
	SilenceTimeout time.Duration
	// PauseThreshold is the trailing silence that ends the phrase.
	PauseThreshold time.Duration
	// PhraseLimit caps the phrase length; 0 means no cap.
	PhraseLimit time.Duration
}

type Recorder struct {
	mu        sync.Mutex
	threshold float64
}

func NewRecorder() *Recorder {
	return &Recorder{threshold: defaultThreshold}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

func (r *Recorder) Threshold() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.threshold
}

type stream struct {
	*portaudio.Stream
	buf []float32
}

func openInput() (*stream, error) {
	buf := make([]float32, frameSize)

	s, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		s.Close()
		return nil, err
	}

	return &stream{Stream: s, buf: buf}, nil
}

func (s *stream) close() {
	s.Stop()
	s.Close()
}

// Calibrate listens to the room for d and sets the speech threshold just
// above the ambient noise level.
func (r *Recorder) Calibrate(ctx context.Context, d time.Duration) error {
	in, err := openInput()
	if err != nil {
		return err
	}
	defer in.close()

	frames := int(d / frameDur)
	if frames < 1 {
		frames = 1
	}

	var sum float64
	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := in.Read(); err != nil {
			return err
		}
		sum += frameRMS(in.buf)
	}

	th := math.Max(minThreshold, sum/float64(frames)*calibrationGain)

	r.mu.Lock()
	r.threshold = th
	r.mu.Unlock()

	log.Debug("Calibrated microphone", "threshold", th)
	return nil
}

// Record captures one phrase: it waits for the level to rise above the
// threshold, then records until PauseThreshold of silence or PhraseLimit.
func (r *Recorder) Record(ctx context.Context, c Capture) ([]float32, error) {
	in, err := openInput()
	if err != nil {
		return nil, err
	}
	defer in.close()

	th := r.Threshold()

	var (
		waitFrames   = int(c.SilenceTimeout / frameDur)
		pauseFrames  = int(c.PauseThreshold / frameDur)
		phraseFrames = int(c.PhraseLimit / frameDur)

		speaking      bool
		waited        int
		silenceFrames int
		recorded      int
	)
	if pauseFrames < 1 {
		pauseFrames = 1
	}

	out := make([]float32, 0, SampleRate*3)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := in.Read(); err != nil {
			return nil, err
		}

		loud := frameRMS(in.buf) > th

		if !speaking {
			if !loud {
				waited++
				if waitFrames > 0 && waited >= waitFrames {
					return nil, ErrWaitTimeout
				}
				continue
			}
			speaking = true
		}

		out = append(out, in.buf...)
		recorded++

		if loud {
			silenceFrames = 0
		} else {
			silenceFrames++
			if silenceFrames >= pauseFrames {
				break
			}
		}

		if phraseFrames > 0 && recorded >= phraseFrames {
			break
		}
	}

	return out, nil
}

func frameRMS(f []float32) float64 {
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
