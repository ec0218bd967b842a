package listen

import (
	"context"
	"sync"
	"time"

	log "log/slog"

	"jarvis/internal/audio"
	"jarvis/pkg/audioconv"
)

// Replay feeds recorded utterances through the transcriber instead of the
// microphone, one file per capture. Once the files run out it behaves like
// a silent room.
type Replay struct {
	mu     sync.Mutex
	files  []string
	stt    SpeechToText
	decode func(path string) ([]float32, error)
}

func NewReplay(files []string, stt SpeechToText) *Replay {
	return &Replay{
		files: append([]string(nil), files...),
		stt:   stt,
		decode: func(path string) ([]float32, error) {
			return audioconv.DecodeFile(path, audioconv.Options{})
		},
	}
}

func (r *Replay) next() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.files) == 0 {
		return "", false
	}
	f := r.files[0]
	r.files = r.files[1:]
	return f, true
}

func (r *Replay) Transcribe(ctx context.Context, c audio.Capture) (string, error) {
	path, ok := r.next()
	if !ok {
		return "", silence(ctx, c.SilenceTimeout)
	}

	log.Info("Replaying", "file", path)

	pcm, err := r.decode(path)
	if err != nil {
		return "", err
	}
	return r.stt.TranscribePCM(ctx, pcm)
}

func silence(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return ErrTimeout
	}
}
