package notify

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/faiface/beep/mp3"

	"jarvis/internal/audio"
)

// Chime plays a short mp3 cue when the agent wakes up without a command.
type Chime struct {
	Path string
}

func NewChime(path string) *Chime {
	return &Chime{Path: path}
}

func (c *Chime) Chime(ctx context.Context) error {
	if c == nil || c.Path == "" {
		return nil
	}

	f, err := os.Open(c.Path)
	if err != nil {
		return fmt.Errorf("open chime: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode chime: %w", err)
	}
	defer streamer.Close()

	p := audio.NewPlayer(streamer, format)
	if err := p.Play(); err != nil {
		return err
	}

	for p.Active() {
		select {
		case <-ctx.Done():
			p.Stop()
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}

	return nil
}
