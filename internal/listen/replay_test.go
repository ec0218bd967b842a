package listen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/audio"
)

type echoSTT struct{}

func (echoSTT) TranscribePCM(_ context.Context, pcm []float32) (string, error) {
	if len(pcm) == 1 {
		return "hey jarvis", nil
	}
	return "what is 2 plus 2", nil
}

func TestReplayPlaysFilesInOrder(t *testing.T) {
	r := NewReplay([]string{"wake.wav", "cmd.wav", "bad.wav"}, echoSTT{})
	r.decode = func(path string) ([]float32, error) {
		switch path {
		case "wake.wav":
			return []float32{0}, nil
		case "cmd.wav":
			return []float32{0, 0}, nil
		}
		return nil, errors.New("corrupt")
	}

	ctx := context.Background()

	text, err := r.Transcribe(ctx, audio.Capture{})
	require.NoError(t, err)
	assert.Equal(t, "hey jarvis", text)

	text, err = r.Transcribe(ctx, audio.Capture{})
	require.NoError(t, err)
	assert.Equal(t, "what is 2 plus 2", text)

	_, err = r.Transcribe(ctx, audio.Capture{})
	assert.Error(t, err)

	_, err = r.Transcribe(ctx, audio.Capture{SilenceTimeout: 10 * time.Millisecond})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestReplayExhaustedWaitsForContext(t *testing.T) {
	r := NewReplay(nil, echoSTT{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := r.Transcribe(ctx, audio.Capture{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
