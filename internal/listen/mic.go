package listen

import (
	"context"
	"fmt"
	"time"

	"jarvis/internal/audio"
)

type Recorder interface {
	Record(ctx context.Context, c audio.Capture) ([]float32, error)
	Calibrate(ctx context.Context, d time.Duration) error
}

type SpeechToText interface {
	TranscribePCM(ctx context.Context, pcm16k []float32) (string, error)
}

// Mic records from the microphone and transcribes locally.
type Mic struct {
	rec Recorder
	stt SpeechToText
}

func NewMic(rec Recorder, stt SpeechToText) *Mic {
	return &Mic{rec: rec, stt: stt}
}

func (m *Mic) Calibrate(ctx context.Context, d time.Duration) error {
	return m.rec.Calibrate(ctx, d)
}

func (m *Mic) Transcribe(ctx context.Context, c audio.Capture) (string, error) {
	pcm, err := m.rec.Record(ctx, c)
	if err != nil {
		return "", err
	}

	text, err := m.stt.TranscribePCM(ctx, pcm)
	if err != nil {
		return "", fmt.Errorf("transcribe %d samples: %w", len(pcm), err)
	}
	return text, nil
}
