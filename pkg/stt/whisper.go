package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

type Options struct {
	Language      string // "en", "auto", ...
	Threads       int    // <=0 => NumCPU()
	InitialPrompt string // biases decoding, e.g. towards the wake phrase
	BeamSize      int    // 0 = greedy
}

type Transcriber struct {
	mu    sync.Mutex
	model whisper.Model
	opt   Options
}

func NewTranscriber(modelPath string, opt Options) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if opt.Language == "" {
		opt.Language = "en"
	}
	return &Transcriber{model: m, opt: opt}, nil
}

func (t *Transcriber) Close() error {
	if t.model == nil {
		return nil
	}
	return t.model.Close()
}

// annotations whisper emits for non-speech, e.g. "[BLANK_AUDIO]" or "(wind)"
var annotationRe = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)

// TranscribePCM returns the text spoken in pcm16k, which must be mono
// 16 kHz float32 in [-1, 1]. Non-speech annotations are dropped.
func (t *Transcriber) TranscribePCM(ctx context.Context, pcm16k []float32) (string, error) {
	if t.model == nil {
		return "", errors.New("nil model")
	}
	if len(pcm16k) == 0 {
		return "", errors.New("no audio samples provided")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	wctx, err := t.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("new context: %w", err)
	}

	if err := wctx.SetLanguage(t.opt.Language); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}

	threads := t.opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if t.opt.BeamSize > 0 {
		wctx.SetBeamSize(t.opt.BeamSize)
	}
	if t.opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(t.opt.InitialPrompt)
	}

	if err := wctx.Process(pcm16k, nil, nil, nil); err != nil {
		return "", fmt.Errorf("process: %w", err)
	}

	var parts []string
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("next segment: %w", err)
		}
		parts = append(parts, s.Text)
	}

	return CleanText(strings.Join(parts, " ")), nil
}

func CleanText(s string) string {
	s = annotationRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}
