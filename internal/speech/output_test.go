package speech

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/cancel"
	"jarvis/internal/status"
)

type fakePlayback struct {
	polls   atomic.Int32
	length  int32 // number of Active() calls that report true
	stopped atomic.Bool
	playErr error
}

func (p *fakePlayback) Play() error { return p.playErr }

func (p *fakePlayback) Active() bool {
	if p.stopped.Load() {
		return false
	}
	return p.polls.Add(1) <= p.length
}

func (p *fakePlayback) Stop() { p.stopped.Store(true) }

type fakeSynth struct {
	mu    sync.Mutex
	texts []string
	pb    *fakePlayback
	err   error
}

func (s *fakeSynth) Synthesize(_ context.Context, text string) (Playback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	if s.err != nil {
		return nil, s.err
	}
	return s.pb, nil
}

type fakeDucker struct {
	ducked, unducked int
}

func (d *fakeDucker) DuckOthers(context.Context, float64, time.Duration) error {
	d.ducked++
	return nil
}

func (d *fakeDucker) UnduckOthers(context.Context, time.Duration) error {
	d.unducked++
	return nil
}

func phases(s *status.Subscription) []status.Phase {
	var out []status.Phase
	for {
		select {
		case ev := <-s.C():
			out = append(out, ev.Phase)
		default:
			return out
		}
	}
}

func TestSayPlaysToCompletion(t *testing.T) {
	ch := status.NewChannel(16)
	ch.Publish(status.Thinking)
	sub := ch.Subscribe()

	synth := &fakeSynth{pb: &fakePlayback{length: 3}}
	duck := &fakeDucker{}
	var sleeps int
	out := NewOutput(synth, ch, cancel.New(), WithDucker(duck), WithSleep(func(time.Duration) { sleeps++ }))

	assert.Equal(t, Spoken, out.Say(context.Background(), "Volume up."))
	assert.Equal(t, []string{"Volume up."}, synth.texts)
	assert.Equal(t, 3, sleeps)
	assert.Equal(t, []status.Phase{status.Speaking, status.Thinking}, phases(sub))
	assert.Equal(t, 1, duck.ducked)
	assert.Equal(t, 1, duck.unducked)
}

func TestSayStopsOnRaise(t *testing.T) {
	ch := status.NewChannel(16)
	ch.Publish(status.Hidden)
	sub := ch.Subscribe()

	tok := cancel.New()
	pb := &fakePlayback{length: 1 << 30}
	out := NewOutput(&fakeSynth{pb: pb}, ch, tok, WithPollInterval(10*time.Millisecond))

	go func() {
		time.Sleep(50 * time.Millisecond)
		tok.Raise()
	}()

	start := time.Now()
	got := out.Say(context.Background(), "a very long answer")
	elapsed := time.Since(start) - 50*time.Millisecond

	assert.Equal(t, Aborted, got)
	assert.True(t, pb.stopped.Load())
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, []status.Phase{status.Speaking, status.Hidden}, phases(sub))
	assert.Equal(t, status.Hidden, ch.Current())
}

func TestSayAlreadyRaised(t *testing.T) {
	ch := status.NewChannel(4)
	sub := ch.Subscribe()
	tok := cancel.New()
	tok.Raise()
	synth := &fakeSynth{pb: &fakePlayback{length: 1}}

	assert.Equal(t, Aborted, NewOutput(synth, ch, tok).Say(context.Background(), "Yes?"))
	assert.Empty(t, synth.texts)
	assert.Empty(t, phases(sub))
}

func TestSaySynthesisFailure(t *testing.T) {
	ch := status.NewChannel(4)
	sub := ch.Subscribe()
	synth := &fakeSynth{err: errors.New("espeak missing")}

	assert.Equal(t, Failed, NewOutput(synth, ch, cancel.New()).Say(context.Background(), "hello"))
	assert.Empty(t, phases(sub), "speaking must not be published without audio")
}

func TestSayPlayFailure(t *testing.T) {
	ch := status.NewChannel(4)
	sub := ch.Subscribe()
	synth := &fakeSynth{pb: &fakePlayback{playErr: errors.New("no device")}}

	assert.Equal(t, Failed, NewOutput(synth, ch, cancel.New()).Say(context.Background(), "hello"))
	assert.Empty(t, phases(sub))
}

func TestSayEmptyText(t *testing.T) {
	synth := &fakeSynth{}
	out := NewOutput(synth, status.NewChannel(1), cancel.New())
	require.Equal(t, Spoken, out.Say(context.Background(), ""))
	assert.Empty(t, synth.texts)
}
