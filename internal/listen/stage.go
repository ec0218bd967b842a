package listen

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"time"

	"jarvis/internal/audio"
	"jarvis/internal/nlu"
	"jarvis/internal/status"
)

const (
	DefaultWakePhrase     = "hey jarvis"
	DefaultCommandTimeout = 5 * time.Second
	calibrationTime       = 500 * time.Millisecond
	wakeRetryDelay        = 250 * time.Millisecond
)

// ErrTimeout is returned by transcribers when no speech started in time.
var ErrTimeout = audio.ErrWaitTimeout

// Transcriber captures one phrase and returns what was said.
type Transcriber interface {
	Transcribe(ctx context.Context, c audio.Capture) (string, error)
}

// Calibrator adjusts to the ambient noise level before listening.
type Calibrator interface {
	Calibrate(ctx context.Context, d time.Duration) error
}

var (
	wakeCapture = audio.Capture{
		PauseThreshold: 800 * time.Millisecond,
		PhraseLimit:    8 * time.Second,
	}
	commandCapture = audio.Capture{
		SilenceTimeout: DefaultCommandTimeout,
		PauseThreshold: 2 * time.Second,
	}
)

type Stage struct {
	tr      Transcriber
	cal     Calibrator
	status  *status.Channel
	wake    string
	command audio.Capture
	manual  chan struct{}
	retry   time.Duration
}

type Option func(*Stage)

func WithWakePhrase(p string) Option {
	return func(s *Stage) { s.wake = string(nlu.Normalize(p)) }
}

func WithCommandTimeout(d time.Duration) Option {
	return func(s *Stage) { s.command.SilenceTimeout = d }
}

func WithCalibrator(c Calibrator) Option {
	return func(s *Stage) { s.cal = c }
}

func NewStage(tr Transcriber, ch *status.Channel, opts ...Option) *Stage {
	s := &Stage{
		tr:      tr,
		status:  ch,
		wake:    DefaultWakePhrase,
		command: commandCapture,
		manual:  make(chan struct{}, 1),
		retry:   wakeRetryDelay,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Stage) WakePhrase() string {
	return s.wake
}

// Trigger wakes the agent as if the wake phrase had been heard. Repeated
// triggers before the next wait collapse into one.
func (s *Stage) Trigger() {
	select {
	case s.manual <- struct{}{}:
	default:
	}
}

func (s *Stage) calibrate(ctx context.Context) {
	if s.cal == nil {
		return
	}
	if err := s.cal.Calibrate(ctx, calibrationTime); err != nil {
		log.Warn("Failed to calibrate", "err", err)
	}
}

// WaitForWake blocks until an utterance contains the wake phrase and
// returns it normalized. Failed or unrelated transcriptions are ignored.
// It only gives up when ctx is done.
func (s *Stage) WaitForWake(ctx context.Context) (string, error) {
	s.status.Publish(status.Hidden)
	s.calibrate(ctx)

	log.Info("Waiting for wake phrase", "phrase", s.wake)

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-s.manual:
			log.Info("Manual wake")
			return s.wake, nil
		default:
		}

		text, triggered, err := s.attempt(ctx)
		if triggered {
			log.Info("Manual wake")
			return s.wake, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			failures++
			if failures == 1 {
				log.Warn("Wake transcription failed", "err", err)
			} else {
				log.Debug("Wake transcription failed", "err", err, "failures", failures)
			}
			if !s.backoff(ctx) {
				return "", ctx.Err()
			}
			continue
		}
		failures = 0

		heard := string(nlu.Normalize(text))
		if strings.Contains(heard, s.wake) {
			log.Info("Wake phrase detected", "text", heard)
			return heard, nil
		}
		log.Debug("Ignoring utterance", "text", heard)
	}
}

// backoff pauses after a failed attempt. A manual trigger stays queued.
func (s *Stage) backoff(ctx context.Context) bool {
	t := time.NewTimer(s.retry)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// attempt runs one wake transcription that a manual trigger can cut short.
func (s *Stage) attempt(ctx context.Context) (string, bool, error) {
	actx, cancel := context.WithCancel(ctx)

	triggered := false
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-s.manual:
			triggered = true
			cancel()
		case <-actx.Done():
		}
	}()

	text, err := s.tr.Transcribe(actx, wakeCapture)
	cancel()
	<-done

	return text, triggered, err
}

// StripWake removes the wake phrase, leaving whatever command followed it.
func (s *Stage) StripWake(heard string) nlu.Command {
	return nlu.Normalize(strings.ReplaceAll(heard, s.wake, ""))
}

// Command captures a follow-up command. Silence, timeouts and failed
// transcriptions all come back as ok == false.
func (s *Stage) Command(ctx context.Context) (nlu.Command, bool) {
	s.status.Publish(status.Listening)
	s.calibrate(ctx)

	log.Info("Listening for command")

	text, err := s.tr.Transcribe(ctx, s.command)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			log.Info("No command before timeout")
		} else {
			log.Warn("Command transcription failed", "err", err)
		}
		return "", false
	}

	cmd := nlu.Normalize(text)
	if cmd.Empty() {
		return "", false
	}

	s.status.Publish(status.Thinking)
	log.Info("Heard command", "cmd", cmd)

	return cmd, true
}
