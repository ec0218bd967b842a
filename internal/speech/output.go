package speech

import (
	"context"
	log "log/slog"
	"time"

	"jarvis/internal/cancel"
	"jarvis/internal/metrics"
	"jarvis/internal/status"
)

type Outcome int

const (
	Spoken Outcome = iota
	Aborted
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Spoken:
		return "spoken"
	case Aborted:
		return "aborted"
	default:
		return "failed"
	}
}

// Playback is synthesized audio ready to be played once.
type Playback interface {
	Play() error
	Active() bool
	Stop()
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Playback, error)
}

// Ducker lowers everybody else's audio while the agent talks.
type Ducker interface {
	DuckOthers(ctx context.Context, factor float64, duration time.Duration) error
	UnduckOthers(ctx context.Context, duration time.Duration) error
}

const (
	DefaultPollInterval = 100 * time.Millisecond
	duckFactor          = 0.3
	duckFade            = 150 * time.Millisecond
)

type Output struct {
	synth  Synthesizer
	status *status.Channel
	token  *cancel.Token
	ducker Ducker
	poll   time.Duration
	sleep  func(time.Duration)
}

type Option func(*Output)

func WithDucker(d Ducker) Option {
	return func(o *Output) { o.ducker = d }
}

func WithPollInterval(d time.Duration) Option {
	return func(o *Output) { o.poll = d }
}

// WithSleep replaces time.Sleep in the playback wait loop.
func WithSleep(sleep func(time.Duration)) Option {
	return func(o *Output) { o.sleep = sleep }
}

func NewOutput(synth Synthesizer, ch *status.Channel, token *cancel.Token, opts ...Option) *Output {
	o := &Output{
		synth:  synth,
		status: ch,
		token:  token,
		poll:   DefaultPollInterval,
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Say speaks text and waits for playback to finish. Speaking is published
// only while audio is actually playing; the phase seen before the call is
// restored afterwards. A raised token stops playback at the next poll.
func (o *Output) Say(ctx context.Context, text string) Outcome {
	out := o.say(ctx, text)
	metrics.Get().Speech.WithLabelValues(out.String()).Inc()
	return out
}

func (o *Output) say(ctx context.Context, text string) Outcome {
	if text == "" {
		return Spoken
	}
	if o.token.Raised() {
		return Aborted
	}

	prev := o.status.Current()

	log.Info("Speaking", "text", text)

	pb, err := o.synth.Synthesize(ctx, text)
	if err != nil {
		log.Error("Failed to synthesize", "err", err)
		return Failed
	}

	if o.ducker != nil {
		if err := o.ducker.DuckOthers(ctx, duckFactor, duckFade); err != nil {
			log.Warn("Failed to duck other streams", "err", err)
		}
		defer func() {
			if err := o.ducker.UnduckOthers(context.WithoutCancel(ctx), duckFade); err != nil {
				log.Warn("Failed to restore other streams", "err", err)
			}
		}()
	}

	if err := pb.Play(); err != nil {
		log.Error("Failed to play speech", "err", err)
		return Failed
	}

	o.status.Publish(status.Speaking)
	defer o.status.Publish(prev)

	for pb.Active() {
		if o.token.Raised() || ctx.Err() != nil {
			pb.Stop()
			log.Info("Speech interrupted")
			return Aborted
		}
		o.sleep(o.poll)
	}

	return Spoken
}
