package agent

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	"jarvis/internal/actuator"
	"jarvis/internal/cancel"
	"jarvis/internal/nlu"
	"jarvis/internal/speech"
	"jarvis/internal/status"
	"jarvis/internal/vision"
)

type Listener interface {
	WaitForWake(ctx context.Context) (string, error)
	StripWake(heard string) nlu.Command
	Command(ctx context.Context) (nlu.Command, bool)
}

type Speaker interface {
	Say(ctx context.Context, text string) speech.Outcome
}

type Confirmer interface {
	Confirm(ctx context.Context, keyword string) vision.Result
}

// Delegate answers free-form commands.
type Delegate interface {
	Delegate(ctx context.Context, text string) (string, error)
}

type Chimer interface {
	Chime(ctx context.Context) error
}

type Deps struct {
	Listener  Listener
	Speaker   Speaker
	Confirmer Confirmer
	Delegate  Delegate
	Chime     Chimer // optional
	Desktop   actuator.Port
	Router    *nlu.Router
	Status    *status.Channel
	Token     *cancel.Token
}

// Agent runs the wake, listen, think, act cycle. One Run per Agent; every
// step of a cycle happens on the Run goroutine.
type Agent struct {
	Deps
	watchTick time.Duration
}

func New(d Deps) (*Agent, error) {
	switch {
	case d.Listener == nil:
		return nil, errors.New("agent: no listener")
	case d.Speaker == nil:
		return nil, errors.New("agent: no speaker")
	case d.Confirmer == nil:
		return nil, errors.New("agent: no confirmer")
	case d.Delegate == nil:
		return nil, errors.New("agent: no delegate")
	case d.Desktop == nil:
		return nil, errors.New("agent: no desktop")
	case d.Router == nil:
		return nil, errors.New("agent: no router")
	case d.Status == nil:
		return nil, errors.New("agent: no status channel")
	}
	if d.Token == nil {
		d.Token = cancel.New()
	}
	return &Agent{Deps: d, watchTick: speech.DefaultPollInterval}, nil
}

// Run cycles until ctx is done and returns ctx.Err().
func (a *Agent) Run(ctx context.Context) error {
	log.Info("Agent running")

	for {
		if err := a.cycle(ctx); err != nil {
			return err
		}
	}
}

func (a *Agent) cycle(ctx context.Context) error {
	a.Token.Clear()
	a.Status.Publish(status.Idle)

	heard, err := a.Listener.WaitForWake(ctx)
	if err != nil {
		return err
	}
	// a manual wake raises the token to preempt; the new cycle starts clean
	a.Token.Clear()

	cmd := a.Listener.StripWake(heard)
	if cmd.Empty() {
		if a.Chime != nil {
			if err := a.Chime.Chime(ctx); err != nil {
				log.Warn("Failed to chime", "err", err)
			}
		}
		a.Speaker.Say(ctx, "Yes?")

		var ok bool
		if cmd, ok = a.Listener.Command(ctx); !ok {
			a.Status.Publish(status.Hidden)
			return ctx.Err()
		}
	}

	a.Status.Publish(status.Thinking)

	intent := a.Router.Route(cmd)
	log.Info("Routed command", "cmd", cmd, "intent", intent.Kind())

	if err := a.Dispatch(ctx, intent); err != nil {
		log.Error("Failed to handle command", "intent", intent.Kind(), "err", err)
	}

	a.Status.Publish(status.Hidden)
	return ctx.Err()
}

// Dispatch runs the handler of intent. Handler panics come back as errors.
func (a *Agent) Dispatch(ctx context.Context, intent nlu.Intent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return a.dispatch(ctx, intent)
}
