package agent

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"

	"jarvis/internal/metrics"
	"jarvis/internal/nlu"
)

const volumeStep = 10

func (a *Agent) dispatch(ctx context.Context, intent nlu.Intent) error {
	metrics.Get().Intents.WithLabelValues(string(intent.Kind())).Inc()

	switch in := intent.(type) {
	case nlu.Volume:
		return a.volume(ctx, in)
	case nlu.Media:
		return a.media(ctx, in)
	case nlu.SpotifySearch:
		return a.spotifySearch(ctx, in)
	case nlu.Arithmetic:
		return a.arithmetic(ctx, in)
	case nlu.AppLaunch:
		return a.appLaunch(ctx, in)
	case nlu.FreeForm:
		return a.freeForm(ctx, in)
	default:
		return fmt.Errorf("unknown intent %T", intent)
	}
}

func (a *Agent) volume(ctx context.Context, in nlu.Volume) error {
	var reply string

	switch in.Op {
	case nlu.VolumeSet:
		if err := a.Desktop.SetMute(ctx, false); err != nil {
			return err
		}
		if err := a.Desktop.SetVolume(ctx, in.Level); err != nil {
			return err
		}
		reply = fmt.Sprintf("Volume set to %d percent.", in.Level)
	case nlu.VolumeMute:
		if err := a.Desktop.SetMute(ctx, true); err != nil {
			return err
		}
		reply = "Muted."
	case nlu.VolumeUnmute:
		if err := a.Desktop.SetMute(ctx, false); err != nil {
			return err
		}
		reply = "Unmuted."
	case nlu.VolumeUp:
		if err := a.Desktop.SetMute(ctx, false); err != nil {
			return err
		}
		if err := a.Desktop.StepVolume(ctx, volumeStep); err != nil {
			return err
		}
		reply = "Volume up."
	case nlu.VolumeDown:
		if err := a.Desktop.StepVolume(ctx, -volumeStep); err != nil {
			return err
		}
		reply = "Volume down."
	default:
		return nil
	}

	a.Speaker.Say(ctx, reply)
	return nil
}

func (a *Agent) media(ctx context.Context, in nlu.Media) error {
	var verb, reply string

	switch in.Op {
	case nlu.MediaPlay:
		verb = "play"
		if in.Target != "" {
			reply = "Resuming Spotify."
		}
	case nlu.MediaPause:
		verb = "pause"
		if in.Target != "" {
			reply = "Pausing Spotify."
		}
	case nlu.MediaNext:
		verb, reply = "next", "Next."
	default:
		return fmt.Errorf("unknown media op %q", in.Op)
	}

	if err := a.Desktop.Media(ctx, verb, in.Target); err != nil {
		return err
	}

	if reply != "" {
		a.Speaker.Say(ctx, reply)
	}
	return nil
}

func (a *Agent) spotifySearch(ctx context.Context, in nlu.SpotifySearch) error {
	a.Speaker.Say(ctx, "Queuing "+in.Query)

	if err := a.Desktop.SearchSpotify(ctx, in.Query); err != nil {
		log.Error("Failed to start spotify worker", "query", in.Query, "err", err)
		a.Speaker.Say(ctx, "I couldn't start the background task.")
	}
	return nil
}

func (a *Agent) arithmetic(ctx context.Context, in nlu.Arithmetic) error {
	n, err := nlu.Eval(in.Expression)
	if err != nil {
		log.Info("Not a computable expression", "expr", in.Expression, "err", err)
		return nil
	}

	a.Speaker.Say(ctx, "The result is "+n.String())
	return nil
}

func (a *Agent) appLaunch(ctx context.Context, in nlu.AppLaunch) error {
	if err := a.Desktop.Launch(ctx, in.App.LaunchCommand); err != nil {
		log.Error("Failed to launch", "app", in.AppID, "err", err)
		a.Speaker.Say(ctx, fmt.Sprintf("I couldn't launch %s.", in.AppID))
		return nil
	}

	a.Speaker.Say(ctx, "Checking visual feed...")

	kw := in.App.ConfirmationKeyword
	res := a.Confirmer.Confirm(ctx, kw)
	log.Info("Visual confirmation", "app", in.AppID, "found", res.Found, "attempts", res.Attempts)

	if res.Found {
		metrics.Get().Confirmations.WithLabelValues("found").Inc()
		a.Speaker.Say(ctx, fmt.Sprintf("I see %s.", kw))
	} else {
		metrics.Get().Confirmations.WithLabelValues("missing").Inc()
		a.Speaker.Say(ctx, fmt.Sprintf("I opened it, but I don't see the %s window yet.", kw))
	}
	return nil
}

func (a *Agent) freeForm(ctx context.Context, in nlu.FreeForm) error {
	if a.Token.Raised() {
		return nil
	}

	dctx, stop := a.Token.Watch(ctx, a.watchTick)
	defer stop()

	reply, err := a.Delegate.Delegate(dctx, in.Text)
	if err != nil {
		if errors.Is(dctx.Err(), context.Canceled) && ctx.Err() == nil {
			log.Info("Delegation cancelled")
			return nil
		}
		return fmt.Errorf("delegate: %w", err)
	}

	a.Speaker.Say(ctx, reply)
	return nil
}
