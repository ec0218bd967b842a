package vision

import (
	"context"
	log "log/slog"
	"strings"
	"time"
)

const (
	Attempts = 5
	Interval = 2 * time.Second
)

// Screen returns the text currently visible on screen, lowercased.
type Screen interface {
	CaptureText(ctx context.Context) (string, error)
}

type Result struct {
	Found    bool
	Attempts int
}

// Poller looks for a keyword on screen after an action with a visible
// effect. It is not interruptible by the cancellation token: once started
// it runs all attempts unless the keyword shows up.
type Poller struct {
	screen   Screen
	attempts int
	interval time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

type Option func(*Poller)

// WithSleep swaps the wait between attempts, e.g. for a simulated clock.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Poller) { p.sleep = sleep }
}

func NewPoller(screen Screen, opts ...Option) *Poller {
	p := &Poller{
		screen:   screen,
		attempts: Attempts,
		interval: Interval,
		sleep:    sleepCtx,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Confirm waits, looks, and repeats until keyword appears or the attempts
// run out. Screen errors count as a miss. ctx only matters for shutdown.
func (p *Poller) Confirm(ctx context.Context, keyword string) Result {
	keyword = strings.ToLower(keyword)

	for i := 1; i <= p.attempts; i++ {
		if err := p.sleep(ctx, p.interval); err != nil {
			return Result{Attempts: i - 1}
		}

		text, err := p.screen.CaptureText(ctx)
		if err != nil {
			log.Warn("Vision error", "attempt", i, "err", err)
			continue
		}

		if strings.Contains(strings.ToLower(text), keyword) {
			log.Info("Keyword on screen", "keyword", keyword, "attempt", i)
			return Result{Found: true, Attempts: i}
		}
		log.Debug("Keyword not on screen yet", "keyword", keyword, "attempt", i)
	}

	return Result{Attempts: p.attempts}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
