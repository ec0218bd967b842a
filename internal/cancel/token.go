package cancel

import (
	"context"
	"sync/atomic"
	"time"
)

// Token is a resettable stop flag shared by the orchestrator and the
// long-running actions it starts. Actions poll Raised and bail out on their
// own; nothing is interrupted forcibly.
type Token struct {
	raised atomic.Bool
}

func New() *Token {
	return &Token{}
}

func (t *Token) Raise() {
	t.raised.Store(true)
}

func (t *Token) Clear() {
	t.raised.Store(false)
}

func (t *Token) Raised() bool {
	return t.raised.Load()
}

// Watch derives a context that is cancelled as soon as the token is seen
// raised. The token is polled every tick.
func (t *Token) Watch(parent context.Context, tick time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	if t.Raised() {
		cancel()
		return ctx, cancel
	}

	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if t.Raised() {
					cancel()
					return
				}
			}
		}
	}()

	return ctx, cancel
}
