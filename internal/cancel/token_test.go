package cancel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRaiseClearIdempotent(t *testing.T) {
	tok := New()
	assert.False(t, tok.Raised())

	tok.Raise()
	tok.Raise()
	assert.True(t, tok.Raised())

	tok.Clear()
	tok.Clear()
	assert.False(t, tok.Raised())
}

func TestWatchCancelsOnRaise(t *testing.T) {
	tok := New()

	ctx, stop := tok.Watch(context.Background(), 5*time.Millisecond)
	defer stop()

	require.NoError(t, ctx.Err())
	tok.Raise()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("watch context was not cancelled after raise")
	}
}

func TestWatchAlreadyRaised(t *testing.T) {
	tok := New()
	tok.Raise()

	ctx, stop := tok.Watch(context.Background(), time.Hour)
	defer stop()

	assert.Error(t, ctx.Err())
}

func TestWatchStopsWithParent(t *testing.T) {
	tok := New()
	parent, cancel := context.WithCancel(context.Background())

	ctx, stop := tok.Watch(parent, 5*time.Millisecond)
	defer stop()

	cancel()
	<-ctx.Done()
	assert.False(t, tok.Raised())
}
