package status

import (
	log "log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"jarvis/internal/metrics"
)

const DefaultDepth = 32

// Event is one phase transition as delivered to subscribers.
type Event struct {
	ID    uuid.UUID `json:"id"`
	Phase Phase     `json:"status"`
	At    time.Time `json:"at"`
}

// Channel broadcasts phase transitions. Publish never blocks: every
// subscriber has its own bounded queue and the oldest pending event is
// dropped when the queue is full.
type Channel struct {
	mu      sync.Mutex
	current Phase
	subs    map[*Subscription]struct{}
	depth   int
	now     func() time.Time
}

func NewChannel(depth int) *Channel {
	if depth <= 0 {
		depth = DefaultDepth
	}

	return &Channel{
		current: Hidden,
		subs:    make(map[*Subscription]struct{}),
		depth:   depth,
		now:     time.Now,
	}
}

// Publish records p as the current phase and fans it out. Holding the lock
// for the fan-out keeps delivery in publish order for every subscriber.
func (c *Channel) Publish(p Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = p
	metrics.Get().Phase.Set(float64(p))

	ev := Event{
		ID:    uuid.New(),
		Phase: p,
		At:    c.now(),
	}

	log.Debug("Status", "phase", p)

	for s := range c.subs {
		s.offer(ev)
	}
}

func (c *Channel) Current() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Channel) Subscribe() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Subscription{
		ch:     make(chan Event, c.depth),
		parent: c,
	}
	c.subs[s] = struct{}{}

	return s
}

func (c *Channel) unsubscribe(s *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subs[s]; !ok {
		return
	}
	delete(c.subs, s)
	close(s.ch)
}

type Subscription struct {
	ch      chan Event
	parent  *Channel
	dropped uint64
}

// C is closed once the subscription is closed.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

func (s *Subscription) Close() {
	s.parent.unsubscribe(s)
}

// Dropped reports how many events were discarded for this subscriber.
func (s *Subscription) Dropped() uint64 {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	return s.dropped
}

// offer runs with the parent lock held, so only the consumer competes for
// the queue and the loop ends after at most one eviction.
func (s *Subscription) offer(ev Event) {
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}

		select {
		case old := <-s.ch:
			s.dropped++
			metrics.Get().StatusDropped.Inc()
			log.Warn("Status subscriber lagging, dropped event", "phase", old.Phase)
		default:
		}
	}
}
