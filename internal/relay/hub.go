package relay

import (
	"context"
	log "log/slog"

	"jarvis/internal/status"
	"jarvis/pkg/protocol"
)

type transmitter interface {
	Transmit(m protocol.Message) error
}

// Hub mirrors phase changes to the Monolith hub as ALL:STATUS:<PHASE>
// frames. Commands coming from the hub are handled by the protocol's
// EmitOut callback, not here.
type Hub struct {
	ptcl transmitter
	sub  *status.Subscription
}

func NewHub(ptcl transmitter, ch *status.Channel) *Hub {
	return &Hub{ptcl: ptcl, sub: ch.Subscribe()}
}

func StatusMessage(p status.Phase) protocol.Message {
	return protocol.Message{To: "ALL", Verb: "STATUS", Noun: p.String()}
}

func (h *Hub) Run(ctx context.Context) {
	defer h.sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-h.sub.C():
			if !ok {
				return
			}
			if err := h.ptcl.Transmit(StatusMessage(ev.Phase)); err != nil {
				log.Warn("Failed to mirror status to hub", "status", ev.Phase, "err", err)
			}
		}
	}
}
