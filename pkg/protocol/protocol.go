package protocol

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"regexp"
	"strings"
	"time"
)

// Message is one Monolith hub frame: TO:VERB:NOUN[:ARGS...]:FROM.
type Message struct {
	To   string
	Verb string
	Noun string
	Args []string
	From string
}

func (m *Message) String() string {
	parts := make([]string, 0, 4+len(m.Args))
	parts = append(parts, m.To, m.Verb, m.Noun)
	parts = append(parts, m.Args...)
	parts = append(parts, m.From)
	return strings.Join(parts, ":")
}

type PtclConfig struct {
	Shard   string
	Url     string
	Reconn  time.Duration
	EmitOut func(*Message)
}

// Protocol speaks the hub line protocol over a reconnecting websocket.
type Protocol struct {
	ws      *WebSocket
	shard   string
	emitOut func(*Message)
}

func NewProtocol(cfg PtclConfig) (*Protocol, error) {
	if !isToken(cfg.Shard) {
		return nil, fmt.Errorf("invalid shard name %q", cfg.Shard)
	}

	ws, err := NewWebSocket(cfg.Url, cfg.Reconn)
	if err != nil {
		return nil, err
	}

	return &Protocol{
		ws:      ws,
		shard:   cfg.Shard,
		emitOut: cfg.EmitOut,
	}, nil
}

func (ptcl *Protocol) Transmit(m Message) error {
	m.From = ptcl.shard
	msg := m.String()

	if err := ptcl.ws.Write([]byte(msg)); err != nil {
		log.Error("Failed to transmit", "msg", msg, "err", err)
		return err
	}
	return nil
}

// Run reads frames addressed to this shard (or ALL) until ctx is done,
// reconnecting whenever the hub goes away.
func (ptcl *Protocol) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		ptcl.ws.Close()
	}()

	for ctx.Err() == nil {
		in := ptcl.ws.Read()
		switch in.kind {
		case CONN_CLOSE, READ_FAILURE:
			if ctx.Err() != nil {
				return
			}
			log.Warn("Hub connection lost, reconnecting", "url", ptcl.ws.url, "err", in.err)
			if err := ptcl.ws.TryReconn(ctx); err != nil {
				return
			}
			log.Info("Reconnected to hub")

		case READ_OK:
			msg, err := Parse(string(in.msg))
			if err != nil {
				log.Warn("Failed to parse", "msg", string(in.msg), "err", err)
				continue
			}
			if msg.To != ptcl.shard && msg.To != "ALL" {
				continue
			}
			if ptcl.emitOut != nil {
				ptcl.emitOut(msg)
			}
		}
	}
}

func Parse(line string) (*Message, error) {
	s := strings.TrimSpace(line)
	if s == "" {
		return nil, errors.New("empty message")
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return nil, fmt.Errorf("invalid whitespace present")
	}

	parts := strings.Split(s, ":")
	if len(parts) < 4 {
		return nil, fmt.Errorf("too few fields: got %d, want >= 4", len(parts))
	}

	to, verb, noun := parts[0], parts[1], parts[2]
	from := parts[len(parts)-1]
	args := append([]string(nil), parts[3:len(parts)-1]...)

	if !isToken(to) && !isHexID(to) {
		return nil, fmt.Errorf("invalid TO token: %q", to)
	}
	if !isToken(from) && !isHexID(from) {
		return nil, fmt.Errorf("invalid FROM token: %q", from)
	}
	if !isToken(noun) || !isToken(verb) {
		return nil, fmt.Errorf("invalid NOUN/VERB: %q %q", noun, verb)
	}
	for i, a := range args {
		if !isToken(a) {
			return nil, fmt.Errorf("invalid ARG[%d]: %q", i, a)
		}
	}

	return &Message{
		To:   to,
		Verb: strings.ToUpper(verb),
		Noun: strings.ToUpper(noun),
		Args: args,
		From: from,
	}, nil
}

var (
	tokenRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	hexIDRe = regexp.MustCompile(`^[0-9A-F]{2}$`)
)

func isToken(s string) bool {
	return tokenRe.MatchString(s)
}

func isHexID(s string) bool {
	return hexIDRe.MatchString(strings.ToUpper(s))
}
