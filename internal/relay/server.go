package relay

import (
	"context"
	"encoding/json"
	"errors"
	log "log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jarvis/internal/status"
)

const (
	clientQueue  = 16
	writeTimeout = 5 * time.Second
)

// Frame is what display clients receive on every phase change.
type Frame struct {
	Name string `json:"event"`
	status.Event
}

func frameOf(ev status.Event) Frame {
	return Frame{Name: "status_update", Event: ev}
}

// Server pushes phase changes to display clients over websockets. Each
// client has its own queue and writer, so a stuck client only loses its
// own frames.
type Server struct {
	status   *status.Channel
	sub      *status.Subscription
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan Frame
}

func NewServer(ch *status.Channel) *Server {
	return &Server{
		status: ch,
		sub:    ch.Subscribe(),
		upgrader: websocket.Upgrader{
			// the display is a local webview served from anywhere
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/status", s.serveStatus)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Run relays every phase published since NewServer to connected clients
// until ctx is done.
func (s *Server) Run(ctx context.Context) {
	defer s.sub.Close()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case ev, ok := <-s.sub.C():
			if !ok {
				return
			}
			s.broadcast(frameOf(ev))
		}
	}
}

// ListenAndServe serves Handler on addr and relays until ctx is done. When
// addr cannot be bound the server stops listening to the status channel.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.sub.Close()
		return err
	}

	srv := &http.Server{Handler: s.Handler()}

	go s.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("Status server listening", "addr", ln.Addr().String())

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) serveStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]status.Phase{"status": s.status.Current()})
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Websocket upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn, send: make(chan Frame, clientQueue)}

	// the current phase goes first, before any broadcast can reach c
	s.mu.Lock()
	c.send <- frameOf(status.Event{Phase: s.status.Current(), At: time.Now()})
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	log.Debug("Display connected", "remote", r.RemoteAddr)

	go s.writeLoop(c)
	s.readLoop(c)
}

// readLoop only exists to notice disconnects; clients never send anything
// the agent acts on.
func (s *Server) readLoop(c *client) {
	defer s.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(c *client) {
	for f := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(f); err != nil {
			log.Warn("Failed to notify display", "err", err)
			c.conn.Close()
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	c.conn.Close()
}

func (s *Server) broadcast(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		select {
		case c.send <- f:
		default:
			log.Warn("Display lagging, dropping frame", "status", f.Phase)
		}
	}
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
