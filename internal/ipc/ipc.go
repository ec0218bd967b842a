package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"time"
)

const DefaultSocketPath = "/tmp/jarvis.sock"

const (
	CmdWake   = "wake"
	CmdStop   = "stop"
	CmdStatus = "status"
)

type ControlMessage struct {
	Cmd string `json:"cmd"`
}

type Reply struct {
	OK     bool   `json:"ok"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

type Handler func(ControlMessage) Reply

// StartServer listens on path and serves control messages until ctx is done.
func StartServer(ctx context.Context, path string, handler Handler) error {
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
		os.Remove(path)
	}()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				log.Warn("ipc accept failed", "err", err)
				continue
			}
			go handleConn(conn, handler)
		}
	}()

	return nil
}

func handleConn(conn net.Conn, handler Handler) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		json.NewEncoder(conn).Encode(Reply{Error: "bad request"})
		return
	}
	json.NewEncoder(conn).Encode(handler(msg))
}

func SendCommand(path, cmd string) (Reply, error) {
	var reply Reply

	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return reply, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd}); err != nil {
		return reply, fmt.Errorf("send: %w", err)
	}
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return reply, fmt.Errorf("reply: %w", err)
	}
	return reply, nil
}
