package agent

import (
	"fmt"
	log "log/slog"
	"strings"
)

type triggerer interface {
	Trigger()
}

// Control applies an out-of-band command from the control socket or the
// hub and returns the phase the agent is in afterwards.
//
//   - wake: interrupt whatever is going on and start listening
//   - stop: interrupt speech or a pending delegation
//   - status: report only
func (a *Agent) Control(cmd string) (string, error) {
	switch strings.ToLower(cmd) {
	case "wake":
		a.Token.Raise()
		t, ok := a.Listener.(triggerer)
		if !ok {
			return "", fmt.Errorf("listener cannot be triggered")
		}
		t.Trigger()
		log.Info("Wake requested")
	case "stop":
		a.Token.Raise()
		log.Info("Stop requested")
	case "status":
	default:
		return "", fmt.Errorf("unknown command %q", cmd)
	}

	return a.Status.Current().String(), nil
}
