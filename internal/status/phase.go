package status

import (
	"fmt"
	"strings"
)

// Phase is the coarse state shown on the display surface.
type Phase uint8

const (
	Idle Phase = iota
	Hidden
	Listening
	Thinking
	Speaking
)

var phaseNames = [...]string{
	Idle:      "IDLE",
	Hidden:    "HIDDEN",
	Listening: "LISTENING",
	Thinking:  "THINKING",
	Speaking:  "SPEAKING",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("PHASE(%d)", uint8(p))
}

func ParsePhase(s string) (Phase, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range phaseNames {
		if name == s {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
