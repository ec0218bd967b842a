package actuator

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Port is everything the agent can do to the desktop. All calls are
// fire-and-forget: an error only means the command could not be started.
type Port interface {
	SetVolume(ctx context.Context, percent int) error
	StepVolume(ctx context.Context, deltaPercent int) error
	SetMute(ctx context.Context, muted bool) error
	Media(ctx context.Context, verb, player string) error
	Launch(ctx context.Context, command string) error
	SearchSpotify(ctx context.Context, query string) error
}

const defaultSink = "@DEFAULT_SINK@"

type DesktopConfig struct {
	// SpotifyWorker drives the Spotify UI on the ghost display.
	SpotifyWorker string
	// GhostDisplay is the X display the Spotify worker runs on.
	GhostDisplay string
	// GhostScript starts the ghost display when it is not running.
	GhostScript string
}

// Desktop drives PulseAudio (pactl), MPRIS players (playerctl) and the
// shell.
type Desktop struct {
	run Runner
	cfg DesktopConfig
}

func NewDesktop(run Runner, cfg DesktopConfig) *Desktop {
	if run == nil {
		run = ExecRunner{}
	}
	if cfg.GhostDisplay == "" {
		cfg.GhostDisplay = ":99"
	}
	return &Desktop{run: run, cfg: cfg}
}

func (d *Desktop) SetVolume(_ context.Context, percent int) error {
	percent = max(0, min(percent, 150))
	return d.run.Start(nil, "pactl", "set-sink-volume", defaultSink, percentArg(percent))
}

func (d *Desktop) StepVolume(_ context.Context, delta int) error {
	return d.run.Start(nil, "pactl", "set-sink-volume", defaultSink, fmt.Sprintf("%+d%%", delta))
}

func (d *Desktop) SetMute(_ context.Context, muted bool) error {
	flag := "0"
	if muted {
		flag = "1"
	}
	return d.run.Start(nil, "pactl", "set-sink-mute", defaultSink, flag)
}

func (d *Desktop) Media(_ context.Context, verb, player string) error {
	args := []string{verb}
	if player != "" {
		args = []string{"-p", player, verb}
	}
	return d.run.Start(nil, "playerctl", args...)
}

// Launch runs command through the shell so table entries may carry
// arguments.
func (d *Desktop) Launch(_ context.Context, command string) error {
	if command == "" {
		return errors.New("empty launch command")
	}
	return d.run.Start(nil, "sh", "-c", command)
}

func (d *Desktop) SearchSpotify(_ context.Context, query string) error {
	if d.cfg.SpotifyWorker == "" {
		return errors.New("spotify worker not configured")
	}
	return d.run.Start([]string{"DISPLAY=" + d.cfg.GhostDisplay}, d.cfg.SpotifyWorker, query)
}

// EnsureGhost starts the ghost display (Xvfb with Spotify) unless it is
// already up, then gives it a few seconds to settle.
func (d *Desktop) EnsureGhost(ctx context.Context) error {
	if d.run.Run(ctx, "xdpyinfo", "-display", d.cfg.GhostDisplay) == nil {
		log.Info("Ghost display already running", "display", d.cfg.GhostDisplay)
		return nil
	}

	if d.cfg.GhostScript == "" {
		return errors.New("ghost display down and no ghost script configured")
	}
	if _, err := os.Stat(d.cfg.GhostScript); err != nil {
		return fmt.Errorf("ghost script: %w", err)
	}

	log.Info("Starting ghost display", "script", d.cfg.GhostScript)

	if err := d.run.Start(nil, d.cfg.GhostScript); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
	}
	return nil
}

// WorkerNextTo resolves a helper binary that ships next to the executable.
func WorkerNextTo(name string) string {
	exe, err := os.Executable()
	if err != nil {
		return name
	}
	return filepath.Join(filepath.Dir(exe), name)
}

var _ Port = (*Desktop)(nil)

func percentArg(v int) string {
	return strconv.Itoa(v) + "%"
}
