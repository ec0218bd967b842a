package actuator

import (
	"context"
	"fmt"
	log "log/slog"
	"os"
	"os/exec"
	"strings"
)

// Runner executes external commands.
type Runner interface {
	// Start launches a command without waiting for it.
	Start(env []string, name string, args ...string) error
	// Run waits for the command to finish.
	Run(ctx context.Context, name string, args ...string) error
	// Output waits and returns stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type ExecRunner struct{}

func (ExecRunner) Start(env []string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			log.Debug("Command exited", "cmd", name+" "+strings.Join(args, " "), "err", err)
		}
	}()

	return nil
}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
