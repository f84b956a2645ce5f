package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain/repositories"
)

const (
	// maxStderr bounds how much of a failing command's stderr ends up in errors
	maxStderr = 512

	// waitDelay caps how long output pipes may outlive a killed process
	waitDelay = time.Second
)

// SplitCommand splits a command line using shell quoting rules
func SplitCommand(commandLine string) ([]string, error) {
	if strings.TrimSpace(commandLine) == "" {
		return nil, nil
	}
	argv, err := shlex.Split(commandLine)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid command line %q: %v", domain.ErrConfiguration, commandLine, err)
	}
	return argv, nil
}

// CommandPlayer plays WAV data by piping it to an external program
type CommandPlayer struct {
	argv    []string
	timeout time.Duration
	logger  *zap.Logger
}

// Ensure CommandPlayer implements the AudioPlayer interface
var _ repositories.AudioPlayer = (*CommandPlayer)(nil)

// NewCommandPlayer creates a player for argv. A zero timeout waits for the
// program to exit on its own.
func NewCommandPlayer(argv []string, timeout time.Duration, logger *zap.Logger) *CommandPlayer {
	return &CommandPlayer{
		argv:    argv,
		timeout: timeout,
		logger:  logger,
	}
}

// Play writes wav to the program's stdin and waits for it to exit. When the
// timeout elapses the program is killed and ErrPlaybackTimeout is returned.
func (p *CommandPlayer) Play(ctx context.Context, wav []byte) error {
	if len(p.argv) == 0 {
		return fmt.Errorf("%w: play command is required", domain.ErrConfiguration)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.argv[0], p.argv[1:]...)
	cmd.Stdin = bytes.NewReader(wav)
	cmd.WaitDelay = waitDelay

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	p.logger.Debug("Running play command",
		zap.Strings("command", p.argv),
		zap.Int("bytes", len(wav)))

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if p.timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %s", domain.ErrPlaybackTimeout, p.timeout, p.argv[0])
		}
		return fmt.Errorf("%w: %s: %v%s", domain.ErrExternalProcess, p.argv[0], err, stderrDetail(stderr.Bytes()))
	}

	p.logger.Debug("Play command finished",
		zap.Strings("command", p.argv),
		zap.Duration("elapsed", time.Since(start)))

	return nil
}

// CommandLister lists output devices by running an external program
type CommandLister struct {
	argv   []string
	logger *zap.Logger
}

// Ensure CommandLister implements the DeviceLister interface
var _ repositories.DeviceLister = (*CommandLister)(nil)

// NewCommandLister creates a device lister for argv
func NewCommandLister(argv []string, logger *zap.Logger) *CommandLister {
	return &CommandLister{
		argv:   argv,
		logger: logger,
	}
}

// ListDevices returns the program's standard output. Output captured before
// a failure is returned alongside the error.
func (l *CommandLister) ListDevices(ctx context.Context) (string, error) {
	if len(l.argv) == 0 {
		return "", fmt.Errorf("%w: list command is required to get devices", domain.ErrConfiguration)
	}

	cmd := exec.CommandContext(ctx, l.argv[0], l.argv[1:]...)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	l.logger.Debug("Running list command", zap.Strings("command", l.argv))

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%w: %s: %v%s", domain.ErrExternalProcess, l.argv[0], err, stderrDetail(stderr.Bytes()))
	}

	return stdout.String(), nil
}

func stderrDetail(stderr []byte) string {
	text := strings.TrimSpace(string(stderr))
	if text == "" {
		return ""
	}
	if len(text) > maxStderr {
		text = text[:maxStderr] + "..."
	}
	return " (" + text + ")"
}
