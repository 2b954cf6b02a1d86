package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"

	"github.com/hammamikhairi/navcompanion/internal/domain"
	"github.com/hammamikhairi/navcompanion/internal/logger"
)

// Synthesizer speaks text on the local device. Speak blocks until the
// utterance completes and returns early when ctx is cancelled.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// DefaultSynthCommand returns the platform's stock speech command.
func DefaultSynthCommand() string {
	switch runtime.GOOS {
	case "darwin":
		return "say"
	default:
		return "espeak-ng"
	}
}

// ExecSynthesizer runs an external speech program with the text as its
// final argument.
type ExecSynthesizer struct {
	name string
	args []string
}

// NewExecSynthesizer parses command with shell quoting rules. An empty
// command uses DefaultSynthCommand.
func NewExecSynthesizer(command string) (*ExecSynthesizer, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultSynthCommand()
	}
	argv, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parsing synth command: %w", err)
	}
	if len(argv) == 0 {
		return nil, errors.New("synth command is empty")
	}
	return &ExecSynthesizer{name: argv[0], args: argv[1:]}, nil
}

// Command returns the program and its fixed arguments.
func (e *ExecSynthesizer) Command() []string {
	return append([]string{e.name}, e.args...)
}

// Speak implements Synthesizer.
func (e *ExecSynthesizer) Speak(ctx context.Context, text string) error {
	args := append(append([]string(nil), e.args...), text)
	cmd := exec.CommandContext(ctx, e.name, args...)
	// Children of a killed shell can hold the output pipe open.
	cmd.WaitDelay = 500 * time.Millisecond
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", e.name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Compile-time interface check.
var _ domain.Transport = (*LocalTransport)(nil)

// LocalTransport speaks through an on-device synthesizer. It is the
// fallback when the remote service is unreachable.
type LocalTransport struct {
	synth Synthesizer
	log   *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewLocalTransport wraps synth.
func NewLocalTransport(synth Synthesizer, log *logger.Logger) *LocalTransport {
	return &LocalTransport{synth: synth, log: log}
}

// Name implements domain.Transport.
func (l *LocalTransport) Name() string { return "local" }

// Render speaks text and blocks until done. Returns
// domain.ErrPlaybackAborted when cancelled mid-utterance.
func (l *LocalTransport) Render(ctx context.Context, text string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.cancel = nil
		l.mu.Unlock()
	}()

	l.log.Debug("local tts: speaking %d chars", len(text))
	err := l.synth.Speak(ctx, text)
	if ctx.Err() != nil {
		return domain.ErrPlaybackAborted
	}
	if err != nil {
		return fmt.Errorf("local synthesis: %w", err)
	}
	return nil
}

// Cancel stops the current utterance, if any.
func (l *LocalTransport) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
}
