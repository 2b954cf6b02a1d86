package conversation

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/hammamikhairi/navcompanion/internal/domain"
	"github.com/hammamikhairi/navcompanion/internal/logger"
	"github.com/hammamikhairi/navcompanion/internal/speech"
)

// PrintFunc is a function used to print formatted output.
// Matches the signature of both fmt.Printf and display.Printer.Printf.
type PrintFunc func(format string, a ...any)

// Speaker is the part of the announcement queue the console drives.
type Speaker interface {
	Enqueue(text string, opts ...speech.EnqueueOption) *speech.Future
	Stop(reason string)
	LastSpoken() string
	QueueLen() int
	IsSpeaking() bool
}

// Compile-time interface check.
var _ Speaker = (*speech.Queue)(nil)

const helpText = `commands:
  stop            silence speech and drop queued announcements
  repeat          say the last announcement again
  say TEXT        speak TEXT
  alert TEXT      interrupt speech and say TEXT now
  status          show queue state
  quit            exit`

// Console reads commands line by line and applies them to a Speaker.
type Console struct {
	parser  domain.IntentParser
	speaker Speaker
	printFn PrintFunc
	log     *logger.Logger
}

// NewConsole creates a console. If printFn is nil, fmt.Printf is used.
func NewConsole(parser domain.IntentParser, speaker Speaker, printFn PrintFunc, log *logger.Logger) *Console {
	if printFn == nil {
		printFn = func(format string, a ...any) {
			fmt.Printf(format+"\n", a...)
		}
	}
	return &Console{parser: parser, speaker: speaker, printFn: printFn, log: log}
}

// Run processes input until EOF, a quit command, or ctx is done. It
// returns nil on quit and EOF.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return nil
				}
			}
			if quit := c.Handle(ctx, line); quit {
				return nil
			}
		}
	}
}

// Handle applies one line of input. It reports whether the user asked to
// quit.
func (c *Console) Handle(ctx context.Context, line string) bool {
	intent, err := c.parser.Parse(ctx, line)
	if err != nil {
		c.log.Warn("console: parse failed: %v", err)
		return false
	}

	switch intent.Type {
	case domain.IntentSilence:
		c.speaker.Stop("console")
		c.printFn("Silenced.")
	case domain.IntentRepeatLast:
		last := c.speaker.LastSpoken()
		if last == "" {
			c.printFn("Nothing to repeat yet.")
			return false
		}
		c.speaker.Enqueue(last, speech.AllowDuplicates())
	case domain.IntentSay:
		c.speaker.Enqueue(intent.Payload)
	case domain.IntentAlert:
		c.speaker.Stop("preempted")
		c.speaker.Enqueue(intent.Payload, speech.High(), speech.FlushExisting())
	case domain.IntentStatus:
		state := "idle"
		if c.speaker.IsSpeaking() {
			state = "speaking"
		}
		c.printFn("%s, %d queued", state, c.speaker.QueueLen())
	case domain.IntentQuit:
		return true
	case domain.IntentHelp:
		c.printFn("%s", helpText)
	default:
		if intent.Payload != "" {
			c.printFn("Unknown command %q. Type help.", intent.Payload)
		}
	}
	return false
}
