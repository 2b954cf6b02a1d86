package speech

import (
	"context"
	"regexp"
	"strings"

	"github.com/hammamikhairi/navcompanion/internal/domain"
	"github.com/hammamikhairi/navcompanion/internal/logger"
)

var _ domain.Notifier = (*SpeakingNotifier)(nil)

var (
	colourCodes = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	tagLabel    = regexp.MustCompile(`^\s*\[[A-Za-z]+\]\s*`)
)

// speakable drops terminal colour codes and a leading "[TAG]" label.
func speakable(message string) string {
	s := colourCodes.ReplaceAllString(message, "")
	return strings.TrimSpace(tagLabel.ReplaceAllString(s, ""))
}

// SpeakingNotifier hands guidance to an optional text notifier first and
// then to the announcement queue. It never waits for speech to finish.
type SpeakingNotifier struct {
	echo  domain.Notifier
	queue *Queue
	log   *logger.Logger
}

// NewSpeakingNotifier creates a notifier over queue. echo may be nil.
func NewSpeakingNotifier(echo domain.Notifier, queue *Queue, log *logger.Logger) *SpeakingNotifier {
	return &SpeakingNotifier{echo: echo, queue: queue, log: log}
}

// Notify speaks message at normal priority.
func (n *SpeakingNotifier) Notify(ctx context.Context, message string) error {
	return n.deliver(ctx, message, false)
}

// NotifyUrgent interrupts the active announcement, drops what was still
// waiting, and speaks message next.
func (n *SpeakingNotifier) NotifyUrgent(ctx context.Context, message string) error {
	return n.deliver(ctx, message, true)
}

func (n *SpeakingNotifier) deliver(ctx context.Context, message string, urgent bool) error {
	if n.echo != nil {
		echo := n.echo.Notify
		if urgent {
			echo = n.echo.NotifyUrgent
		}
		if err := echo(ctx, message); err != nil {
			return err
		}
	}

	text := speakable(message)
	if urgent {
		n.queue.Stop("preempted")
		n.queue.Enqueue(text, High(), FlushExisting())
	} else {
		n.queue.Enqueue(text)
	}
	n.log.Debug("notifier: queued (urgent=%t): %s", urgent, truncate(text, 60))
	return nil
}
