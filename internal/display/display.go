// Package display renders terminal output: the startup banner, guidance
// lines and the announcement history. All writes go through a Printer so
// concurrent pollers never interleave partial lines.
package display

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/navcompanion/internal/domain"
	"github.com/hammamikhairi/navcompanion/internal/logger"
)

// ── Styles ───────────────────────────────────────────────────────

var (
	// BannerStyle: muted slate for the startup banner.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	// Guidance: soft sky blue for spoken guidance.
	guidanceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))

	// Urgent: soft coral for obstacle alerts.
	urgentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5")).
			Bold(true)

	// Secondary text: dimmed zinc for hints and metadata.
	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	spokenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bbf7d0"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fde68a"))
)

// Printer writes whole lines to an output. Safe for concurrent use.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrinter creates a printer. If out is nil, os.Stdout is used.
func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{out: out}
}

// width is the terminal width when writing to stdout, 0 otherwise.
func (p *Printer) width() int {
	if p.out == os.Stdout {
		return stdoutWidth()
	}
	return 0
}

// Println writes a single line.
func (p *Printer) Println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}

// Printf formats and writes a single line.
func (p *Printer) Printf(format string, a ...any) {
	p.Println(fmt.Sprintf(format, a...))
}

// Banner prints the startup banner and a dimmed info line.
func (p *Printer) Banner(info string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, RenderBanner(p.width()))
	if info != "" {
		fmt.Fprintln(p.out, secondaryStyle.Render(info))
	}
}

// Guidance prints a normal guidance line.
func (p *Printer) Guidance(msg string) {
	p.Println(guidanceStyle.Render(msg))
}

// Urgent prints an alert line.
func (p *Printer) Urgent(msg string) {
	p.Println(urgentStyle.Render(msg))
}

// Hint prints secondary text.
func (p *Printer) Hint(msg string) {
	p.Println(secondaryStyle.Render(msg))
}

// History prints journal entries, newest first.
func (p *Printer) History(entries []domain.JournalEntry) {
	if len(entries) == 0 {
		p.Hint("No announcements recorded.")
		return
	}
	for _, e := range entries {
		p.Println(FormatEntry(e))
	}
}

// FormatEntry renders one journal entry as a single styled line.
func FormatEntry(e domain.JournalEntry) string {
	stamp := secondaryStyle.Render(e.FinishedAt.Local().Format("15:04:05"))

	outcome := fmt.Sprintf("%-7s", e.Outcome)
	switch e.Outcome {
	case domain.OutcomeSpoken:
		outcome = spokenStyle.Render(outcome)
	case domain.OutcomeFailed, domain.OutcomeAborted:
		outcome = failedStyle.Render(outcome)
	default:
		outcome = secondaryStyle.Render(outcome)
	}

	var meta []string
	if e.Priority == "high" {
		meta = append(meta, "high")
	}
	if e.Transport != "" {
		meta = append(meta, "via "+e.Transport)
	}
	if !e.QueuedAt.IsZero() && !e.FinishedAt.IsZero() {
		meta = append(meta, e.FinishedAt.Sub(e.QueuedAt).Round(time.Millisecond).String())
	}
	if e.Detail != "" {
		meta = append(meta, e.Detail)
	}

	line := fmt.Sprintf("%s  %s  %s", stamp, outcome, e.Text)
	if len(meta) > 0 {
		line += "  " + secondaryStyle.Render("("+strings.Join(meta, ", ")+")")
	}
	return line
}

// Compile-time interface check.
var _ domain.Notifier = (*CLINotifier)(nil)

// CLINotifier writes notifications to the terminal.
type CLINotifier struct {
	log     *logger.Logger
	printer *Printer
}

// NewCLINotifier creates a terminal notifier.
func NewCLINotifier(printer *Printer, log *logger.Logger) *CLINotifier {
	return &CLINotifier{log: log, printer: printer}
}

// Notify prints a normal notification.
func (n *CLINotifier) Notify(ctx context.Context, message string) error {
	n.log.Debug("notify: %s", message)
	n.printer.Guidance(message)
	return nil
}

// NotifyUrgent prints an urgent notification.
func (n *CLINotifier) NotifyUrgent(ctx context.Context, message string) error {
	n.log.Debug("notify-urgent: %s", message)
	n.printer.Urgent(message)
	return nil
}
