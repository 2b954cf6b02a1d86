// Package speech turns announcements into audible speech. A Queue
// serializes announcements and renders each one through a remote
// synthesis service, falling back to an on-device synthesizer.
package speech

import (
	"context"

	"github.com/hammamikhairi/navcompanion/internal/domain"
	"github.com/hammamikhairi/navcompanion/internal/logger"
)

// Compile-time interface check.
var _ domain.Transport = (*NoOp)(nil)

// NoOp is a transport that only logs. Used when voice is disabled.
type NoOp struct {
	log *logger.Logger
}

// NewNoOp creates a no-op transport.
func NewNoOp(log *logger.Logger) *NoOp {
	return &NoOp{log: log}
}

// Name implements domain.Transport.
func (n *NoOp) Name() string { return "noop" }

// Render does nothing.
func (n *NoOp) Render(ctx context.Context, text string) error {
	n.log.Debug("speech no-op: would say %q", text)
	return ctx.Err()
}

// Cancel does nothing.
func (n *NoOp) Cancel() {}
