// Package alert delivers incident notifications to operators over webhooks
// and email.
package alert

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/probitylabs/sealchain/internal/incident"
)

// Notifier delivers one incident notification.
type Notifier interface {
	Notify(ctx context.Context, inc *incident.Incident) error
}

// NotifierFunc adapts a plain function to the Notifier interface.
type NotifierFunc func(ctx context.Context, inc *incident.Incident) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, inc *incident.Incident) error {
	return f(ctx, inc)
}

// NopNotifier logs incidents to zap instead of delivering them. Use in
// development or when no alert channel is configured.
type NopNotifier struct {
	logger *zap.Logger
}

// NewNopNotifier creates a NopNotifier backed by the given logger.
func NewNopNotifier(logger *zap.Logger) *NopNotifier {
	return &NopNotifier{logger: logger}
}

// Notify logs the incident and returns nil.
func (n *NopNotifier) Notify(_ context.Context, inc *incident.Incident) error {
	n.logger.Info("incident (no alert channel configured)",
		zap.String("asset", inc.Asset),
		zap.String("kind", inc.Kind.String()),
		zap.String("severity", string(inc.Severity)),
		zap.Int64("position", inc.Position),
	)
	return nil
}

// Multi fans one notification out to several notifiers. Every notifier is
// attempted; errors are joined.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, inc *incident.Incident) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, inc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
