package mail

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// LogSender writes messages to the request logger instead of sending them.
// Meant for local development.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	slogx.FromContext(ctx).InfoContext(ctx, "email not sent (log driver)",
		slog.String("kind", msg.Kind),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	slogx.FromContext(ctx).DebugContext(ctx, "email body", slog.String("text", msg.Text))
	return nil
}
