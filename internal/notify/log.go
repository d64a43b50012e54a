package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogDispatcher renders messages and logs them instead of sending. Used when
// no provider is configured.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(ctx context.Context, msg Message) (string, error) {
	subject, _, err := Render(msg)
	if err != nil {
		return "", err
	}
	deliveryID := "log-" + uuid.NewString()
	attrs := []any{"delivery_id", deliveryID, "kind", msg.Kind, "to", msg.To, "subject", subject}
	for _, key := range []string{"VerificationLink", "PortalLink", "DownloadLink"} {
		if v, ok := msg.Data[key]; ok {
			attrs = append(attrs, key, v)
		}
	}
	d.logger.InfoContext(ctx, "email not sent, no provider configured", attrs...)
	return deliveryID, nil
}
