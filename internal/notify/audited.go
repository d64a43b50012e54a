package notify

import (
	"context"

	audit "compliancedesk/pkg/platform/audit"
)

// AuditRecorder is the best-effort audit sink.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Audited records email_sent or email_failed for every message it relays.
type Audited struct {
	next     Dispatcher
	recorder AuditRecorder
}

func NewAudited(next Dispatcher, recorder AuditRecorder) *Audited {
	return &Audited{next: next, recorder: recorder}
}

func (a *Audited) Send(ctx context.Context, msg Message) (string, error) {
	deliveryID, err := a.next.Send(ctx, msg)
	entry := audit.Entry{
		EntityType:     audit.EntityEmail,
		EntityID:       msg.To,
		CollaboratorID: msg.CollaboratorID,
		Payload: map[string]any{
			"kind": string(msg.Kind),
			"to":   msg.To,
		},
	}
	if err != nil {
		entry.Action = audit.ActionEmailFailed
		entry.Description = "Email " + string(msg.Kind) + " to " + msg.To + " failed"
		entry.Payload["error"] = err.Error()
	} else {
		entry.Action = audit.ActionEmailSent
		entry.Description = "Email " + string(msg.Kind) + " sent to " + msg.To
		entry.Payload["delivery_id"] = deliveryID
	}
	a.recorder.Record(ctx, entry)
	return deliveryID, err
}
