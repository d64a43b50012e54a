package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ProviderEvent is a delivery callback from the email provider, e.g.
// {"type":"email.bounced","created_at":"...","data":{"email_id":"...","to":["a@b"],"subject":"...","tags":{...}}}.
type ProviderEvent struct {
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Data      struct {
		EmailID string            `json:"email_id"`
		To      []string          `json:"to"`
		Subject string            `json:"subject"`
		Tags    map[string]string `json:"tags"`
	} `json:"data"`
}

// ParseProviderEvent decodes and sanity-checks a callback body.
func ParseProviderEvent(raw []byte) (*ProviderEvent, error) {
	var ev ProviderEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode provider event: %w", err)
	}
	if !strings.HasPrefix(ev.Type, "email.") || len(ev.Type) == len("email.") {
		return nil, fmt.Errorf("unsupported provider event type %q", ev.Type)
	}
	return &ev, nil
}

// Name is the event without its "email." prefix: "delivered", "bounced", ...
func (e *ProviderEvent) Name() string {
	return strings.TrimPrefix(e.Type, "email.")
}

// IsDeliveryProblem reports bounces and spam complaints.
func (e *ProviderEvent) IsDeliveryProblem() bool {
	switch e.Name() {
	case "bounced", "complained":
		return true
	}
	return false
}

// Recipient is the first addressee, if any.
func (e *ProviderEvent) Recipient() string {
	if len(e.Data.To) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(e.Data.To[0]))
}
