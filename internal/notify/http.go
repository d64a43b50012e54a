package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"compliancedesk/pkg/platform/circuit"
)

// HTTPDispatcher posts messages to a Resend-compatible REST API.
type HTTPDispatcher struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

type HTTPOption func(*HTTPDispatcher)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(d *HTTPDispatcher) { d.client = c }
}

func WithBreaker(b *circuit.Breaker) HTTPOption {
	return func(d *HTTPDispatcher) { d.breaker = b }
}

func WithLogger(logger *slog.Logger) HTTPOption {
	return func(d *HTTPDispatcher) { d.logger = logger }
}

func NewHTTPDispatcher(endpoint, apiKey, from string, opts ...HTTPOption) *HTTPDispatcher {
	d := &HTTPDispatcher{
		endpoint: endpoint,
		apiKey:   apiKey,
		from:     from,
		client:   &http.Client{Timeout: 10 * time.Second},
		breaker:  circuit.New("email-provider", circuit.WithFailureThreshold(5), circuit.WithCooldown(30*time.Second)),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type sendRequest struct {
	From    string            `json:"from"`
	To      []string          `json:"to"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html"`
	Tags    map[string]string `json:"tags,omitempty"`
}

type sendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (d *HTTPDispatcher) Send(ctx context.Context, msg Message) (string, error) {
	subject, html, err := Render(msg)
	if err != nil {
		return "", err
	}
	if !d.breaker.Allow() {
		return "", ErrProviderUnavailable
	}

	tags := map[string]string{"kind": string(msg.Kind)}
	if !msg.CollaboratorID.IsNil() {
		tags["collaborator_id"] = msg.CollaboratorID.String()
	}
	body, err := json.Marshal(sendRequest{From: d.from, To: []string{msg.To}, Subject: subject, HTML: html, Tags: tags})
	if err != nil {
		return "", fmt.Errorf("encode email: %w", err)
	}

	deliveryID, err := d.post(ctx, body)
	if err != nil {
		if _, change := d.breaker.RecordFailure(); change.Opened {
			d.logger.ErrorContext(ctx, "email provider circuit opened", "error", err)
		}
		return "", err
	}
	if _, change := d.breaker.RecordSuccess(); change.Closed {
		d.logger.InfoContext(ctx, "email provider circuit closed")
	}
	return deliveryID, nil
}

func (d *HTTPDispatcher) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read email response: %w", err)
	}
	var out sendResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("email provider returned %d: %s", resp.StatusCode, out.Message)
	}
	if out.ID == "" {
		return "", fmt.Errorf("email provider returned no delivery id")
	}
	return out.ID, nil
}
