package alerts

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ogulcanaydogan/powermon/pkg/model"
)

// WebhookSink posts events as JSON to a generic HTTP endpoint.
type WebhookSink struct {
	url    string
	secret string
	loc    *time.Location
	client *http.Client
}

// NewWebhookSink creates a generic webhook sink.
// If secret is non-empty, requests are signed with HMAC-SHA256.
func NewWebhookSink(url, secret string, loc *time.Location) *WebhookSink {
	return &WebhookSink{
		url:    url,
		secret: secret,
		loc:    loc,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *WebhookSink) Kind() ChannelKind { return ChannelWebhook }

func (w *WebhookSink) Send(ctx context.Context, event Event) error {
	msg, ok := Format(event, w.loc)
	if !ok {
		return nil
	}

	payload := webhookPayload{
		Event:     event.Kind,
		Timestamp: event.At.UTC().Format(time.RFC3339),
		Severity:  msg.Severity,
		Title:     msg.Title,
		Message:   msg.Body,
		Reading:   event.Reading,
		Error:     event.Message,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "powermon/1.0")
	req.Header.Set("X-Event-Type", string(event.Kind))

	if w.secret != "" {
		sig := computeHMAC(body, []byte(w.secret))
		req.Header.Set("X-Signature-256", "sha256="+sig)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

type webhookPayload struct {
	Event     EventKind      `json:"event"`
	Timestamp string         `json:"timestamp"`
	Severity  Severity       `json:"severity"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Reading   *model.Reading `json:"reading,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func computeHMAC(message, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
