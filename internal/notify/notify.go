// Package notify delivers best-effort out-of-band notifications to the
// counterparty after a confirmed send. Delivery failure never affects the
// message itself.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/letsssss/naver-real-sub000/internal/metrics"
)

// Notifier posts notification payloads to the marketplace's delivery webhook.
// A Notifier with an empty URL is valid and drops everything.
type Notifier struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

// Payload is the webhook request body.
type Payload struct {
	Recipient  string `json:"recipient"`
	SenderName string `json:"sender_name"`
	Text       string `json:"text"`
}

// New creates a Notifier. timeout bounds each webhook call.
func New(url string, timeout time.Duration, log zerolog.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Send posts one notification. Errors are returned for the caller to log;
// callers must not treat them as message failures.
func (n *Notifier) Send(ctx context.Context, p Payload) error {
	if n.url == "" || p.Recipient == "" {
		return nil
	}

	body, err := json.Marshal(p)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify webhook returned %d", resp.StatusCode)
	}
	return nil
}

// SendAsync fires Send in the background and logs the outcome. This is the
// fire-and-forget path the sender uses.
func (n *Notifier) SendAsync(p Payload) {
	if n.url == "" || p.Recipient == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.client.Timeout)
		defer cancel()

		if err := n.Send(ctx, p); err != nil {
			metrics.NotifyFailures.Inc()
			n.log.Warn().Err(err).Str("recipient", p.Recipient).Msg("notification delivery failed")
		}
	}()
}
