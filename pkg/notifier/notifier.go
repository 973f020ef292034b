/*
Package notifier implements the notifier port (spec §6.3): a fire-and-
forget webhook delivery of HealthEvents, bounded by its own timeout. The
core never inspects the result beyond logging failure.

Grounded on the teacher's health.HTTPChecker: a configured *http.Client,
a URL, and a Check-shaped call that never propagates a transport error up
to its caller as anything other than a logged failure.
*/
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/beacon/internal/logging"
	"github.com/cuemby/beacon/pkg/types"
)

// DefaultTimeout bounds a single webhook delivery.
const DefaultTimeout = 5 * time.Second

// Notifier is the notifier port.
type Notifier interface {
	Notify(ctx context.Context, event types.HealthEvent)
}

// WebhookNotifier posts a chat-style payload to a configured webhook URL.
type WebhookNotifier struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

// New creates a WebhookNotifier with the default timeout and a client
// scoped to that timeout, matching the teacher's NewHTTPChecker
// convenience constructor.
func New(url string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:     url,
		Client:  &http.Client{Timeout: DefaultTimeout},
		Timeout: DefaultTimeout,
	}
}

type payload struct {
	Text string `json:"text"`
}

// Notify posts event to the webhook URL. Failures are logged, never
// returned — the core does not retry or block on notifier delivery
// (spec §6.3, §7's user-visible failures policy).
func (n *WebhookNotifier) Notify(ctx context.Context, event types.HealthEvent) {
	ctx, cancel := context.WithTimeout(ctx, n.Timeout)
	defer cancel()

	text := fmt.Sprintf("[%s] layer=%s nodes=%v action=%s at=%s\n%s",
		event.Condition, event.Layer, event.NodeIDs, event.SuggestedAction,
		event.Timestamp.Format(time.RFC3339), event.Description)

	log := logging.WithComponent("notifier")

	body, err := json.Marshal(payload{Text: text})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal notifier payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("failed to build notifier request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("url", n.URL).Msg("notifier delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Str("url", n.URL).Msg("notifier webhook returned non-2xx")
	}
}
