package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SlackNotifier posts messages to a Slack incoming webhook. A nil notifier
// or an empty webhook URL skips silently, so deployments without Slack
// configured lose nothing.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier wraps a webhook URL. An empty URL yields a notifier that
// does nothing.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts text to the webhook.
func (n *SlackNotifier) Notify(ctx context.Context, text string) error {
	if n == nil || n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
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
		return fmt.Errorf("slack webhook returned %s", resp.Status)
	}
	return nil
}
