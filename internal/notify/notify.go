// Package notify publishes push notifications through an ntfy topic.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Notifier posts messages to one ntfy topic. A zero-value topic disables
// publication without callers needing to branch.
type Notifier struct {
	client *http.Client
	server string
	topic  string
}

// New builds a Notifier. A nil client falls back to http.DefaultClient.
func New(client *http.Client, server, topic string) *Notifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &Notifier{client: client, server: strings.TrimRight(server, "/"), topic: topic}
}

// Enabled reports whether a topic is configured.
func (n *Notifier) Enabled() bool { return n != nil && n.topic != "" }

// Publish posts a titled message to the topic. Disabled notifiers return nil.
func (n *Notifier) Publish(ctx context.Context, title, message string) error {
	if !n.Enabled() {
		return nil
	}

	endpoint := n.server + "/" + n.topic
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	if title != "" {
		req.Header.Set("Title", title)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
