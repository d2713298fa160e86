package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPNotifier POSTs notifications as JSON to a webhook. Push messages go to
// PushURL when it is set; everything else goes to URL.
type HTTPNotifier struct {
	URL     string
	PushURL string
	Client  *http.Client
}

// NewHTTPNotifier returns an HTTPNotifier with a client bounded by timeout.
func NewHTTPNotifier(url, pushURL string, timeout time.Duration) *HTTPNotifier {
	return &HTTPNotifier{
		URL:     url,
		PushURL: pushURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (h *HTTPNotifier) endpoint(n Notification) string {
	if n.Channel == ChannelPush && h.PushURL != "" {
		return h.PushURL
	}
	return h.URL
}

// Notify sends n. Any non-2xx response is an error.
func (h *HTTPNotifier) Notify(ctx context.Context, n Notification) error {
	url := h.endpoint(n)
	if url == "" {
		return fmt.Errorf("notify: no endpoint configured for %s", n.Channel)
	}
	raw, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: %s returned status %d", url, resp.StatusCode)
	}
	return nil
}
