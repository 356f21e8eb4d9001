package webhook

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
)

// SignatureHeader carries the HMAC of the raw request body when a shared
// secret is configured.
const SignatureHeader = "X-Webhook-Signature"

// Client posts JSON payloads to configured endpoints. Delivery is best
// effort: callers dispatch through the jobs queue and swallow failures.
type Client struct {
	http   *http.Client
	secret []byte
}

// New constructs a webhook client with a conservative request timeout.
func New(secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{http: &http.Client{Timeout: timeout}}
	if secret != "" {
		c.secret = []byte(secret)
	}
	return c
}

// Sign returns the signature header value for a raw body.
func (c *Client) Sign(body []byte) string {
	mac := hmac.New(sha256.New, c.secret)
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Post marshals the payload and delivers it to the URL. A non-2xx response is
// reported as an error so the caller can log it.
func (c *Client) Post(ctx context.Context, url string, payload interface{}) error {
	if url == "" {
		return fmt.Errorf("webhook url not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if len(c.secret) > 0 {
		req.Header.Set(SignatureHeader, c.Sign(body))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	return nil
}
