package executor

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// WebhookConnector is the generic outbound-HTTP connector: it posts the
// action's target and parameters to a configured URL, optionally
// HMAC-signing the body, and treats any 2xx response as success. It is
// the one Connector this package ships, for integrations that are
// themselves simple webhooks (ticketing, chat, generic automation).
type WebhookConnector struct {
	URL        string
	Secret     string // empty disables signing
	HTTPClient *http.Client
	MaxRetries uint64
}

// NewWebhookConnector builds a WebhookConnector with sane defaults. An
// empty secret disables request signing.
func NewWebhookConnector(url, secret string) *WebhookConnector {
	return &WebhookConnector{
		URL:        url,
		Secret:     secret,
		HTTPClient: &http.Client{Timeout: DefaultCallDeadline},
		MaxRetries: 3,
	}
}

var _ Connector = (*WebhookConnector)(nil)

// Validate requires a non-empty target; parameters are opaque to a
// generic webhook and always accepted.
func (w *WebhookConnector) Validate(_ context.Context, target string, _ map[string]any) error {
	if target == "" {
		return fmt.Errorf("webhook connector: target is required")
	}
	return nil
}

// webhookRequest is the canonical payload shape posted to the remote
// endpoint; its json.Marshal encoding (fields in declaration order,
// parameter keys sorted, no whitespace) is also what gets signed.
type webhookRequest struct {
	Target     string         `json:"target"`
	Parameters map[string]any `json:"parameters"`
	Timestamp  string         `json:"timestamp"`
}

// Execute posts the action to the webhook URL, retrying transient
// failures with exponential backoff, and returns the response's
// X-Rollback-Handle header (if any) as the rollback handle.
func (w *WebhookConnector) Execute(ctx context.Context, target string, parameters map[string]any) (string, error) {
	body, signature, err := w.buildSignedBody(target, parameters)
	if err != nil {
		return "", err
	}

	var handle string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if signature != "" {
			req.Header.Set("X-HORNET-Signature", "sha256="+signature)
		}

		resp, err := w.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("webhook connector: server error %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("webhook connector: client error %d", resp.StatusCode))
		}
		handle = resp.Header.Get("X-Rollback-Handle")
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), w.retries())
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return "", err
	}
	return handle, nil
}

// Rollback posts to the same URL's "/rollback" path with the handle,
// signed the same way as Execute.
func (w *WebhookConnector) Rollback(ctx context.Context, handle string) error {
	body, signature, err := w.buildSignedBody("rollback", map[string]any{"handle": handle})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL+"/rollback", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-HORNET-Signature", "sha256="+signature)
	}
	resp, err := w.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook connector: rollback failed with status %d", resp.StatusCode)
	}
	return nil
}

// HealthCheck issues a plain GET against the configured URL.
func (w *WebhookConnector) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.URL, nil)
	if err != nil {
		return err
	}
	resp, err := w.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("webhook connector: health check status %d", resp.StatusCode)
	}
	return nil
}

func (w *WebhookConnector) retries() uint64 {
	if w.MaxRetries == 0 {
		return 3
	}
	return w.MaxRetries
}

func (w *WebhookConnector) buildSignedBody(target string, parameters map[string]any) ([]byte, string, error) {
	body, err := json.Marshal(webhookRequest{
		Target:     target,
		Parameters: parameters,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, "", err
	}
	if w.Secret == "" {
		return body, "", nil
	}
	return body, SignHMAC(w.Secret, body), nil
}

// SignHMAC computes the hex-encoded HMAC-SHA256 of payload under
// secret. Shared with pkg/realtime's SignedAction, which signs its
// edge-agent action requests the same way.
func SignHMAC(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// CanonicalJSON re-marshals v with its keys in sorted order, the
// representation HMAC signatures are computed over so signer and
// verifier always agree on bytes regardless of map iteration order.
func CanonicalJSON(v map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := bytes.NewBufferString("{")
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(v[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
