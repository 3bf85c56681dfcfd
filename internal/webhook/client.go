package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	requestTimeout = 60 * time.Second
	userAgent      = "Reditto-Go/1.0"

	// plausibility bound only; keys are never validated cryptographically
	minAPIKeyLen = 20

	maxErrorBodyBytes = 512
)

// ValidateCredentials performs an advisory fast-fail check on the
// webhook configuration before any network call is attempted.
func ValidateCredentials(url, apiKey string) (bool, string) {
	var issues []string

	if url == "" {
		issues = append(issues, "URL do webhook não configurada")
	} else if !strings.Contains(url, "webhook") {
		issues = append(issues, `URL do webhook parece inválida (deve conter "webhook")`)
	}

	if apiKey == "" {
		issues = append(issues, "API Key do webhook não configurada")
	} else if len(apiKey) < minAPIKeyLen {
		issues = append(issues, "API Key do webhook parece inválida (muito curta)")
	}

	return len(issues) == 0, strings.Join(issues, ", ")
}

// Client posts payloads to the workflow webhook and classifies
// failures. Successful responses are returned undecoded beyond the
// top-level JSON value so Normalize can inspect the raw shape.
type Client struct {
	URL    string
	APIKey string

	httpc  *http.Client
	logger *slog.Logger
}

func NewClient(url, apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		URL:    url,
		APIKey: apiKey,
		httpc:  &http.Client{Timeout: requestTimeout},
		logger: logger,
	}
}

// Call sends one payload and returns the decoded JSON value (object,
// array or string) exactly as the workflow produced it.
func (c *Client) Call(ctx context.Context, payload map[string]any) (any, error) {
	if ok, detail := ValidateCredentials(c.URL, c.APIKey); !ok {
		return nil, &Error{Kind: KindConfigInvalid, Detail: detail}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new webhook request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			c.logger.Error("webhook request timed out", "kind", KindTimeout, "url", c.URL)
			return nil, &Error{Kind: KindTimeout, Detail: err.Error()}
		}
		c.logger.Error("webhook request failed", "kind", KindNetwork, "err", err)
		return nil, &Error{Kind: KindNetwork, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.classifyStatus(resp)
	}

	var raw any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		c.logger.Error("webhook response is not JSON", "err", err)
		return nil, &Error{Kind: KindUnavailable, Detail: "invalid JSON body"}
	}
	return raw, nil
}

func (c *Client) classifyStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	detail := strings.TrimSpace(string(body))

	var kind Kind
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		kind = KindUnauthorized
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed:
		kind = KindNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = KindRateLimited
	case resp.StatusCode == http.StatusBadRequest:
		kind = KindBadRequest
	case resp.StatusCode >= 500:
		kind = KindUnavailable
	default:
		kind = KindUnavailable
	}

	c.logger.Error("webhook returned error status",
		"kind", kind, "status", resp.StatusCode, "body", detail)

	// Only the 400 detail is informative enough to keep on the error;
	// everything else collapses to the classification alone.
	if kind == KindBadRequest {
		return &Error{Kind: kind, Detail: fmt.Sprintf("status %d: %s", resp.StatusCode, detail)}
	}
	return &Error{Kind: kind, Detail: fmt.Sprintf("status %d", resp.StatusCode)}
}
