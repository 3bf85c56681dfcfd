package grader

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

	"reditto/internal/config"
	"reditto/internal/webhook"
	"reditto/pkg/models"
)

const (
	requestTimeout = 60 * time.Second
	userAgent      = "Reditto-Go/1.0"
	maxTokens      = 4000

	analysisTemperature = 0.2
	ocrTemperature      = 0.1
)

// ErrInvalidResponse marks a gateway reply from which no valid JSON
// could be extracted. Unlike the permissive webhook path, this is
// terminal for the request.
var ErrInvalidResponse = errors.New("resposta inválida da IA, tente novamente")

// Client talks to an OpenAI-compatible chat-completion gateway. It
// serves the direct essay-analysis path and the OCR text extraction.
type Client struct {
	cfg    config.GatewayConfig
	httpc  *http.Client
	logger *slog.Logger
}

func NewClient(cfg config.GatewayConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: requestTimeout},
		logger: logger,
	}
}

// Validate is the advisory config fast-fail for the gateway. Token is
// optional; some gateway deployments run without auth.
func (c *Client) Validate() (bool, string) {
	if strings.TrimSpace(c.cfg.BaseURL) == "" {
		return false, "OPEN_WEBUI_BASE_URL não configurada"
	}
	return true, ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// AnalyzeEssay scores an essay against the fixed five-competency
// rubric by asking the model for a JSON verdict and parsing it
// strictly. A malformed model reply fails the whole operation.
func (c *Client) AnalyzeEssay(ctx context.Context, essayText, topic string) (*models.CanonicalResult, error) {
	if ok, detail := c.Validate(); !ok {
		return nil, &webhook.Error{Kind: webhook.KindConfigInvalid, Detail: detail}
	}

	content, err := c.chat(ctx, []chatMessage{
		{Role: "user", Content: rubricPrompt(topic, essayText)},
	}, analysisTemperature)
	if err != nil {
		return nil, err
	}

	jsonText, ok := ExtractJSON(content)
	if !ok {
		c.logger.Error("no JSON found in analysis reply", "preview", preview(content))
		return nil, ErrInvalidResponse
	}

	var verdict struct {
		FinalScore   float64            `json:"finalScore"`
		Competencies map[string]float64 `json:"competencies"`
		Feedback     *models.Feedback   `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(jsonText), &verdict); err != nil {
		c.logger.Error("analysis reply is not valid JSON", "err", err, "preview", preview(jsonText))
		return nil, ErrInvalidResponse
	}

	if verdict.Feedback == nil {
		verdict.Feedback = models.EmptyFeedback()
	} else {
		verdict.Feedback.EnsureDefaults()
	}

	score := verdict.FinalScore
	return &models.CanonicalResult{
		FinalScore:    &score,
		Competencies:  verdict.Competencies,
		Feedback:      verdict.Feedback,
		OriginalEssay: essayText,
		Topic:         topic,
	}, nil
}

// ExtractText runs the vision prompt over an essay photo and returns
// the transcribed text.
func (c *Client) ExtractText(ctx context.Context, image []byte, mime string) (string, error) {
	if ok, detail := c.Validate(); !ok {
		return "", &webhook.Error{Kind: webhook.KindConfigInvalid, Detail: detail}
	}

	content := []map[string]any{
		{"type": "text", "text": ocrPrompt},
		{"type": "image_url", "image_url": map[string]any{
			"url": webhook.DataURI(image, mime),
		}},
	}

	text, err := c.chat(ctx, []chatMessage{{Role: "user", Content: content}}, ocrTemperature)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) chat(ctx context.Context, messages []chatMessage, temperature float64) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":       c.cfg.Model,
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": temperature,
		"stream":      false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.APIPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			c.logger.Error("gateway request timed out", "kind", webhook.KindTimeout)
			return "", &webhook.Error{Kind: webhook.KindTimeout, Detail: err.Error()}
		}
		c.logger.Error("gateway request failed", "err", err)
		return "", &webhook.Error{Kind: webhook.KindNetwork, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", c.classifyStatus(resp)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.logger.Error("gateway reply is not JSON", "err", err)
		return "", ErrInvalidResponse
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		c.logger.Error("gateway reply has no choices")
		return "", ErrInvalidResponse
	}
	return out.Choices[0].Message.Content, nil
}

func (c *Client) classifyStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	detail := strings.TrimSpace(string(body))

	var kind webhook.Kind
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		kind = webhook.KindUnauthorized
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed:
		kind = webhook.KindNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = webhook.KindRateLimited
	case resp.StatusCode == http.StatusBadRequest:
		kind = webhook.KindBadRequest
	default:
		kind = webhook.KindUnavailable
	}

	c.logger.Error("gateway returned error status",
		"kind", kind, "status", resp.StatusCode, "body", detail)

	if kind == webhook.KindBadRequest {
		return &webhook.Error{Kind: kind, Detail: fmt.Sprintf("status %d: %s", resp.StatusCode, detail)}
	}
	return &webhook.Error{Kind: kind, Detail: fmt.Sprintf("status %d", resp.StatusCode)}
}

func preview(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
