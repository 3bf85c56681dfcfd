package grader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reditto/internal/config"
	"reditto/internal/webhook"
)

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(config.GatewayConfig{
		BaseURL: srv.URL,
		APIPath: "/api/chat/completions",
		Token:   "test-token",
		Model:   "gemma3:4b",
	}, nil)
	return c, srv
}

func TestAnalyzeEssay(t *testing.T) {
	var gotReq map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "Reditto-Go/1.0", r.Header.Get("User-Agent"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		fmt.Fprint(w, chatReply("```json\n{\"finalScore\": 840, \"competencies\": {\"Competência I\": 180}, \"feedback\": {\"summary\": \"Boa redação.\"}}\n```"))
	})

	out, err := c.AnalyzeEssay(context.Background(), "texto da redação", "Educação digital")
	require.NoError(t, err)

	require.NotNil(t, out.FinalScore)
	assert.Equal(t, 840.0, *out.FinalScore)
	assert.Equal(t, 180.0, out.Competencies["Competência I"])
	assert.Equal(t, "Boa redação.", out.Feedback.Summary)
	assert.NotNil(t, out.Feedback.Improvements)
	assert.Equal(t, "texto da redação", out.OriginalEssay)
	assert.Equal(t, "Educação digital", out.Topic)

	assert.Equal(t, "gemma3:4b", gotReq["model"])
	assert.Equal(t, false, gotReq["stream"])
	msgs := gotReq["messages"].([]any)
	require.Len(t, msgs, 1)
	content := msgs[0].(map[string]any)["content"].(string)
	assert.Contains(t, content, "Educação digital")
	assert.Contains(t, content, "texto da redação")
}

func TestAnalyzeEssayInvalidReply(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no json", "Não foi possível analisar a redação."},
		{"broken json", "{\"finalScore\": "},
		{"empty content", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, chatReply(tt.content))
			})

			_, err := c.AnalyzeEssay(context.Background(), "texto", "tema")
			assert.ErrorIs(t, err, ErrInvalidResponse)
		})
	}
}

func TestAnalyzeEssayStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   webhook.Kind
	}{
		{http.StatusUnauthorized, webhook.KindUnauthorized},
		{http.StatusNotFound, webhook.KindNotFound},
		{http.StatusTooManyRequests, webhook.KindRateLimited},
		{http.StatusBadRequest, webhook.KindBadRequest},
		{http.StatusInternalServerError, webhook.KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := c.AnalyzeEssay(context.Background(), "texto", "tema")
			require.Error(t, err)
			assert.Equal(t, tt.kind, webhook.KindOf(err))
		})
	}
}

func TestAnalyzeEssayMissingBaseURL(t *testing.T) {
	c := NewClient(config.GatewayConfig{}, nil)
	_, err := c.AnalyzeEssay(context.Background(), "texto", "tema")
	require.Error(t, err)
	assert.Equal(t, webhook.KindConfigInvalid, webhook.KindOf(err))
}

func TestExtractText(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		msgs := req["messages"].([]any)
		parts := msgs[0].(map[string]any)["content"].([]any)
		require.Len(t, parts, 2)
		img := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
		assert.Contains(t, img, "data:image/png;base64,")

		fmt.Fprint(w, chatReply("  Texto extraído da redação.  \n"))
	})

	text, err := c.ExtractText(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "Texto extraído da redação.", text)
}
