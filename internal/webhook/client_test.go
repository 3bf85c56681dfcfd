package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "0123456789abcdef0123" // 20 chars, passes plausibility check

func TestValidateCredentials(t *testing.T) {
	t.Parallel()

	ok, _ := ValidateCredentials("https://flows.example.com/webhook/essay", testAPIKey)
	assert.True(t, ok)

	ok, msg := ValidateCredentials("", "")
	assert.False(t, ok)
	assert.Contains(t, msg, "URL do webhook não configurada")
	assert.Contains(t, msg, "API Key do webhook não configurada")

	ok, msg = ValidateCredentials("https://flows.example.com/run/essay", testAPIKey)
	assert.False(t, ok)
	assert.Contains(t, msg, "parece inválida")

	ok, msg = ValidateCredentials("https://flows.example.com/webhook/essay", "short")
	assert.False(t, ok)
	assert.Contains(t, msg, "muito curta")
}

func TestClientCallSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Reditto-Go/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"json": {"output": "ok"}}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/webhook/doubt", testAPIKey, nil)
	raw, err := c.Call(context.Background(), map[string]any{"doubtText": "x"})
	require.NoError(t, err)

	res := Normalize(raw)
	assert.Equal(t, "ok", res.AIResponse)
}

func TestClientCallConfigInvalid(t *testing.T) {
	t.Parallel()

	c := NewClient("", "", nil)
	_, err := c.Call(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.Equal(t, KindConfigInvalid, KindOf(err))
}

func TestClientCallStatusClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		kind   Kind
	}{
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusForbidden, KindUnauthorized},
		{http.StatusNotFound, KindNotFound},
		{http.StatusMethodNotAllowed, KindNotFound},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusBadRequest, KindBadRequest},
		{http.StatusInternalServerError, KindUnavailable},
		{http.StatusBadGateway, KindUnavailable},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte("upstream detail"))
		}))

		c := NewClient(srv.URL+"/webhook/x", testAPIKey, nil)
		_, err := c.Call(context.Background(), map[string]any{})
		srv.Close()

		require.Error(t, err, "status %d", tc.status)
		assert.Equal(t, tc.kind, KindOf(err), "status %d", tc.status)
	}
}

func TestClientCallBadRequestKeepsUpstreamDetail(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("field doubtText is required"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/webhook/x", testAPIKey, nil)
	_, err := c.Call(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field doubtText is required")
}

func TestClientCallTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/webhook/x", testAPIKey, nil)
	c.httpc = &http.Client{Timeout: 20 * time.Millisecond}

	_, err := c.Call(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestClientCallNetworkError(t *testing.T) {
	t.Parallel()

	// closed port, connection refused
	c := NewClient("http://127.0.0.1:1/webhook/x", testAPIKey, nil)
	_, err := c.Call(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
}
