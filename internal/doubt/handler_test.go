package doubt

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reditto/internal/auth"
	"reditto/internal/webhook"
	"reditto/pkg/models"
)

const testUserID = "user-1"

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../docs/schema.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO users (id, name, email, password_hash) VALUES (?, ?, ?, ?)`,
		testUserID, "João", "joao@example.com", "x")
	require.NoError(t, err)
	return db
}

type fakeFeed struct {
	events []string
}

func (f *fakeFeed) Broadcast(userID, event string, payload any) {
	f.events = append(f.events, event)
}

type capturedRequest struct {
	payload map[string]any
}

func newTestRouter(t *testing.T, webhookReply string, captured *capturedRequest) (*gin.Engine, *Repo, *fakeFeed) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			_ = json.NewDecoder(r.Body).Decode(&captured.payload)
		}
		fmt.Fprint(w, webhookReply)
	}))
	t.Cleanup(srv.Close)

	repo := NewRepo(openTestDB(t))
	feed := &fakeFeed{}
	wh := webhook.NewClient(srv.URL+"/webhook/testflow", "0123456789abcdef0123", nil)
	h := NewHandler(repo, wh, feed, nil)

	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		c.Set(auth.CtxClaimsKey, &auth.Claims{UserID: testUserID})
	})
	h.RegisterRoutes(api)
	return r, repo, feed
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

const validDoubt = "Como funciona a fotossíntese nas plantas aquáticas?"

func TestCreateNormalizesAndPersists(t *testing.T) {
	reply := `[{"json": {"output": "A fotossíntese converte luz em energia química."}}]`
	r, repo, feed := newTestRouter(t, reply, nil)

	w := postJSON(r, "/api/doubts", gin.H{
		"subject":   "biologia",
		"doubtText": validDoubt,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var out models.CanonicalResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "A fotossíntese converte luz em energia química.", out.AIResponse)
	assert.Equal(t, validDoubt, out.OriginalDoubt)

	doubts, err := repo.ListByUser(context.Background(), testUserID, 10, 0)
	require.NoError(t, err)
	require.Len(t, doubts, 1)
	assert.Equal(t, "biologia", doubts[0].Subject)
	assert.Equal(t, validDoubt, doubts[0].DoubtText)

	assert.Equal(t, []string{"doubt.saved"}, feed.events)
}

func TestCreateRoutesMathSubject(t *testing.T) {
	captured := &capturedRequest{}
	r, _, _ := newTestRouter(t, `{"output": "resposta"}`, captured)

	w := postJSON(r, "/api/doubts", gin.H{
		"subject":   "Matematica",
		"doubtText": validDoubt,
	})
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "Matematica", captured.payload["Mat"])
	assert.NotContains(t, captured.payload, "Topic")
}

func TestCreateRoutesOtherSubject(t *testing.T) {
	captured := &capturedRequest{}
	r, _, _ := newTestRouter(t, `{"output": "resposta"}`, captured)

	w := postJSON(r, "/api/doubts", gin.H{
		"subject":   "historia",
		"doubtText": validDoubt,
	})
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "historia", captured.payload["Topic"])
	assert.NotContains(t, captured.payload, "Mat")
}

func TestCreateWithImage(t *testing.T) {
	captured := &capturedRequest{}
	r, repo, _ := newTestRouter(t, `{"output": "resposta"}`, captured)

	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	w := postJSON(r, "/api/doubts", gin.H{
		"subject":      "fisica",
		"doubtText":    validDoubt,
		"imagesBase64": []string{"data:image/png;base64," + base64.StdEncoding.EncodeToString(png)},
	})
	require.Equal(t, http.StatusOK, w.Code)

	uri, _ := captured.payload["imageBase64"].(string)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	doubts, err := repo.ListByUser(context.Background(), testUserID, 10, 0)
	require.NoError(t, err)
	require.Len(t, doubts, 1)
	assert.True(t, strings.HasPrefix(doubts[0].DoubtImageURL, "data:image/png;base64,"))
}

func TestCreateAcceptsMultipartForm(t *testing.T) {
	captured := &capturedRequest{}
	r, repo, _ := newTestRouter(t, `{"output": "resposta"}`, captured)

	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("subject", "fisica"))
	require.NoError(t, mw.WriteField("doubtText", validDoubt))
	part, err := mw.CreateFormFile("images", "duvida.png")
	require.NoError(t, err)
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/doubts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	uri, _ := captured.payload["imageBase64"].(string)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	doubts, err := repo.ListByUser(context.Background(), testUserID, 10, 0)
	require.NoError(t, err)
	require.Len(t, doubts, 1)
	assert.Equal(t, validDoubt, doubts[0].DoubtText)
}

func TestCreateBoundsCountRunes(t *testing.T) {
	r, _, _ := newTestRouter(t, `{"output": "resposta"}`, nil)

	// 25 characters across 50 bytes, still under the minimum
	w := postJSON(r, "/api/doubts", gin.H{
		"subject": "quimica", "doubtText": strings.Repeat("ã", 25),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "pelo menos 30")

	// 1500 characters across 3000 bytes, within the maximum
	w = postJSON(r, "/api/doubts", gin.H{
		"subject": "quimica", "doubtText": strings.Repeat("ã", 1500),
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateValidation(t *testing.T) {
	r, _, _ := newTestRouter(t, `{}`, nil)

	tests := []struct {
		name string
		body gin.H
		want string
	}{
		{"missing subject", gin.H{"doubtText": validDoubt}, "matéria"},
		{"doubt too short", gin.H{"subject": "quimica", "doubtText": "curta"}, "pelo menos 30"},
		{"doubt too long", gin.H{"subject": "quimica", "doubtText": strings.Repeat("x", 2001)}, "no máximo 2000"},
		{"bad image", gin.H{"subject": "quimica", "doubtText": validDoubt, "imagesBase64": []string{"not-base64!!"}}, "Imagem inválida"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(r, "/api/doubts", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestCreateUpstreamFailureIsGeneric(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var status int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	repo := NewRepo(openTestDB(t))
	wh := webhook.NewClient(srv.URL+"/webhook/testflow", "0123456789abcdef0123", nil)
	h := NewHandler(repo, wh, nil, nil)

	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		c.Set(auth.CtxClaimsKey, &auth.Claims{UserID: testUserID})
	})
	h.RegisterRoutes(api)

	for _, s := range []int{http.StatusInternalServerError, http.StatusTooManyRequests} {
		status = s
		w := postJSON(r, "/api/doubts", gin.H{"subject": "quimica", "doubtText": validDoubt})
		assert.Equal(t, http.StatusInternalServerError, w.Code, "upstream %d", s)
		assert.Contains(t, w.Body.String(), "Estamos tendo problemas no servidor")
	}
}

func TestCreateSkipsDuplicateRows(t *testing.T) {
	r, repo, _ := newTestRouter(t, `{"output": "mesma resposta"}`, nil)

	body := gin.H{"subject": "quimica", "doubtText": validDoubt}
	require.Equal(t, http.StatusOK, postJSON(r, "/api/doubts", body).Code)
	require.Equal(t, http.StatusOK, postJSON(r, "/api/doubts", body).Code)

	doubts, err := repo.ListByUser(context.Background(), testUserID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, doubts, 1)
}

func TestDeleteDoubt(t *testing.T) {
	r, repo, feed := newTestRouter(t, `{"output": "resposta"}`, nil)

	require.Equal(t, http.StatusOK, postJSON(r, "/api/doubts", gin.H{
		"subject": "quimica", "doubtText": validDoubt,
	}).Code)

	doubts, err := repo.ListByUser(context.Background(), testUserID, 10, 0)
	require.NoError(t, err)
	require.Len(t, doubts, 1)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/doubts/%d", doubts[0].ID), nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, feed.events, "doubt.deleted")

	remaining, err := repo.ListByUser(context.Background(), testUserID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
