package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProtectedRouter(ts TokenService, repo *Repo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(ts, repo), func(c *gin.Context) {
		claims := MustGetClaims(c)
		c.JSON(http.StatusOK, gin.H{"id": claims.UserID})
	})
	return r
}

func getWithToken(r *gin.Engine, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareTokenVersion(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ts := TokenService{Secret: []byte("test-secret"), Issuer: "reditto", Duration: time.Hour}
	r := newProtectedRouter(ts, repo)

	u := User{ID: "user-1", Name: "Maria", Email: "maria@example.com", PasswordHash: "x"}
	require.NoError(t, repo.CreateUser(context.Background(), u))

	token, _, err := ts.Sign(&u)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, getWithToken(r, token).Code)

	// logout invalidates every token signed before the bump
	require.NoError(t, repo.BumpTokenVersion(context.Background(), "user-1"))
	assert.Equal(t, http.StatusUnauthorized, getWithToken(r, token).Code)
}

func TestAuthMiddlewareRejectsDeletedUser(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ts := TokenService{Secret: []byte("test-secret"), Issuer: "reditto", Duration: time.Hour}
	r := newProtectedRouter(ts, repo)

	ghost := User{ID: "ghost", Name: "Fantasma", Email: "ghost@example.com"}
	token, _, err := ts.Sign(&ghost)
	require.NoError(t, err)

	w := getWithToken(r, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Sessão inválida")
}
