package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/evanmori/neighborlink/internal/app"
	iauth "github.com/evanmori/neighborlink/internal/auth"
	"github.com/evanmori/neighborlink/internal/database/testutil"
	"github.com/evanmori/neighborlink/internal/realtime"
)

type apiEnv struct {
	router *gin.Engine
	t      *testing.T
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)
	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "neighborlink"})
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Uploads.Dir = t.TempDir()
	cfg.Monitoring.Prometheus.Enabled = false

	router, err := NewRouter(db, jwt, cfg, realtime.NewHub())
	require.NoError(t, err)
	return &apiEnv{router: router, t: t}
}

func (e *apiEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var payload *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		payload = bytes.NewBuffer(raw)
	} else {
		payload = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) decode(w *httptest.ResponseRecorder) map[string]any {
	e.t.Helper()

	var body map[string]any
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func (e *apiEnv) register(name, email string) string {
	e.t.Helper()

	w := e.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": name, "email": email, "password": "hunter2hunter2",
	})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())

	data := e.decode(w)["data"].(map[string]any)
	return data["token"].(string)
}

func TestHealthEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ok")
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(http.MethodGet, "/api/v1/nothing-here", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(http.MethodPost, "/api/v1/posts", "", gin.H{
		"title": "x", "description": "y", "type": "request",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFullLifecycleOverHTTP(t *testing.T) {
	env := newAPIEnv(t)

	ownerToken := env.register("Alice", "alice@example.com")
	helperToken := env.register("Bob", "bob@example.com")

	// Owner publishes a request.
	w := env.do(http.MethodPost, "/api/v1/posts", ownerToken, gin.H{
		"title":       "Fix my fence",
		"description": "Storm damage on the north side",
		"type":        "request",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	postID := env.decode(w)["data"].(map[string]any)["id"].(string)

	// The board is publicly readable.
	w = env.do(http.MethodGet, "/api/v1/posts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Helper claims it.
	w = env.do(http.MethodPost, fmt.Sprintf("/api/v1/posts/%s/assignments", postID), helperToken, gin.H{
		"message": "I have spare boards",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assignmentID := env.decode(w)["data"].(map[string]any)["id"].(string)

	// A second helper cannot stack a claim.
	thirdToken := env.register("Carol", "carol@example.com")
	w = env.do(http.MethodPost, fmt.Sprintf("/api/v1/posts/%s/assignments", postID), thirdToken, gin.H{
		"message": "me too",
	})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	// Only the owner can approve.
	w = env.do(http.MethodPut, fmt.Sprintf("/api/v1/assignments/%s/decision", assignmentID), helperToken, gin.H{
		"approved": true,
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPut, fmt.Sprintf("/api/v1/assignments/%s/decision", assignmentID), ownerToken, gin.H{
		"approved": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Helper works it to completion.
	for _, status := range []string{"in_progress", "completed"} {
		w = env.do(http.MethodPut, fmt.Sprintf("/api/v1/assignments/%s/status", assignmentID), helperToken, gin.H{
			"status": status,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	// The post mirrors the terminal state.
	w = env.do(http.MethodGet, "/api/v1/posts/"+postID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "completed", env.decode(w)["data"].(map[string]any)["status"])

	// Owner reviews the finished work.
	w = env.do(http.MethodPost, fmt.Sprintf("/api/v1/assignments/%s/review", assignmentID), ownerToken, gin.H{
		"rating": 5, "review": "fence looks great",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The helper accumulated notifications along the way.
	w = env.do(http.MethodGet, "/api/v1/notifications/unread-count", helperToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	count := env.decode(w)["data"].(map[string]any)["count"].(float64)
	require.Positive(t, count)
}

func TestChatOverHTTP(t *testing.T) {
	env := newAPIEnv(t)

	ownerToken := env.register("Alice", "alice@example.com")
	helperToken := env.register("Bob", "bob@example.com")

	w := env.do(http.MethodPost, "/api/v1/posts", ownerToken, gin.H{
		"title": "Walk my dog", "description": "weekday mornings", "type": "request",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	postID := env.decode(w)["data"].(map[string]any)["id"].(string)

	w = env.do(http.MethodPost, fmt.Sprintf("/api/v1/posts/%s/assignments", postID), helperToken, gin.H{
		"message": "I walk dogs professionally",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assignmentID := env.decode(w)["data"].(map[string]any)["id"].(string)

	// Chat stays closed until approval.
	w = env.do(http.MethodGet, fmt.Sprintf("/api/v1/assignments/%s/chat", assignmentID), helperToken, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPut, fmt.Sprintf("/api/v1/assignments/%s/decision", assignmentID), ownerToken, gin.H{
		"approved": true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, fmt.Sprintf("/api/v1/assignments/%s/chat/messages", assignmentID), helperToken, gin.H{
		"content": "What time works?",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(http.MethodGet, fmt.Sprintf("/api/v1/assignments/%s/chat", assignmentID), ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	chat := env.decode(w)["data"].(map[string]any)
	messages := chat["messages"].([]any)
	require.Len(t, messages, 1)

	w = env.do(http.MethodGet, "/api/v1/chats", helperToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
}
