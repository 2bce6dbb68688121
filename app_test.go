package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/docflow/docflow/server/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Environment = "test"
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.JWT.Secret = "app-test-secret-32-bytes-xxxxxxxxx"
	cfg.JWT.AccessTokenTTL = 15 * time.Minute
	cfg.JWT.RefreshTokenTTL = time.Hour
	cfg.Workflow.TrackingAttempts = 3
	return cfg
}

type apiClient struct {
	t *testing.T
	r *gin.Engine
}

func (c apiClient) call(method, path, token, body string) (int, map[string]interface{}) {
	c.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)
	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w.Code, out
}

func (c apiClient) signup(email, name, dept string) string {
	c.t.Helper()
	code, out := c.call(http.MethodPost, "/api/auth/register", "",
		`{"email":"`+email+`","password":"secret1","name":"`+name+`","department":"`+dept+`"}`)
	require.Equal(c.t, http.StatusCreated, code, out)
	code, out = c.call(http.MethodPost, "/api/auth/login", "", `{"email":"`+email+`","password":"secret1"}`)
	require.Equal(c.t, http.StatusOK, code, out)
	return out["accessToken"].(string)
}

func TestApp_HealthAndReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a, err := newApp(context.Background(), testConfig())
	require.NoError(t, err)
	defer a.close()
	c := apiClient{t: t, r: a.router()}

	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "healthy", w.Body.String())
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))

	code, out := c.call(http.MethodGet, "/ready", "", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ready", out["status"])
	require.Equal(t, "memory", out["deps"].(map[string]interface{})["store"])
}

func TestApp_UnreachableRedisIsNotReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.Redis.Host = "127.0.0.1"
	cfg.Redis.Port = "1"
	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.close()

	code, out := apiClient{t: t, r: a.router()}.call(http.MethodGet, "/ready", "", "")
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, false, out["deps"].(map[string]interface{})["redis"])
}

func TestApp_DocumentRoutingEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a, err := newApp(context.Background(), testConfig())
	require.NoError(t, err)
	defer a.close()
	c := apiClient{t: t, r: a.router()}

	sam := c.signup("sam@example.com", "Sam", "Finance")
	rita := c.signup("rita@example.com", "Rita", "Legal")
	tom := c.signup("tom@example.com", "Tom", "HR")

	code, _ := c.call(http.MethodGet, "/api/documents", "", "")
	require.Equal(t, http.StatusUnauthorized, code)

	code, out := c.call(http.MethodPost, "/api/documents", sam,
		`{"title":"Lease","description":"Office lease renewal","receiverEmail":"rita@example.com"}`)
	require.Equal(t, http.StatusCreated, code, out)
	id := out["data"].(map[string]interface{})["id"].(string)

	code, out = c.call(http.MethodPut, "/api/documents/"+id+"/status", sam, `{"status":"Approved"}`)
	require.Equal(t, http.StatusForbidden, code, out)

	code, out = c.call(http.MethodPut, "/api/documents/"+id+"/status", rita, `{"status":"Accepted","comment":"ok","version":1}`)
	require.Equal(t, http.StatusOK, code, out)

	code, out = c.call(http.MethodPut, "/api/documents/"+id+"/forward", rita, `{"receiverEmail":"tom@example.com","comment":"please review","version":2}`)
	require.Equal(t, http.StatusOK, code, out)

	code, out = c.call(http.MethodGet, "/api/documents/inbox", tom, "")
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, out["count"])

	code, out = c.call(http.MethodGet, "/api/documents/"+id, tom, "")
	require.Equal(t, http.StatusOK, code)
	doc := out["data"].(map[string]interface{})
	require.Equal(t, "Pending", doc["status"])
	history := doc["history"].([]interface{})
	require.Len(t, history, 3)
	require.Equal(t, "Forwarded", history[2].(map[string]interface{})["status"])

	code, out = c.call(http.MethodGet, "/api/auth/me", tom, "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "tom@example.com", out["data"].(map[string]interface{})["email"])
}
