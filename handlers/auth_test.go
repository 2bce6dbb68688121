package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/docflow/docflow/server/internal/config"
	"github.com/docflow/docflow/server/internal/sessions"
	"github.com/docflow/docflow/server/internal/tokens"
	"github.com/docflow/docflow/server/internal/users"
	"github.com/docflow/docflow/server/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authEnv struct {
	r     *gin.Engine
	cfg   *config.Config
	users *users.Service
	sess  *sessions.Service
	m     *mr.Miniredis
}

func newAuthEnv(t *testing.T, environment string) *authEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	sessions.SetBlacklistClient(client)
	t.Cleanup(func() { sessions.SetBlacklistClient(nil) })

	cfg := &config.Config{}
	cfg.Server.Environment = environment
	cfg.JWT.Secret = "auth-test-secret-32-bytes-xxxxxxx"
	cfg.JWT.AccessTokenTTL = 15 * time.Minute

	e := &authEnv{
		r:     gin.New(),
		cfg:   cfg,
		users: users.NewService(users.NewMemoryUserRepository()),
		sess:  sessions.NewService(sessions.NewRedisRepository(client, "test:session:"), time.Hour),
		m:     m,
	}
	h := NewAuthHandler(cfg, e.users, e.sess)
	h.Register(e.r.Group("/api"),
		middleware.AuthMiddleware(tokens.NewVerifier(cfg)),
		middleware.CallerMiddleware(CallerResolver(e.users)))
	return e
}

func (e *authEnv) post(t *testing.T, path, body, bearer string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return e.serve(t, req, bearer)
}

func (e *authEnv) serve(t *testing.T, req *http.Request, bearer string) (int, map[string]interface{}) {
	t.Helper()
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got), w.Body.String())
	return w.Code, got
}

func (e *authEnv) login(t *testing.T) (string, string) {
	t.Helper()
	code, got := e.post(t, "/api/auth/register", `{"email":"Dana@Example.com","password":"secret1","name":"Dana","department":"IT"}`, "")
	require.Equal(t, http.StatusCreated, code, got)
	code, got = e.post(t, "/api/auth/login", `{"email":"dana@example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusOK, code, got)
	access, _ := got["accessToken"].(string)
	refresh, _ := got["refreshToken"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	assert.EqualValues(t, 900, got["expiresIn"])
	return access, refresh
}

func TestRegisterLoginMe(t *testing.T) {
	e := newAuthEnv(t, "development")
	access, _ := e.login(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	code, got := e.serve(t, req, access)
	require.Equal(t, http.StatusOK, code, got)
	data, _ := got["data"].(map[string]interface{})
	assert.Equal(t, "dana@example.com", data["email"])
	assert.Equal(t, "IT", data["department"])
	assert.NotContains(t, data, "passwordHash")

	code, _ = e.serve(t, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRegister_DuplicateAndValidation(t *testing.T) {
	e := newAuthEnv(t, "development")
	e.login(t)

	code, got := e.post(t, "/api/auth/register", `{"email":"dana@example.com","password":"other12"}`, "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Email already exists", got["error"])

	code, got = e.post(t, "/api/auth/register", `{"email":"x@example.com","password":"123"}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Password must be at least 6 characters", got["error"])

	code, _ = e.post(t, "/api/auth/register", `{"email":"x@example.com"}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLogin_Failures(t *testing.T) {
	e := newAuthEnv(t, "production")
	code, _ := e.post(t, "/api/auth/register", `{"email":"p@example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusCreated, code)

	code, got := e.post(t, "/api/auth/login", `{"email":"p@example.com","password":"secret1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, users.ErrNotVerified.Error(), got["error"])

	code, got = e.post(t, "/api/auth/login", `{"email":"p@example.com","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, users.ErrInvalidCredentials.Error(), got["error"])

	code, _ = e.post(t, "/api/auth/login", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRefresh_RotatesToken(t *testing.T) {
	e := newAuthEnv(t, "development")
	_, refresh := e.login(t)

	code, got := e.post(t, "/api/auth/refresh", fmt.Sprintf(`{"refreshToken":"%s"}`, refresh), "")
	require.Equal(t, http.StatusOK, code, got)
	next, _ := got["refreshToken"].(string)
	assert.NotEmpty(t, got["accessToken"])
	assert.NotEqual(t, refresh, next)

	code, _ = e.post(t, "/api/auth/refresh", fmt.Sprintf(`{"refreshToken":"%s"}`, refresh), "")
	assert.Equal(t, http.StatusUnauthorized, code, "old refresh token is single-use")

	code, _ = e.post(t, "/api/auth/refresh", `{"refreshToken":"does-not-exist"}`, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLogout_BlacklistsAccessAndDeletesRefresh(t *testing.T) {
	e := newAuthEnv(t, "development")
	access, refresh := e.login(t)

	code, _ := e.post(t, "/api/auth/logout", fmt.Sprintf(`{"refreshToken":"%s"}`, refresh), access)
	require.Equal(t, http.StatusOK, code)

	sess, err := e.sess.ValidateRefresh(context.Background(), refresh)
	assert.NoError(t, err)
	assert.Nil(t, sess)
	assert.True(t, e.m.Exists("blacklist:access:"+access))

	code, got := e.serve(t, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), access)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "token revoked", got["error"])
}

func TestCallerResolver(t *testing.T) {
	svc := users.NewService(users.NewMemoryUserRepository())
	resolve := CallerResolver(svc)
	ctx := context.Background()

	id, err := resolve(ctx, map[string]interface{}{"iss": tokens.Issuer, "sub": "64f000000000000000000009"})
	require.NoError(t, err)
	assert.Equal(t, "64f000000000000000000009", id)

	oidcClaims := map[string]interface{}{"iss": "http://kc/realms/docflow", "sub": "kc-42", "email": "k@example.com", "name": "Kim"}
	first, err := resolve(ctx, oidcClaims)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	second, err := resolve(ctx, oidcClaims)
	require.NoError(t, err)
	assert.Equal(t, first, second, "provider subject maps to the same docflow user")

	id, err = resolve(ctx, map[string]interface{}{"iss": "other"})
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestParseExpFromJWT_VariousFormats(t *testing.T) {
	extra := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"s1","exp":1700000000}`))
	expTime, err := parseExpFromJWT("hdr." + extra + ".sig")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), expTime.Unix())

	nopayload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"s2"}`))
	_, err = parseExpFromJWT("hdr." + nopayload + ".sig")
	assert.Error(t, err)

	_, err = parseExpFromJWT("not.a.jwt")
	assert.Error(t, err)
}
