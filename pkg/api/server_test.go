package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskcore/pkg/account"
	"github.com/platinummonkey/taskcore/pkg/audit"
	"github.com/platinummonkey/taskcore/pkg/auth"
	"github.com/platinummonkey/taskcore/pkg/middleware"
	"github.com/platinummonkey/taskcore/pkg/notifications"
	"github.com/platinummonkey/taskcore/pkg/observability"
	"github.com/platinummonkey/taskcore/pkg/rbac"
	"github.com/platinummonkey/taskcore/pkg/session"
	"github.com/platinummonkey/taskcore/pkg/storage/storetest"
	"github.com/platinummonkey/taskcore/pkg/tasks"
	"github.com/platinummonkey/taskcore/pkg/users"
)

const (
	testPassword  = "correct horse battery"
	adminEmail    = "admin@example.com"
	adminPassword = "admin password 1"
)

type linkCatcher struct {
	mu    sync.Mutex
	links map[string]string
}

func (c *linkCatcher) SendVerificationEmail(to, link string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.links[to] = link
}

func (c *linkCatcher) token(t *testing.T, to string) string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	u, err := url.Parse(c.links[to])
	require.NoError(t, err)
	return u.Query().Get("token")
}

type testServer struct {
	*httptest.Server
	mail    *linkCatcher
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, limiter middleware.Limiter) *testServer {
	t.Helper()
	ctx := context.Background()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := storetest.New(t)
	require.NoError(t, rbac.Seed(ctx, store, log))
	encoder := auth.NewBcryptEncoder(4)
	_, err := rbac.SeedAdmin(ctx, store, encoder, adminEmail, adminPassword)
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(auth.TokenServiceConfig{
		Secret: []byte(strings.Repeat("t", auth.MinSecretLength)),
		TTL:    15 * time.Minute,
		Issuer: "taskcore",
	})
	require.NoError(t, err)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	resolver := rbac.NewResolver(store, 16, time.Minute)
	mail := &linkCatcher{links: map[string]string{}}
	sessions := session.NewManager(store, tokens, resolver, encoder, mail,
		session.Config{PublicBaseURL: "https://tasks.example.com"}, log, metrics)

	opts := Options{Tokens: tokens, Metrics: metrics, Logger: log}
	if limiter != nil {
		opts.CredentialLimiter = middleware.NewRateLimitMiddleware(limiter, "auth", time.Minute, metrics, log).Handler
	}

	server := NewServer(Services{
		Sessions:      sessions,
		Accounts:      account.NewService(store, encoder, sessions, log),
		Users:         users.NewService(store, encoder, log),
		Roles:         rbac.NewAdminService(store, resolver, log),
		Tasks:         tasks.NewService(store, audit.NewLogger(log, metrics), notifications.NewNotifier(log, metrics), log, metrics),
		Logs:          audit.NewQueryService(store),
		Notifications: notifications.NewService(store),
	}, opts)

	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, mail: mail, metrics: metrics}
}

type envelope struct {
	Success bool            `json:"success"`
	Status  int             `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	TraceID string          `json:"traceId"`
	Path    string          `json:"path"`
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func decode(t *testing.T, env envelope, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

type loginResult struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	Permissions  []string `json:"permissions"`
}

func (ts *testServer) login(t *testing.T, email, password string) loginResult {
	t.Helper()
	status, env := ts.do(t, "POST", "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status, env.Code)
	var out loginResult
	decode(t, env, &out)
	return out
}

// signup registers, verifies and logs in a new user.
func (ts *testServer) signup(t *testing.T, email string) (int64, string) {
	t.Helper()
	status, env := ts.do(t, "POST", "/api/auth/register", "", map[string]string{
		"email": email, "fullName": "Test User", "password": testPassword,
	})
	require.Equal(t, http.StatusCreated, status, env.Code)
	var user struct {
		ID      int64 `json:"id"`
		Enabled bool  `json:"enabled"`
	}
	decode(t, env, &user)
	require.False(t, user.Enabled)

	status, env = ts.do(t, "GET", "/api/auth/verify?token="+ts.mail.token(t, email), "", nil)
	require.Equal(t, http.StatusOK, status, env.Code)

	return user.ID, ts.login(t, email, testPassword).AccessToken
}

func TestRoutesRegistered(t *testing.T) {
	server := NewServer(Services{}, Options{})
	tests := []struct {
		method string
		path   string
	}{
		{"POST", "/api/auth/register"},
		{"GET", "/api/auth/verify"},
		{"POST", "/api/auth/login"},
		{"POST", "/api/auth/refresh"},
		{"POST", "/api/auth/logout"},
		{"GET", "/api/me"},
		{"PUT", "/api/me/password"},
		{"PUT", "/api/me/email"},
		{"GET", "/api/admin/users"},
		{"PUT", "/api/admin/users/3/roles"},
		{"DELETE", "/api/admin/roles/3"},
		{"PUT", "/api/admin/permissions/3"},
		{"GET", "/api/tasks"},
		{"PATCH", "/api/tasks/1/assign"},
		{"PATCH", "/api/tasks/1/status"},
		{"DELETE", "/api/tasks/1/subtasks/2"},
		{"PUT", "/api/tasks/1/comments/2"},
		{"GET", "/api/tasks/1/logs"},
		{"GET", "/api/logs/me"},
		{"GET", "/api/logs/5"},
		{"GET", "/api/notifications/unread-count"},
		{"PATCH", "/api/notifications/5/read"},
		{"PATCH", "/api/notifications/read-all"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			var match mux.RouteMatch
			assert.True(t, server.Router().Match(req, &match), "route not matched")
			assert.NoError(t, match.MatchErr)
		})
	}
}

func TestEnvelopes(t *testing.T) {
	ts := newTestServer(t, nil)

	status, env := ts.do(t, "GET", "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)
	assert.Equal(t, "AUTH_401", env.Code)
	assert.Equal(t, "/api/me", env.Path)
	assert.NotEmpty(t, env.TraceID)

	status, env = ts.do(t, "DELETE", "/api/auth/login", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Equal(t, "SYS_003", env.Code)

	status, env = ts.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "", "password": ""})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "SYS_002", env.Code)
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	_, access := ts.signup(t, "carol@example.com")

	status, env := ts.do(t, "GET", "/api/me", access, nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	assert.Equal(t, "SYS_000", env.Code)
	var me struct {
		Email string `json:"email"`
	}
	decode(t, env, &me)
	assert.Equal(t, "carol@example.com", me.Email)

	tokens := ts.login(t, "CAROL@example.com", testPassword)
	assert.Contains(t, tokens.Permissions, rbac.PermTaskCreate)

	status, env = ts.do(t, "POST", "/api/auth/refresh", "", map[string]string{"refreshToken": tokens.RefreshToken})
	require.Equal(t, http.StatusOK, status)
	var rotated loginResult
	decode(t, env, &rotated)
	assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	status, env = ts.do(t, "POST", "/api/auth/refresh", "", map[string]string{"refreshToken": tokens.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "AUTH_001", env.Code)

	status, _ = ts.do(t, "POST", "/api/auth/logout", "", map[string]string{"refreshToken": rotated.RefreshToken})
	assert.Equal(t, http.StatusOK, status)
	status, _ = ts.do(t, "POST", "/api/auth/refresh", "", map[string]string{"refreshToken": rotated.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = ts.do(t, "GET", "/api/auth/verify?token=nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "AUTH_004", env.Code)
}

func TestTaskFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	aliceID, alice := ts.signup(t, "alice@example.com")
	bobID, bob := ts.signup(t, "bob@example.com")
	_, eve := ts.signup(t, "eve@example.com")

	status, env := ts.do(t, "POST", "/api/tasks", alice, map[string]interface{}{
		"title": "Write report", "priority": "HIGH", "dueDate": "2030-01-31", "tags": []string{"Work"},
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var task struct {
		ID        int64  `json:"id"`
		Status    string `json:"status"`
		CreatorID int64  `json:"createdById"`
	}
	decode(t, env, &task)
	assert.Equal(t, "TODO", task.Status)
	assert.Equal(t, aliceID, task.CreatorID)

	taskPath := "/api/tasks/" + itoa(task.ID)

	status, env = ts.do(t, "GET", taskPath, eve, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "TASK_403", env.Code)

	status, env = ts.do(t, "PATCH", taskPath+"/assign", alice, map[string]int64{"assigneeId": bobID})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = ts.do(t, "PATCH", taskPath+"/status", bob, map[string]string{"status": "IN_PROGRESS"})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = ts.do(t, "GET", "/api/notifications/unread-count", bob, nil)
	require.Equal(t, http.StatusOK, status)
	var count struct {
		Count int `json:"count"`
	}
	decode(t, env, &count)
	assert.Equal(t, 1, count.Count, "bob is notified of the assignment only")

	status, env = ts.do(t, "GET", "/api/notifications?unreadOnly=true", alice, nil)
	require.Equal(t, http.StatusOK, status)
	var inbox struct {
		Items []struct {
			ID      int64  `json:"id"`
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"items"`
	}
	decode(t, env, &inbox)
	require.Len(t, inbox.Items, 2, "creation and status change")
	assert.Equal(t, "TASK_STATUS_UPDATED", inbox.Items[0].Type)
	assert.Contains(t, inbox.Items[0].Message, "bob@example.com changed status of task")

	status, env = ts.do(t, "PATCH", "/api/notifications/"+itoa(inbox.Items[0].ID)+"/read", bob, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "NTF_403", env.Code)

	status, _ = ts.do(t, "PATCH", "/api/notifications/"+itoa(inbox.Items[0].ID)+"/read", alice, nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = ts.do(t, "GET", taskPath+"/logs", alice, nil)
	require.Equal(t, http.StatusOK, status)
	var logs struct {
		Total int `json:"total"`
		Items []struct {
			EventType string `json:"eventType"`
		} `json:"items"`
	}
	decode(t, env, &logs)
	require.Equal(t, 3, logs.Total)
	assert.Equal(t, "TASK_STATUS_UPDATED", logs.Items[0].EventType)

	status, env = ts.do(t, "POST", taskPath+"/comments", bob, map[string]string{"content": "on it"})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var comment struct {
		ID int64 `json:"id"`
	}
	decode(t, env, &comment)

	status, env = ts.do(t, "DELETE", taskPath+"/comments/"+itoa(comment.ID), alice, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "CMT_403", env.Code)

	status, _ = ts.do(t, "DELETE", taskPath, alice, nil)
	assert.Equal(t, http.StatusOK, status)
	status, env = ts.do(t, "GET", taskPath, alice, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "TASK_404", env.Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(ts.metrics.AccessDeniedTotal.WithLabelValues("TASK_403")))
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	_, user := ts.signup(t, "user@example.com")
	admin := ts.login(t, adminEmail, adminPassword).AccessToken

	status, env := ts.do(t, "GET", "/api/admin/users", user, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "AUTH_403", env.Code)

	status, env = ts.do(t, "GET", "/api/admin/users", admin, nil)
	require.Equal(t, http.StatusOK, status)
	var page struct {
		Total int `json:"total"`
	}
	decode(t, env, &page)
	assert.Equal(t, 2, page.Total)

	status, env = ts.do(t, "POST", "/api/admin/roles", admin, map[string]interface{}{
		"name": "auditor", "permissions": []string{"TASK_READ"},
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var role struct {
		Name string `json:"name"`
	}
	decode(t, env, &role)
	assert.Equal(t, "AUDITOR", role.Name)

	status, env = ts.do(t, "POST", "/api/admin/roles", admin, map[string]interface{}{"name": "AUDITOR"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "AUTH_407", env.Code)

	status, env = ts.do(t, "GET", "/api/admin/users/999", admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "AUTH_404", env.Code)
}

func TestCredentialRateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Hour,
		BurstSize:         2,
	})
	ts := newTestServer(t, limiter)

	creds := map[string]string{"email": "nobody@example.com", "password": "wrong password"}
	for i := 0; i < 2; i++ {
		status, env := ts.do(t, "POST", "/api/auth/login", "", creds)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "AUTH_001", env.Code)
	}

	status, env := ts.do(t, "POST", "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "SYS_429", env.Code)

	// Verification is not throttled.
	status, _ = ts.do(t, "GET", "/api/auth/verify?token=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
