package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	aentity "github.com/datachef-lab/taskify-backend/internal/analytics/entity"
	"github.com/datachef-lab/taskify-backend/internal/middleware"
	"github.com/datachef-lab/taskify-backend/internal/task/testutil"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type metricSink struct {
	mu      sync.Mutex
	metrics []*aentity.PerformanceMetric
}

func (s *metricSink) RecordAsync(m *aentity.PerformanceMetric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, m)
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func protectedRouter() *gin.Engine {
	r := testutil.SetupRouter()
	api := testutil.AuthGroup(r, "/api")
	api.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id")})
	})
	api.POST("/admin", middleware.RequireRole(middleware.AdminRole), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	api.POST("/reviewers", middleware.RequireRole("REVIEWER"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	api.POST("/customers", middleware.RequirePermission("CREATE"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestJWTAuth(t *testing.T) {
	r := protectedRouter()

	w := testutil.DoRequest(r, http.MethodGet, "/api/whoami", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, float64(40100), testutil.ParseResponse(w)["code"])

	w = testutil.DoRequest(r, http.MethodGet, "/api/whoami", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, float64(40102), testutil.ParseResponse(w)["code"])

	w = testutil.DoRequest(r, http.MethodGet, "/api/whoami", nil, testutil.MemberToken("user-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", testutil.ParseResponse(w)["user_id"])

	// query token for EventSource clients
	w = testutil.DoRequest(r, http.MethodGet, "/api/whoami?token="+testutil.MemberToken("user-2"), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-2", testutil.ParseResponse(w)["user_id"])
}

func TestJWTAuth_RejectsRefreshAndForeignTokens(t *testing.T) {
	r := protectedRouter()

	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "user-1",
		"uid":  "user-1",
		"type": "refresh",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testutil.JWTSecret))
	require.NoError(t, err)
	w := testutil.DoRequest(r, http.MethodGet, "/api/whoami", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("another-secret"))
	require.NoError(t, err)
	w = testutil.DoRequest(r, http.MethodGet, "/api/whoami", nil, foreign)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid": "user-1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte(testutil.JWTSecret))
	require.NoError(t, err)
	w = testutil.DoRequest(r, http.MethodGet, "/api/whoami", nil, expired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRoleAndPermission(t *testing.T) {
	r := protectedRouter()
	admin := testutil.AdminToken("admin-1")
	member := testutil.MemberToken("member-1")
	reviewer := testutil.GenerateTestToken("rev-1", "Reviewer", "rev@test.com", []string{"REVIEWER"}, []string{"CREATE"})

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"admin passes role gate", "/api/admin", admin, http.StatusNoContent},
		{"member blocked by role gate", "/api/admin", member, http.StatusForbidden},
		{"reviewer role", "/api/reviewers", reviewer, http.StatusNoContent},
		{"admin passes any role", "/api/reviewers", admin, http.StatusNoContent},
		{"member lacks permission", "/api/customers", member, http.StatusForbidden},
		{"reviewer holds permission", "/api/customers", reviewer, http.StatusNoContent},
		{"admin bypasses permission", "/api/customers", admin, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutil.DoRequest(r, http.MethodPost, tt.path, nil, tt.token)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestPerformance(t *testing.T) {
	sink := &metricSink{}
	r := testutil.SetupRouter()
	r.Use(middleware.Performance(sink))
	r.GET("/api/v1/tasks/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	r.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := testutil.DoRequest(r, http.MethodGet, "/api/v1/tasks/42?verbose=1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Regexp(t, `^\d+\.\d{2}ms$`, w.Header().Get("X-Response-Time"))

	testutil.DoRequest(r, http.MethodGet, "/health", nil, "")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.metrics, 1)
	m := sink.metrics[0]
	assert.Equal(t, "GET /api/v1/tasks/:id", m.Operation)
	assert.Equal(t, aentity.MetricAPIResponseTime, m.MetricType)
	require.NotNil(t, m.StatusCode)
	assert.Equal(t, http.StatusOK, *m.StatusCode)
	assert.Contains(t, string(m.RequestDetails), `"query":"verbose=1"`)
}

func TestCORSAndRequestID(t *testing.T) {
	r := testutil.SetupRouter()
	r.Use(middleware.CORS("https://app.taskify.test"), middleware.RequestID())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req, _ := http.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://app.taskify.test")
	w := serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.taskify.test", w.Header().Get("Access-Control-Allow-Origin"))

	req, _ = http.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.test")
	req.Header.Set("X-Request-ID", "req-123")
	w = serve(r, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}
