package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bissquit/coursehub/internal/client"
	"github.com/bissquit/coursehub/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCourses = `[
  {"id": "c1", "title": "Go Basics", "imageUrl": "images/go.png"},
  {"id": "c2", "title": "Concurrency", "imageUrl": "images/conc.png"}
]`

func newTestApp(t *testing.T, mutate func(*config.Config)) (*App, *config.Config) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "courses.json"), []byte(testCourses), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "images"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "images", "go.png"), []byte("png"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "openapi.yaml"), []byte("openapi: 3.0.3\n"), 0o600))

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Server.MetricsPort = "0"
	cfg.Server.ImagesDir = filepath.Join(dir, "images")
	cfg.Server.OpenAPIPath = filepath.Join(dir, "openapi.yaml")
	cfg.Log.Level = "error"
	cfg.JWT.SecretKey = "test-secret-key"
	cfg.Password.BcryptCost = 4
	cfg.Storage.UsersFile = filepath.Join(dir, "users.json")
	cfg.Storage.CoursesFile = filepath.Join(dir, "courses.json")
	cfg.RateLimit = config.RateLimitConfig{}
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, cfg.Validate())

	application, err := New(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = application.Shutdown(context.Background())
	})
	return application, &cfg
}

func serve(a *App, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)
	return rec
}

func TestApp_UnmatchedRoute(t *testing.T) {
	a, _ := newTestApp(t, nil)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/does-not-exist"},
		{http.MethodGet, "/enroll-course"},
		{http.MethodPost, "/me"},
		{http.MethodGet, "/signup"},
		{http.MethodPut, "/courses"},
	}

	for _, tt := range tests {
		rec := serve(a, tt.method, tt.path, nil)

		assert.Equal(t, http.StatusNotFound, rec.Code, tt.method+" "+tt.path)
		assert.JSONEq(t, `{"message":"404 - Not Found"}`, rec.Body.String(), tt.method+" "+tt.path)
	}
}

func TestApp_ProtectedRoutesRequireToken(t *testing.T) {
	a, _ := newTestApp(t, nil)

	for _, path := range []string{"/me", "/courses", "/user-enrolled-courses"} {
		rec := serve(a, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		assert.JSONEq(t, `{"error":"no token provided"}`, rec.Body.String(), path)
	}
}

func TestApp_OperationalEndpoints(t *testing.T) {
	a, _ := newTestApp(t, nil)

	rec := serve(a, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(a, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(a, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var v map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Contains(t, v, "version")
	assert.Contains(t, v, "commit")

	rec = serve(a, http.MethodGet, "/api/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-yaml", rec.Header().Get("Content-Type"))
}

func TestApp_ReadyzFailsOnCorruptStore(t *testing.T) {
	a, cfg := newTestApp(t, nil)
	require.NoError(t, os.WriteFile(cfg.Storage.UsersFile, []byte("{broken"), 0o600))

	rec := serve(a, http.MethodGet, "/readyz", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestApp_ServesImages(t *testing.T) {
	a, _ := newTestApp(t, nil)

	rec := serve(a, http.MethodGet, "/images/go.png", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())

	rec = serve(a, http.MethodGet, "/images/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(a, http.MethodGet, "/images/missing.png", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApp_RateLimitsAuthRoutes(t *testing.T) {
	a, _ := newTestApp(t, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{RPS: 0.001, Burst: 2}
	})

	body := map[string]string{"email": "x@x.com", "password": "pw"}
	for i := 0; i < 2; i++ {
		rec := serve(a, http.MethodPost, "/login", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := serve(a, http.MethodPost, "/login", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// protected routes are not throttled
	rec = serve(a, http.MethodGet, "/courses", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestApp_ClientScenario(t *testing.T) {
	a, _ := newTestApp(t, nil)
	srv := httptest.NewServer(a.Router())
	t.Cleanup(srv.Close)

	session, err := client.NewSessionCache("")
	require.NoError(t, err)
	c := client.New(srv.URL, session, client.WithNotifier(nil))
	ctx := context.Background()

	_, err = c.Signup(ctx, "a@x.com", "pw1", "Alice")
	require.NoError(t, err)

	_, err = c.Signup(ctx, "A@x.com", "pw2", "Impostor")
	assert.True(t, client.IsStatus(err, http.StatusConflict))

	user, err := c.Login(ctx, "A@X.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)

	courses, err := c.Courses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, srv.URL+"/images/go.png", courses[0].ImageURL)

	_, err = c.Enroll(ctx, "c1")
	require.NoError(t, err)

	_, err = c.Enroll(ctx, "c1")
	assert.True(t, client.IsStatus(err, http.StatusConflict))

	enrolled, err := c.EnrolledCourses(ctx)
	require.NoError(t, err)
	require.Len(t, enrolled, 1)
	assert.Equal(t, "c1", enrolled[0].ID)

	require.NoError(t, c.Unenroll(ctx, "c1"))

	err = c.Unenroll(ctx, "c1")
	assert.True(t, client.IsStatus(err, http.StatusNotFound))

	enrolled, err = c.EnrolledCourses(ctx)
	require.NoError(t, err)
	assert.Empty(t, enrolled)
}
