package identity_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bissquit/coursehub/internal/identity"
	"github.com/bissquit/coursehub/internal/identity/jsonfile"
	"github.com/bissquit/coursehub/internal/identity/jwt"
	"github.com/bissquit/coursehub/internal/identity/password"
	"github.com/bissquit/coursehub/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	router *chi.Mux
	repo   *jsonfile.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := jsonfile.NewRepository(filepath.Join(t.TempDir(), "users.json"))
	auth, err := jwt.NewAuthenticator(jwt.Config{SecretKey: "test-secret-key"})
	require.NoError(t, err)

	service := identity.NewService(repo, password.NewHasher(bcrypt.MinCost), auth)
	handler := identity.NewHandler(service)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(httputil.AuthMiddleware(service))
		handler.RegisterProtectedRoutes(r)
	})

	return &testEnv{router: r, repo: repo}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHandler_SignupLoginMe(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/signup", "", map[string]string{
		"email":    "a@x.com",
		"password": "pw1",
		"username": "Alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var signupResp map[string]string
	decode(t, rec, &signupResp)
	assert.NotEmpty(t, signupResp["message"])
	assert.NotContains(t, rec.Body.String(), "pw1")

	rec = env.do(t, http.MethodPost, "/login", "", map[string]string{
		"email":    "A@X.com",
		"password": "pw1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var loginResp struct {
		Token string `json:"token"`
		User  struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Email    string `json:"email"`
			Password string `json:"password"`
		} `json:"user"`
	}
	decode(t, rec, &loginResp)
	assert.NotEmpty(t, loginResp.Token)
	assert.NotEmpty(t, loginResp.User.ID)
	assert.Equal(t, "Alice", loginResp.User.Name)
	assert.Equal(t, "a@x.com", loginResp.User.Email)
	assert.Empty(t, loginResp.User.Password)

	rec = env.do(t, http.MethodGet, "/me", loginResp.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var me map[string]interface{}
	decode(t, rec, &me)
	assert.Equal(t, loginResp.User.ID, me["id"])
	assert.Equal(t, "Alice", me["name"])
	assert.NotContains(t, me, "password")
	assert.NotContains(t, me, "enrolledCourseIds")
}

func TestHandler_SignupConflict(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]string{"email": "a@x.com", "password": "pw1", "username": "Alice"}
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/signup", "", body).Code)

	body["email"] = "A@x.COM"
	rec := env.do(t, http.MethodPost, "/signup", "", body)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var resp map[string]string
	decode(t, rec, &resp)
	assert.Equal(t, "User already exists.", resp["error"])
}

func TestHandler_SignupValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing email", map[string]string{"password": "pw1", "username": "A"}},
		{"missing password", map[string]string{"email": "a@x.com", "username": "A"}},
		{"missing username", map[string]string{"email": "a@x.com", "password": "pw1"}},
		{"blank password", map[string]string{"email": "a@x.com", "password": "", "username": "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/signup", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandler_SignupAcceptsAnyEmailString(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/signup", "", map[string]string{"email": "bob", "password": "pw1", "username": "Bob"})

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestHandler_SignupPasswordLength(t *testing.T) {
	env := newTestEnv(t)

	// 72 bytes once trimmed fits bcrypt's limit.
	padded := "  " + strings.Repeat("p", 72) + "  "
	rec := env.do(t, http.MethodPost, "/signup", "", map[string]string{"email": "p@x.com", "password": padded, "username": "P"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/login", "", map[string]string{"email": "p@x.com", "password": strings.Repeat("p", 72)})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// 40 runes but 80 bytes.
	rec = env.do(t, http.MethodPost, "/signup", "", map[string]string{"email": "q@x.com", "password": strings.Repeat("é", 40), "username": "Q"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	decode(t, rec, &resp)
	assert.Equal(t, "Password must be at most 72 bytes.", resp["error"])
}

func TestHandler_SignupInvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_LoginFailures(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/signup", "", map[string]string{
		"email": "a@x.com", "password": "pw1", "username": "Alice",
	}).Code)

	tests := []struct {
		name    string
		email   string
		pass    string
		message string
	}{
		{"unknown email", "b@x.com", "pw1", "Invalid email."},
		{"wrong password", "a@x.com", "pw2", "Invalid password."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/login", "", map[string]string{
				"email":    tt.email,
				"password": tt.pass,
			})

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var resp map[string]string
			decode(t, rec, &resp)
			assert.Equal(t, tt.message, resp["error"])
		})
	}
}

func TestHandler_MeRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/me", "forged.token.value", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandler_MeUserGone(t *testing.T) {
	env := newTestEnv(t)
	auth, err := jwt.NewAuthenticator(jwt.Config{SecretKey: "test-secret-key"})
	require.NoError(t, err)

	token, err := auth.Issue("deleted-user", "gone@x.com")
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/me", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
