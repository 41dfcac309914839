package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bissquit/coursehub/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Client calls the coursehub API on behalf of a single user.
type Client struct {
	baseURL    string
	session    *SessionCache
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*options)

type options struct {
	base    http.RoundTripper
	notify  Notifier
	timeout time.Duration
}

// WithTransport sets the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

// WithNotifier replaces LogNotifier. Pass nil to silence failures.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notify = n }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// New creates a client for the API at baseURL using session for the token.
func New(baseURL string, session *SessionCache, opts ...Option) *Client {
	o := options{notify: LogNotifier, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		httpClient: &http.Client{
			Timeout: o.timeout,
			Transport: &Transport{
				Base:    o.base,
				Session: session,
				Notify:  o.notify,
			},
		},
	}
}

// Session returns the session cache the client uses.
func (c *Client) Session() *SessionCache {
	return c.session
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string            `json:"token"`
	User  domain.PublicUser `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type coursesResponse struct {
	Courses []domain.Course `json:"courses"`
}

type enrolledCoursesResponse struct {
	EnrolledCourses []domain.Course `json:"enrolledCourses"`
}

type enrollRequest struct {
	CourseID string `json:"courseId"`
}

type enrollResponse struct {
	Message string        `json:"message"`
	Course  domain.Course `json:"course"`
}

// Signup registers a new account. It does not log in.
func (c *Client) Signup(ctx context.Context, email, password, username string) (string, error) {
	var resp messageResponse
	err := c.do(ctx, http.MethodPost, "/signup", signupRequest{
		Email:    email,
		Password: password,
		Username: username,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Login authenticates and caches the returned token and profile.
func (c *Client) Login(ctx context.Context, email, password string) (domain.PublicUser, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/login", loginRequest{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return domain.PublicUser{}, err
	}

	if err := c.session.Save(resp.Token, resp.User); err != nil {
		return domain.PublicUser{}, err
	}
	return resp.User, nil
}

// Logout drops the cached session. Tokens are not revoked server-side.
func (c *Client) Logout() error {
	return c.session.Clear()
}

// Me fetches the current profile and refreshes the cached copy.
func (c *Client) Me(ctx context.Context) (domain.PublicUser, error) {
	if !c.session.LoggedIn() {
		return domain.PublicUser{}, ErrNotLoggedIn
	}

	var user domain.PublicUser
	if err := c.do(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return domain.PublicUser{}, err
	}
	if err := c.session.SetUser(user); err != nil {
		return domain.PublicUser{}, err
	}
	return user, nil
}

// Courses lists the catalog.
func (c *Client) Courses(ctx context.Context) ([]domain.Course, error) {
	var resp coursesResponse
	if err := c.do(ctx, http.MethodGet, "/courses", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Courses, nil
}

// Course fetches a single course.
func (c *Client) Course(ctx context.Context, id string) (*domain.Course, error) {
	var course domain.Course
	if err := c.do(ctx, http.MethodGet, "/courses/"+url.PathEscape(id), nil, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// Enroll enrolls the current user in a course and refreshes the cached
// profile afterwards.
func (c *Client) Enroll(ctx context.Context, courseID string) (*domain.Course, error) {
	var resp enrollResponse
	if err := c.do(ctx, http.MethodPut, "/enroll-course", enrollRequest{CourseID: courseID}, &resp); err != nil {
		return nil, err
	}
	if _, err := c.Me(ctx); err != nil {
		return nil, fmt.Errorf("refresh profile: %w", err)
	}
	return &resp.Course, nil
}

// Unenroll removes a course from the current user's enrollments.
func (c *Client) Unenroll(ctx context.Context, courseID string) error {
	return c.do(ctx, http.MethodDelete, "/unenroll-course/"+url.PathEscape(courseID), nil, nil)
}

// EnrolledCourses lists the current user's courses.
func (c *Client) EnrolledCourses(ctx context.Context) ([]domain.Course, error) {
	var resp enrolledCoursesResponse
	if err := c.do(ctx, http.MethodGet, "/user-enrolled-courses", nil, &resp); err != nil {
		return nil, err
	}
	return resp.EnrolledCourses, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return parseAPIError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
