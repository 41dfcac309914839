package client

import (
	"fmt"
	"sync"

	"github.com/bissquit/coursehub/internal/domain"
	"github.com/bissquit/coursehub/internal/pkg/jsonfile"
)

const sessionFilePerm = 0o600

// Session is the persisted client state.
type Session struct {
	Token string             `json:"token"`
	User  *domain.PublicUser `json:"user,omitempty"`
}

// SessionCache holds the current session in memory and mirrors it to a
// file. An empty path keeps the session in memory only.
type SessionCache struct {
	path    string
	mu      sync.RWMutex
	session Session
}

// NewSessionCache creates a cache and loads any session saved at path.
func NewSessionCache(path string) (*SessionCache, error) {
	c := &SessionCache{path: path}
	if path == "" {
		return c, nil
	}

	if _, err := jsonfile.Load(path, &c.session); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return c, nil
}

// Save stores a freshly issued token together with the user it belongs to.
func (c *SessionCache) Save(token string, user domain.PublicUser) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = Session{Token: token, User: &user}
	return c.persist()
}

// SetUser replaces the cached profile, keeping the token.
func (c *SessionCache) SetUser(user domain.PublicUser) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Token == "" {
		return nil
	}
	c.session.User = &user
	return c.persist()
}

// Clear forgets the session and removes the file.
func (c *SessionCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = Session{}
	if c.path == "" {
		return nil
	}
	if err := jsonfile.Remove(c.path); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Token returns the cached token or "".
func (c *SessionCache) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Token
}

// User returns the cached profile.
func (c *SessionCache) User() (domain.PublicUser, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session.User == nil {
		return domain.PublicUser{}, false
	}
	return *c.session.User, true
}

// LoggedIn reports whether a token is cached.
func (c *SessionCache) LoggedIn() bool {
	return c.Token() != ""
}

func (c *SessionCache) persist() error {
	if c.path == "" {
		return nil
	}
	if err := jsonfile.Save(c.path, c.session, sessionFilePerm); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
