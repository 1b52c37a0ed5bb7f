package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// sessionManager tracks admin sessions by bearer token. Tokens expire
// after the configured idle timeout; each authenticated request renews
// the expiry.
type sessionManager struct {
	mu             sync.Mutex
	tokens         map[string]time.Time
	timeoutMinutes int
	now            func() time.Time
}

func newSessionManager(timeoutMinutes int) *sessionManager {
	return &sessionManager{
		tokens:         make(map[string]time.Time),
		timeoutMinutes: timeoutMinutes,
		now:            time.Now,
	}
}

func (m *sessionManager) open() string {
	token := uuid.NewString()
	m.mu.Lock()
	m.tokens[token] = m.now().Add(time.Duration(m.timeoutMinutes) * time.Minute)
	m.mu.Unlock()
	return token
}

func (m *sessionManager) close(token string) {
	m.mu.Lock()
	delete(m.tokens, token)
	m.mu.Unlock()
}

// valid reports whether the token names a live session and renews it.
// Expired tokens are pruned on the way through.
func (m *sessionManager) valid(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for t, expiry := range m.tokens {
		if now.After(expiry) {
			delete(m.tokens, t)
		}
	}

	if _, ok := m.tokens[token]; !ok {
		return false
	}
	m.tokens[token] = now.Add(time.Duration(m.timeoutMinutes) * time.Minute)
	return true
}

const sessionHeader = "X-Admin-Token"

// RequireAdmin guards the admin routes behind a valid session token.
func (h *Handler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(sessionHeader)
		if token == "" || !h.sessions.valid(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin session required"})
			return
		}
		c.Next()
	}
}
