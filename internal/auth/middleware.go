package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/entities"
)

const (
	ContextKeyUserID   = "auth_user_id"
	ContextKeyRole     = "auth_role"
	ContextKeyAuthType = "auth_type"
)

// AuthType records how the caller was identified.
type AuthType string

const (
	AuthTypeNone    AuthType = "none"
	AuthTypeSession AuthType = "session"
	AuthTypeBearer  AuthType = "bearer"
)

// Middleware resolves the owner of every request.
type Middleware struct {
	service       *Service
	sessions      *SessionManager
	config        config.Auth
	defaultUserID uint
	publicPaths   map[string]bool
}

// NewMiddleware builds the auth middleware. defaultUserID is the shared
// owner used when cfg.Mode is none; sessions may be nil.
func NewMiddleware(service *Service, sessions *SessionManager, cfg config.Auth, defaultUserID uint) *Middleware {
	return &Middleware{
		service:       service,
		sessions:      sessions,
		config:        cfg,
		defaultUserID: defaultUserID,
		publicPaths: map[string]bool{
			"/health":         true,
			"/ping":           true,
			"/api/auth/login": true,
		},
	}
}

func (m *Middleware) Handler() gin.HandlerFunc {
	if m.config.Mode == config.AuthModeNone {
		return func(c *gin.Context) {
			c.Set(ContextKeyUserID, m.defaultUserID)
			c.Set(ContextKeyRole, entities.UserRoleAdmin)
			c.Set(ContextKeyAuthType, AuthTypeNone)
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if m.publicPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		if user := m.bearerUser(c); user != nil {
			setUser(c, user, AuthTypeBearer)
			c.Next()
			return
		}
		if user := m.sessionUser(c); user != nil {
			setUser(c, user, AuthTypeSession)
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrAuthRequired.Error()})
	}
}

func (m *Middleware) bearerUser(c *gin.Context) *entities.User {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		return nil
	}
	user, err := m.service.ValidateToken(token)
	if err != nil {
		return nil
	}
	return user
}

func (m *Middleware) sessionUser(c *gin.Context) *entities.User {
	if m.sessions == nil {
		return nil
	}
	userID := m.sessions.GetUserID(c.Request)
	if userID == 0 {
		return nil
	}
	user, err := m.service.GetUserByID(userID)
	if err != nil {
		return nil
	}
	return user
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", false
	}
	return token, true
}

func setUser(c *gin.Context, user *entities.User, authType AuthType) {
	c.Set(ContextKeyUserID, user.ID)
	c.Set(ContextKeyRole, user.Role)
	c.Set(ContextKeyAuthType, authType)
}

// RequireRole rejects callers whose role is not listed. Disabled auth
// passes everything.
func (m *Middleware) RequireRole(roles ...entities.UserRole) gin.HandlerFunc {
	allowed := make(map[entities.UserRole]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		if m.config.Mode == config.AuthModeNone || allowed[GetUserRole(c)] {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	}
}

// GetUserID returns the caller's user ID, or 0 before the middleware ran.
func GetUserID(c *gin.Context) uint {
	id, _ := c.Get(ContextKeyUserID)
	userID, _ := id.(uint)
	return userID
}

func GetUserRole(c *gin.Context) entities.UserRole {
	r, _ := c.Get(ContextKeyRole)
	role, _ := r.(entities.UserRole)
	return role
}

func GetAuthType(c *gin.Context) AuthType {
	t, _ := c.Get(ContextKeyAuthType)
	if authType, ok := t.(AuthType); ok {
		return authType
	}
	return AuthTypeNone
}
