package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// LoginAuditor records login and logout attempts.
type LoginAuditor interface {
	LogAuth(userID uint, action string, ipAddr, userAgent string, success bool)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthController serves the JSON login, logout and API token endpoints.
type AuthController struct {
	service  *Service
	sessions *SessionManager
	auditor  LoginAuditor
	limiter  *RateLimiter
}

// NewAuthController creates the controller. auditor may be nil.
func NewAuthController(service *Service, sessions *SessionManager, auditor LoginAuditor) *AuthController {
	return &AuthController{
		service:  service,
		sessions: sessions,
		auditor:  auditor,
	}
}

// WithRateLimiter throttles the login route with limiter.
func (ac *AuthController) WithRateLimiter(limiter *RateLimiter) *AuthController {
	ac.limiter = limiter
	return ac
}

// RegisterRoutes mounts the auth endpoints under group.
func (ac *AuthController) RegisterRoutes(group *gin.RouterGroup) {
	if ac.limiter != nil {
		group.POST("/login", ac.limiter.LoginMiddleware(), ac.Login)
	} else {
		group.POST("/login", ac.Login)
	}
	group.POST("/logout", ac.Logout)
	group.GET("/me", ac.Me)
	group.POST("/token", ac.GenerateToken)
	group.DELETE("/token", ac.RevokeToken)
}

func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, err := ac.service.Authenticate(req.Username, req.Password)
	if err != nil {
		ac.audit(c, 0, "login", false)
		if errors.Is(err, ErrAccountLocked) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "account is locked, try again later"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	if err := ac.sessions.CreateSession(c.Request, user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	ac.audit(c, user.ID, "login", true)

	c.JSON(http.StatusOK, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
	})
}

func (ac *AuthController) Logout(c *gin.Context) {
	userID := GetUserID(c)
	if err := ac.sessions.DestroySession(c.Request); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to end session"})
		return
	}
	ac.audit(c, userID, "logout", true)
	c.Status(http.StatusNoContent)
}

// Me returns the caller.
func (ac *AuthController) Me(c *gin.Context) {
	user, err := ac.service.GetUserByID(GetUserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrAuthRequired.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        user.ID,
		"username":  user.Username,
		"role":      user.Role,
		"auth_type": GetAuthType(c),
		"csrf":      GetCSRFToken(c),
	})
}

// GenerateToken creates a new API token for the caller. The plaintext is
// only ever returned here.
func (ac *AuthController) GenerateToken(c *gin.Context) {
	userID := GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrAuthRequired.Error()})
		return
	}

	token, err := ac.service.GenerateToken(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	ac.audit(c, userID, "token_generate", true)

	c.JSON(http.StatusCreated, gin.H{
		"token":   token,
		"message": "Store this token securely - it will not be shown again",
	})
}

func (ac *AuthController) RevokeToken(c *gin.Context) {
	userID := GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrAuthRequired.Error()})
		return
	}

	if err := ac.service.RevokeToken(userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	ac.audit(c, userID, "token_revoke", true)

	c.JSON(http.StatusOK, gin.H{"message": "token revoked"})
}

func (ac *AuthController) audit(c *gin.Context, userID uint, action string, success bool) {
	if ac.auditor == nil {
		return
	}
	ac.auditor.LogAuth(userID, action, c.ClientIP(), c.Request.UserAgent(), success)
}
