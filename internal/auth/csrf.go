package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
)

// CSRFTokenHeader carries the token on session-authenticated mutations.
const CSRFTokenHeader = "X-CSRF-Token"

const contextKeyCSRFToken = "csrf_token"

// CSRFKey turns the configured session secret into the 32-byte key
// gorilla/csrf needs. A 64 character hex secret is used as is, anything
// else is hashed. An empty secret yields a random key, so tokens do not
// survive a restart.
func CSRFKey(secret string) ([]byte, error) {
	if secret == "" {
		generated, err := GenerateSessionSecret()
		if err != nil {
			return nil, err
		}
		secret = generated
	}
	if key, err := hex.DecodeString(secret); err == nil && len(key) == 32 {
		return key, nil
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:], nil
}

// CSRFMiddleware protects cookie sessions against cross-site requests.
// Requests with a valid bearer token carry no ambient credentials and skip
// the check.
func CSRFMiddleware(secret []byte, secure bool, service *Service) gin.HandlerFunc {
	protect := csrf.Protect(
		secret,
		csrf.Secure(secure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteStrictMode),
		csrf.Path("/"),
		csrf.RequestHeader(CSRFTokenHeader),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	)

	return func(c *gin.Context) {
		if hasValidBearer(c, service) {
			c.Next()
			return
		}

		passed := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Set(contextKeyCSRFToken, csrf.Token(r))
			c.Request = r
			c.Next()
		})
		r := c.Request
		if !secure {
			r = csrf.PlaintextHTTPRequest(r)
		}
		protect(next).ServeHTTP(c.Writer, r)
		if !passed {
			c.Abort()
		}
	}
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"CSRF token invalid or missing","code":"csrf_failed"}`))
}

func hasValidBearer(c *gin.Context, service *Service) bool {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok || service == nil {
		return false
	}
	_, err := service.ValidateToken(token)
	return err == nil
}

// GetCSRFToken returns the token to echo back in CSRFTokenHeader.
func GetCSRFToken(c *gin.Context) string {
	return c.GetString(contextKeyCSRFToken)
}
