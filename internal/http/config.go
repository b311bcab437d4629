package http

import (
	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
)

// RouterConfig carries every dependency NewRouter wires. Optional parts
// are nil when the feature is off.
type RouterConfig struct {
	Database *database.Database
	Version  string

	Books    BookStore
	Authors  AuthorStore
	Tags     TagStore
	Users    UserGetter
	Deleter  BookDeleter
	Importer BookImporter
	Loans    LoanService

	Audit      AuditReader
	TagAuditor TagAuditor

	// Task queue (optional)
	Tasks       TaskQueue
	Maintenance MaintenanceRunner

	// Upload cap for POST /api/books/import, in bytes.
	MaxUploadBytes int64

	// Authentication
	AuthConfig     config.Auth
	AuthService    *auth.Service
	AuthMiddleware *auth.Middleware
	SessionManager *auth.SessionManager
	LoginLimiter   *auth.RateLimiter // nil disables login throttling
	LoginAuditor   auth.LoginAuditor
	CSRFSecret     []byte
	HSTSMaxAge     int // seconds, 0 disables Strict-Transport-Security
}
