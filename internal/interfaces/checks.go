package interfaces

// Compile-time checks that the concrete repositories and services satisfy
// the interfaces their consumers declare.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/database/authors"
	"github.com/mrlokans/librarian/internal/database/books"
	"github.com/mrlokans/librarian/internal/database/tags"
	"github.com/mrlokans/librarian/internal/database/users"
	"github.com/mrlokans/librarian/internal/http"
	"github.com/mrlokans/librarian/internal/scheduler"
	"github.com/mrlokans/librarian/internal/services"
	"github.com/mrlokans/librarian/internal/tasks"
)

// =============================================================================
// Data Access Layer
// =============================================================================

var _ http.BookStore = (*books.Repository)(nil)
var _ http.BookDeleter = (*books.Repository)(nil)
var _ http.AuthorStore = (*authors.Repository)(nil)
var _ http.TagStore = (*tags.Repository)(nil)
var _ http.UserGetter = (*users.Repository)(nil)

// =============================================================================
// Import and Loans
// =============================================================================

var _ services.ImportStore = (*services.GormImportStore)(nil)
var _ http.BookImporter = (*services.BookImportService)(nil)
var _ http.LoanService = (*services.CheckoutService)(nil)

// =============================================================================
// Audit Trail
// =============================================================================

var _ services.ImportAuditor = (*audit.Service)(nil)
var _ services.ResultArchiver = (*audit.Auditor)(nil)
var _ services.CheckoutAuditor = (*audit.Service)(nil)
var _ auth.LoginAuditor = (*audit.Service)(nil)
var _ http.AuditReader = (*audit.Service)(nil)
var _ http.TagAuditor = (*audit.Service)(nil)

// =============================================================================
// Background Work
// =============================================================================

var _ http.TaskQueue = (*tasks.Client)(nil)
var _ scheduler.Enqueuer = (*tasks.Client)(nil)
var _ http.MaintenanceRunner = (*scheduler.MaintenanceScheduler)(nil)
var _ tasks.OrphanTagsCleaner = (*tags.Repository)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)
var _ tasks.OverdueLister = (*services.CheckoutService)(nil)
var _ tasks.OverdueRecorder = (*audit.Service)(nil)
