package http

import (
	"context"
	"io"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/services"
)

// Each controller depends on the narrow interface it uses. The concrete
// types are the repositories under internal/database and the services.

// BookStore provides read access to books.
type BookStore interface {
	GetBookByID(id uint) (*entities.Book, error)
	GetAllBooks() ([]entities.Book, error)
	GetAllBooksForUser(userID uint) ([]entities.Book, error)
	SearchBooks(query string) ([]entities.Book, error)
	GetStatsForUser(userID uint) (totalBooks, checkedOut int64, err error)
}

type AuthorStore interface {
	GetAuthorByID(id uint) (*entities.Author, error)
	GetAllAuthors() ([]entities.Author, error)
}

// TagStore covers tag listing and manual tag edits on books and authors.
type TagStore interface {
	GetAllTags() ([]entities.Tag, error)
	TagsFor(entity entities.Taggable) ([]entities.Tag, error)
	AddTag(entity entities.Taggable, name string) error
	RemoveTag(entity entities.Taggable, name string) error
	LoadBookTags(books []entities.Book) error
	LoadAuthorTags(authors []entities.Author) error
}

type UserGetter interface {
	GetUserByID(id uint) (*entities.User, error)
}

// BookImporter runs a CSV import for an owner.
type BookImporter interface {
	ImportFromReader(ctx context.Context, name string, r io.Reader, owner *entities.User) (*services.ImportResult, error)
}

// LoanService lends and takes back books.
type LoanService interface {
	Checkout(ctx context.Context, userID, bookID uint) (*entities.Checkout, error)
	Return(ctx context.Context, userID, checkoutID uint) (*entities.Checkout, error)
	ListForUser(ctx context.Context, userID uint) ([]entities.Checkout, error)
	LoanPeriod() time.Duration
}

type BookDeleter interface {
	DeleteBook(id uint) error
}

type AuditReader interface {
	GetEvents(filter audit.Filter, limit, offset int) ([]entities.AuditEvent, int64, error)
}

// TagAuditor records manual tag edits.
type TagAuditor interface {
	LogTag(userID uint, entityType string, entityID uint, action, tag string)
}

// TaskQueue enqueues background work and reports on it.
type TaskQueue interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// MaintenanceRunner triggers scheduled jobs on demand.
type MaintenanceRunner interface {
	RunNow(ctx context.Context, name string) (string, error)
	NextRuns() map[string]time.Time
}
