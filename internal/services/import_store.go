package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/database/authors"
	"github.com/mrlokans/librarian/internal/database/books"
	"github.com/mrlokans/librarian/internal/database/tags"
	"github.com/mrlokans/librarian/internal/entities"
)

// ImportTx is what a single import run may do inside its transaction.
type ImportTx interface {
	FindOrCreateAuthor(name string) (*entities.Author, error)
	FindOrCreateBook(key books.Key) (*entities.Book, bool, error)
	SyncTags(entity entities.Taggable, list string) error

	// Savepoints scope one row's writes so a failed row can be undone
	// without touching the rest of the batch.
	Savepoint(name string) error
	RollbackTo(name string) error
	Release(name string) error
}

// ImportStore runs fn inside one transaction. A nil return commits, an
// error rolls everything back.
type ImportStore interface {
	RunInTransaction(ctx context.Context, fn func(tx ImportTx) error) error
}

// GormImportStore is the sqlite-backed ImportStore.
type GormImportStore struct {
	db *gorm.DB
}

func NewGormImportStore(db *gorm.DB) *GormImportStore {
	return &GormImportStore{db: db}
}

func (s *GormImportStore) RunInTransaction(ctx context.Context, fn func(tx ImportTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormImportTx{
			db:      tx,
			authors: authors.NewRepository(tx),
			books:   books.NewRepository(tx),
			tags:    tags.NewRepository(tx),
		})
	})
}

type gormImportTx struct {
	db      *gorm.DB
	authors *authors.Repository
	books   *books.Repository
	tags    *tags.Repository
}

func (t *gormImportTx) FindOrCreateAuthor(name string) (*entities.Author, error) {
	return t.authors.FindOrCreateAuthor(name)
}

func (t *gormImportTx) FindOrCreateBook(key books.Key) (*entities.Book, bool, error) {
	return t.books.FindOrCreateBook(key)
}

func (t *gormImportTx) SyncTags(entity entities.Taggable, list string) error {
	return t.tags.SyncTags(entity, list)
}

func (t *gormImportTx) Savepoint(name string) error {
	return t.db.SavePoint(name).Error
}

func (t *gormImportTx) RollbackTo(name string) error {
	return t.db.RollbackTo(name).Error
}

func (t *gormImportTx) Release(name string) error {
	return t.db.Exec("RELEASE SAVEPOINT " + name).Error
}

var _ ImportStore = (*GormImportStore)(nil)
