// Package books provides database operations for per-owner books.
//
// A book is identified by its natural key: owner, author, title, isbn13 and
// page count. FindOrCreateBook never modifies a book that already exists, so
// the first import of a key wins.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, created, err := repo.FindOrCreateBook(books.Key{OwnerID: 1, AuthorID: 2, Title: "Kafka on the Shore", ISBN13: "9781400079278"})
package books

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/librarian/internal/entities"
)

// Key is the natural key of a book. A nil PageCount only matches books
// stored without a page count.
type Key struct {
	OwnerID   uint
	AuthorID  uint
	Title     string
	ISBN13    string
	PageCount *int
}

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindOrCreateBook returns the book matching key exactly and whether it was
// inserted by this call. Existing books are returned untouched.
func (r *Repository) FindOrCreateBook(key Key) (*entities.Book, bool, error) {
	book, err := r.FindByNaturalKey(key)
	if err == nil {
		return book, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	book = &entities.Book{
		UserID:    key.OwnerID,
		AuthorID:  key.AuthorID,
		Title:     key.Title,
		ISBN13:    key.ISBN13,
		PageCount: key.PageCount,
	}
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(book)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 1 {
		return book, true, nil
	}

	// Either a concurrent writer inserted the same key first or the key is
	// held by a soft-deleted book.
	existing, err := r.FindByNaturalKey(key)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	restored, err := r.restoreByNaturalKey(key)
	if err != nil {
		return nil, false, fmt.Errorf("restore book %q: %w", key.Title, err)
	}
	return restored, true, nil
}

// restoreByNaturalKey brings a deleted book back. It counts as created: the
// owner sees it again as if it had just been imported.
func (r *Repository) restoreByNaturalKey(key Key) (*entities.Book, error) {
	var book entities.Book
	if err := naturalKeyQuery(r.db.Unscoped(), key).First(&book).Error; err != nil {
		return nil, err
	}
	if book.DeletedAt.Valid {
		if err := r.db.Unscoped().Model(&book).Update("deleted_at", nil).Error; err != nil {
			return nil, err
		}
		book.DeletedAt = gorm.DeletedAt{}
	}
	return &book, nil
}

// FindByNaturalKey looks up a book by its full natural key.
func (r *Repository) FindByNaturalKey(key Key) (*entities.Book, error) {
	var book entities.Book
	if err := naturalKeyQuery(r.db, key).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func naturalKeyQuery(db *gorm.DB, key Key) *gorm.DB {
	query := db.Where("user_id = ? AND author_id = ? AND title = ? AND isbn13 = ?",
		key.OwnerID, key.AuthorID, key.Title, key.ISBN13)
	if key.PageCount == nil {
		return query.Where("page_count IS NULL")
	}
	return query.Where("page_count = ?", *key.PageCount)
}

// withRelations preloads what the API renders for a book.
func withRelations(db *gorm.DB) *gorm.DB {
	return db.Preload("Author").
		Preload("User").
		Preload("ActiveCheckout", "returned_at IS NULL")
}

// GetBookByID retrieves a book by its ID with author, owner and active checkout.
func (r *Repository) GetBookByID(id uint) (*entities.Book, error) {
	var book entities.Book
	if err := withRelations(r.db).First(&book, id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// GetAllBooks retrieves every book in the library.
func (r *Repository) GetAllBooks() ([]entities.Book, error) {
	var books []entities.Book
	err := withRelations(r.db).Order("title ASC, id ASC").Find(&books).Error
	return books, err
}

// GetAllBooksForUser retrieves the books owned by a user.
func (r *Repository) GetAllBooksForUser(userID uint) ([]entities.Book, error) {
	var books []entities.Book
	err := withRelations(r.db).Where("user_id = ?", userID).Order("title ASC, id ASC").Find(&books).Error
	return books, err
}

// GetBooksByAuthor retrieves all books by an author across owners.
func (r *Repository) GetBooksByAuthor(authorID uint) ([]entities.Book, error) {
	var books []entities.Book
	err := withRelations(r.db).Where("author_id = ?", authorID).Order("title ASC").Find(&books).Error
	return books, err
}

// SearchBooks matches title or ISBN, case-insensitively.
func (r *Repository) SearchBooks(query string) ([]entities.Book, error) {
	var books []entities.Book
	pattern := "%" + query + "%"
	err := withRelations(r.db).
		Where("LOWER(title) LIKE LOWER(?) OR isbn13 LIKE ?", pattern, pattern).
		Order("title ASC").
		Find(&books).Error
	return books, err
}

// DeleteBook soft-deletes a book and drops its tag associations.
func (r *Repository) DeleteBook(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("taggable_type = ? AND taggable_id = ?", entities.TaggableTypeBook, id).
			Delete(&entities.Tagging{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entities.Book{}, id).Error
	})
}

// GetStatsForUser returns book counts for a user's dashboard.
func (r *Repository) GetStatsForUser(userID uint) (totalBooks int64, checkedOut int64, err error) {
	if err = r.db.Model(&entities.Book{}).Where("user_id = ?", userID).Count(&totalBooks).Error; err != nil {
		return
	}
	err = r.db.Model(&entities.Checkout{}).
		Where("user_id = ? AND returned_at IS NULL", userID).
		Count(&checkedOut).Error
	return
}

// CountBooks returns the number of live books for an owner.
func (r *Repository) CountBooks(ownerID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Book{}).Where("user_id = ?", ownerID).Count(&count).Error
	return count, err
}
