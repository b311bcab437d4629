// Package checkouts provides database operations for book loans.
//
// A checkout is active while returned_at is NULL. At most one active
// checkout per book is enforced by the service layer inside a transaction.
package checkouts

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/entities"
)

// Repository handles checkout database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new checkouts repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateCheckout inserts a new active checkout.
func (r *Repository) CreateCheckout(checkout *entities.Checkout) error {
	return r.db.Create(checkout).Error
}

// GetCheckoutByID retrieves a checkout with its book and borrower.
func (r *Repository) GetCheckoutByID(id uint) (*entities.Checkout, error) {
	var checkout entities.Checkout
	err := r.db.Preload("Book").Preload("Book.Author").Preload("User").First(&checkout, id).Error
	if err != nil {
		return nil, err
	}
	return &checkout, nil
}

// GetActiveCheckoutForBook returns the open checkout of a book, or nil when
// the book is available.
func (r *Repository) GetActiveCheckoutForBook(bookID uint) (*entities.Checkout, error) {
	var checkout entities.Checkout
	err := r.db.Where("book_id = ? AND returned_at IS NULL", bookID).First(&checkout).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &checkout, nil
}

// MarkReturned closes a checkout. It reports false when the checkout was
// already returned.
func (r *Repository) MarkReturned(id uint, at time.Time) (bool, error) {
	result := r.db.Model(&entities.Checkout{}).
		Where("id = ? AND returned_at IS NULL", id).
		Update("returned_at", at)
	return result.RowsAffected == 1, result.Error
}

// GetCheckoutsForUser lists a user's checkouts, active ones first.
func (r *Repository) GetCheckoutsForUser(userID uint) ([]entities.Checkout, error) {
	var checkouts []entities.Checkout
	err := r.db.Preload("Book").Preload("Book.Author").
		Where("user_id = ?", userID).
		Order("returned_at IS NOT NULL, due_at ASC, id DESC").
		Find(&checkouts).Error
	return checkouts, err
}

// GetOverdueCheckouts lists active checkouts whose due date passed before now.
func (r *Repository) GetOverdueCheckouts(now time.Time) ([]entities.Checkout, error) {
	var checkouts []entities.Checkout
	err := r.db.Preload("Book").Preload("User").
		Where("returned_at IS NULL AND due_at < ?", now).
		Order("due_at ASC").
		Find(&checkouts).Error
	return checkouts, err
}
