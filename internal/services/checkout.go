package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/database/books"
	"github.com/mrlokans/librarian/internal/database/checkouts"
	"github.com/mrlokans/librarian/internal/entities"
)

// DefaultLoanPeriod is how long a book may be kept before it is overdue.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// CheckoutAuditor records loan activity.
type CheckoutAuditor interface {
	LogCheckout(userID, bookID uint, title string, err error)
	LogReturn(userID, bookID uint, title string, err error)
}

// CheckoutService lends and takes back books. A book has at most one active
// checkout at a time.
type CheckoutService struct {
	db         *gorm.DB
	loanPeriod time.Duration
	now        func() time.Time
	auditor    CheckoutAuditor
}

type CheckoutOption func(*CheckoutService)

func WithLoanPeriod(d time.Duration) CheckoutOption {
	return func(s *CheckoutService) {
		if d > 0 {
			s.loanPeriod = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CheckoutOption {
	return func(s *CheckoutService) {
		s.now = now
	}
}

func WithCheckoutAuditor(a CheckoutAuditor) CheckoutOption {
	return func(s *CheckoutService) {
		s.auditor = a
	}
}

func NewCheckoutService(db *gorm.DB, opts ...CheckoutOption) *CheckoutService {
	s := &CheckoutService{
		db:         db,
		loanPeriod: DefaultLoanPeriod,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoanPeriod returns the configured loan length.
func (s *CheckoutService) LoanPeriod() time.Duration {
	return s.loanPeriod
}

// Checkout lends bookID to userID. It fails with ErrBookNotFound or
// ErrAlreadyCheckedOut.
func (s *CheckoutService) Checkout(ctx context.Context, userID, bookID uint) (*entities.Checkout, error) {
	var checkout *entities.Checkout
	var title string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book, err := books.NewRepository(tx).GetBookByID(bookID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookNotFound
		}
		if err != nil {
			return fmt.Errorf("load book: %w", err)
		}
		title = book.Title

		repo := checkouts.NewRepository(tx)
		active, err := repo.GetActiveCheckoutForBook(bookID)
		if err != nil {
			return fmt.Errorf("load active checkout: %w", err)
		}
		if active != nil {
			return ErrAlreadyCheckedOut
		}

		now := s.now()
		checkout = &entities.Checkout{
			UserID:       userID,
			BookID:       bookID,
			CheckedOutAt: now,
			DueAt:        now.Add(s.loanPeriod),
		}
		if err := repo.CreateCheckout(checkout); err != nil {
			return fmt.Errorf("create checkout: %w", err)
		}
		checkout.Book = book
		return nil
	})

	if s.auditor != nil && !errors.Is(err, ErrBookNotFound) {
		s.auditor.LogCheckout(userID, bookID, title, err)
	}
	if err != nil {
		return nil, err
	}
	return checkout, nil
}

// Return closes checkoutID on behalf of userID. Only the borrower may return
// a book, and only once.
func (s *CheckoutService) Return(ctx context.Context, userID, checkoutID uint) (*entities.Checkout, error) {
	var checkout *entities.Checkout

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := checkouts.NewRepository(tx)
		found, err := repo.GetCheckoutByID(checkoutID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCheckoutNotFound
		}
		if err != nil {
			return fmt.Errorf("load checkout: %w", err)
		}
		checkout = found

		if found.UserID != userID {
			return ErrNotBorrower
		}
		if !found.IsActive() {
			return ErrAlreadyReturned
		}

		now := s.now()
		updated, err := repo.MarkReturned(found.ID, now)
		if err != nil {
			return fmt.Errorf("mark returned: %w", err)
		}
		if !updated {
			return ErrAlreadyReturned
		}
		found.ReturnedAt = &now
		return nil
	})

	if s.auditor != nil && checkout != nil {
		title := ""
		if checkout.Book != nil {
			title = checkout.Book.Title
		}
		s.auditor.LogReturn(userID, checkout.BookID, title, err)
	}
	if err != nil {
		return nil, err
	}
	return checkout, nil
}

// ListForUser returns a user's checkouts, active ones first.
func (s *CheckoutService) ListForUser(ctx context.Context, userID uint) ([]entities.Checkout, error) {
	return checkouts.NewRepository(s.db.WithContext(ctx)).GetCheckoutsForUser(userID)
}

// ListOverdue returns active checkouts past their due date at now.
func (s *CheckoutService) ListOverdue(ctx context.Context, now time.Time) ([]entities.Checkout, error) {
	return checkouts.NewRepository(s.db.WithContext(ctx)).GetOverdueCheckouts(now)
}
