package entities

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleEditor UserRole = "editor"
	UserRoleViewer UserRole = "viewer"
)

// Taggable is implemented by every model that can carry tags. Both return
// values together identify the row in the shared taggings table.
type Taggable interface {
	TaggableType() string
	TaggableID() uint
}

const (
	TaggableTypeBook   = "books"
	TaggableTypeAuthor = "authors"
)

type User struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Username         string         `gorm:"uniqueIndex;size:100" json:"username"`
	Email            string         `gorm:"uniqueIndex;size:255" json:"email"`
	Role             UserRole       `gorm:"size:20;default:viewer" json:"role"`
	PasswordHash     string         `gorm:"size:255" json:"-"`
	TokenHash        string         `gorm:"index;size:64" json:"-"`
	TokenCreatedAt   *time.Time     `json:"-"`
	LastLoginAt      *time.Time     `json:"last_login_at,omitempty"`
	FailedLoginCount int            `json:"-"`
	LockedUntil      *time.Time     `json:"-"`
	Books            []Book         `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// Author is shared across all users and deduplicated by exact name.
type Author struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"uniqueIndex;size:255;not null" json:"name"`
	Books     []Book         `gorm:"foreignKey:AuthorID" json:"books,omitempty"`
	Tags      []Tag          `gorm:"-" json:"tags,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (a *Author) TaggableType() string { return TaggableTypeAuthor }
func (a *Author) TaggableID() uint     { return a.ID }

// Book belongs to exactly one owner. The tuple (user, author, title, isbn13,
// page count) is its natural key.
type Book struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         uint           `gorm:"not null;uniqueIndex:idx_books_natural_key,priority:1" json:"user_id"`
	AuthorID       uint           `gorm:"not null;index;uniqueIndex:idx_books_natural_key,priority:2" json:"author_id"`
	Title          string         `gorm:"size:255;not null;uniqueIndex:idx_books_natural_key,priority:3" json:"title"`
	ISBN13         string         `gorm:"column:isbn13;size:13;not null;index;uniqueIndex:idx_books_natural_key,priority:4" json:"isbn13"`
	PageCount      *int           `gorm:"uniqueIndex:idx_books_natural_key,priority:5" json:"page_count"`
	User           *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Author         *Author        `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Tags           []Tag          `gorm:"-" json:"tags,omitempty"`
	Checkouts      []Checkout     `gorm:"foreignKey:BookID" json:"-"`
	ActiveCheckout *Checkout      `gorm:"foreignKey:BookID" json:"active_checkout,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (b *Book) TaggableType() string { return TaggableTypeBook }
func (b *Book) TaggableID() uint     { return b.ID }

// IsAvailable reports whether nobody currently holds the book. Only
// meaningful when ActiveCheckout was preloaded.
func (b *Book) IsAvailable() bool {
	return b.ActiveCheckout == nil
}

type Tag struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"uniqueIndex;size:255;not null" json:"name"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// Tagging links a tag to any Taggable model.
type Tagging struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TagID        uint      `gorm:"not null;uniqueIndex:idx_taggings_unique,priority:3;index" json:"tag_id"`
	TaggableType string    `gorm:"size:50;not null;uniqueIndex:idx_taggings_unique,priority:1" json:"taggable_type"`
	TaggableID   uint      `gorm:"not null;uniqueIndex:idx_taggings_unique,priority:2" json:"taggable_id"`
	Tag          Tag       `gorm:"foreignKey:TagID" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Checkout struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;index" json:"user_id"`
	BookID       uint       `gorm:"not null;index" json:"book_id"`
	CheckedOutAt time.Time  `gorm:"not null" json:"checked_out_at"`
	DueAt        time.Time  `gorm:"not null;index" json:"due_at"`
	ReturnedAt   *time.Time `gorm:"index" json:"returned_at,omitempty"`
	User         *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Book         *Book      `gorm:"foreignKey:BookID" json:"book,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsActive reports whether the book has not been returned yet.
func (c *Checkout) IsActive() bool {
	return c.ReturnedAt == nil
}

// IsOverdue reports whether an active checkout is past its due date at now.
func (c *Checkout) IsOverdue(now time.Time) bool {
	return c.IsActive() && now.After(c.DueAt)
}

func (User) TableName() string {
	return "users"
}

func (Author) TableName() string {
	return "authors"
}

func (Book) TableName() string {
	return "books"
}

func (Tag) TableName() string {
	return "tags"
}

func (Tagging) TableName() string {
	return "taggings"
}

func (Checkout) TableName() string {
	return "checkouts"
}
