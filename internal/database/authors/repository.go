// Package authors provides database operations for the global author registry.
//
// Authors are shared by every user. Two imports that mention the same name,
// byte for byte, resolve to the same row.
package authors

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/librarian/internal/entities"
)

// Repository handles author database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new authors repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindOrCreateAuthor returns the author with exactly this name, creating it
// when missing. A soft-deleted author with the same name is restored.
func (r *Repository) FindOrCreateAuthor(name string) (*entities.Author, error) {
	author, err := r.GetAuthorByName(name)
	if err == nil {
		return author, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := &entities.Author{Name: name}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(created)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 1 {
		return created, nil
	}

	// Either a concurrent writer won the insert or the name is held by a
	// soft-deleted row.
	return r.restoreByName(name)
}

func (r *Repository) restoreByName(name string) (*entities.Author, error) {
	var author entities.Author
	if err := r.db.Unscoped().Where("name = ?", name).First(&author).Error; err != nil {
		return nil, err
	}
	if author.DeletedAt.Valid {
		if err := r.db.Unscoped().Model(&author).Update("deleted_at", nil).Error; err != nil {
			return nil, err
		}
		author.DeletedAt = gorm.DeletedAt{}
	}
	return &author, nil
}

// GetAuthorByName retrieves an author by exact name.
func (r *Repository) GetAuthorByName(name string) (*entities.Author, error) {
	var author entities.Author
	if err := r.db.Where("name = ?", name).First(&author).Error; err != nil {
		return nil, err
	}
	return &author, nil
}

// GetAuthorByID retrieves an author with its books.
func (r *Repository) GetAuthorByID(id uint) (*entities.Author, error) {
	var author entities.Author
	err := r.db.Preload("Books", func(db *gorm.DB) *gorm.DB {
		return db.Order("title ASC")
	}).First(&author, id).Error
	if err != nil {
		return nil, err
	}
	return &author, nil
}

// GetAllAuthors lists authors alphabetically.
func (r *Repository) GetAllAuthors() ([]entities.Author, error) {
	var authors []entities.Author
	err := r.db.Order("name ASC").Find(&authors).Error
	return authors, err
}

// CountAuthors returns the number of live authors.
func (r *Repository) CountAuthors() (int64, error) {
	var count int64
	err := r.db.Model(&entities.Author{}).Count(&count).Error
	return count, err
}
