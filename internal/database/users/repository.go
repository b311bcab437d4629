// Package users provides database operations for user management.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	owner, err := repo.ResolveUser("42")      // by id
//	owner, err = repo.ResolveUser("alice")    // or by username
package users

import (
	"errors"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/librarian/internal/entities"
)

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser creates a user without credentials. Password and token are
// managed by the auth service.
func (r *Repository) CreateUser(username, email string) (*entities.User, error) {
	user := &entities.User{
		Username: username,
		Email:    email,
		Role:     entities.UserRoleEditor,
	}

	if err := r.db.Create(user).Error; err != nil {
		return nil, err
	}

	return user, nil
}

// EnsureUser returns the user with this username, creating it when missing.
// Used for the shared owner when authentication is disabled.
func (r *Repository) EnsureUser(username string) (*entities.User, error) {
	user := &entities.User{
		Username: username,
		Email:    username + "@localhost",
		Role:     entities.UserRoleAdmin,
	}
	err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(user).Error
	if err != nil {
		return nil, err
	}
	return r.GetUserByUsername(username)
}

// ResolveUser finds a user by numeric ID or, failing that, by username.
func (r *Repository) ResolveUser(ref string) (*entities.User, error) {
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		user, err := r.GetUserByID(uint(id))
		if err == nil || !errors.Is(err, gorm.ErrRecordNotFound) {
			return user, err
		}
	}
	return r.GetUserByUsername(ref)
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(id uint) (*entities.User, error) {
	var user entities.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (r *Repository) GetUserByUsername(username string) (*entities.User, error) {
	var user entities.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetAllUsers lists users by username.
func (r *Repository) GetAllUsers() ([]entities.User, error) {
	var users []entities.User
	err := r.db.Order("username ASC").Find(&users).Error
	return users, err
}
