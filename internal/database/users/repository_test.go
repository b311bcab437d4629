package users

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/librarian/internal/entities"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "users.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.User{}))

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	return NewRepository(db)
}

func TestRepository_CreateUser(t *testing.T) {
	repo := setupTestDB(t)

	user, err := repo.CreateUser("testuser", "test@example.com")

	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "testuser", user.Username)
	assert.Equal(t, entities.UserRoleEditor, user.Role)
}

func TestRepository_CreateUser_DuplicateUsername(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.CreateUser("testuser", "one@example.com")
	require.NoError(t, err)

	_, err = repo.CreateUser("testuser", "two@example.com")
	assert.Error(t, err)
}

func TestRepository_EnsureUser(t *testing.T) {
	repo := setupTestDB(t)

	first, err := repo.EnsureUser("librarian")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, entities.UserRoleAdmin, first.Role)

	second, err := repo.EnsureUser("librarian")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	all, err := repo.GetAllUsers()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRepository_ResolveUser(t *testing.T) {
	repo := setupTestDB(t)

	created, err := repo.CreateUser("alice", "alice@example.com")
	require.NoError(t, err)

	t.Run("by id", func(t *testing.T) {
		user, err := repo.ResolveUser("1")
		require.NoError(t, err)
		assert.Equal(t, created.ID, user.ID)
	})

	t.Run("by username", func(t *testing.T) {
		user, err := repo.ResolveUser("alice")
		require.NoError(t, err)
		assert.Equal(t, created.ID, user.ID)
	})

	t.Run("numeric username falls back", func(t *testing.T) {
		numeric, err := repo.CreateUser("2024", "year@example.com")
		require.NoError(t, err)

		user, err := repo.ResolveUser("2024")
		require.NoError(t, err)
		assert.Equal(t, numeric.ID, user.ID)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := repo.ResolveUser("nobody")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestRepository_GetUserByID_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetUserByID(999)

	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
