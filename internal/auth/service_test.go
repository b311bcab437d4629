package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "auth.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.User{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func TestService_CreateUser(t *testing.T) {
	svc := NewService(setupTestDB(t), config.Auth{BcryptCost: 4})

	tests := []struct {
		name     string
		username string
		email    string
		password string
		role     entities.UserRole
		wantErr  error
	}{
		{"valid admin", "admin", "admin@example.com", "password12345", entities.UserRoleAdmin, nil},
		{"missing username", "", "test@example.com", "password12345", entities.UserRoleViewer, ErrUsernameRequired},
		{"missing email", "testuser", "", "password12345", entities.UserRoleViewer, ErrEmailRequired},
		{"missing password", "testuser", "test@example.com", "", entities.UserRoleViewer, ErrPasswordRequired},
		{"short password", "testuser", "test@example.com", "short", entities.UserRoleViewer, ErrPasswordTooShort},
		{"invalid username", "a b", "test@example.com", "password12345", entities.UserRoleViewer, ErrUsernameInvalid},
		{"invalid email", "testuser", "not-an-email", "password12345", entities.UserRoleViewer, ErrEmailInvalid},
		{"invalid role", "testuser", "test@example.com", "password12345", entities.UserRole("owner"), ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.CreateUser(tt.username, tt.email, tt.password, tt.role)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, user.ID)
			assert.NotEqual(t, tt.password, user.PasswordHash)
		})
	}
}

func TestService_CreateUser_Duplicate(t *testing.T) {
	svc := NewService(setupTestDB(t), config.Auth{BcryptCost: 4})

	_, err := svc.CreateUser("reader", "reader@example.com", "password12345", entities.UserRoleEditor)
	require.NoError(t, err)

	_, err = svc.CreateUser("reader", "other@example.com", "password12345", entities.UserRoleEditor)
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = svc.CreateUser("other", "reader@example.com", "password12345", entities.UserRoleEditor)
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestService_Authenticate(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, config.Auth{BcryptCost: 4, LockoutDuration: time.Hour})

	_, err := svc.CreateUser("reader", "reader@example.com", "password12345", entities.UserRoleEditor)
	require.NoError(t, err)

	t.Run("by username", func(t *testing.T) {
		user, err := svc.Authenticate("reader", "password12345")
		require.NoError(t, err)
		assert.Equal(t, "reader", user.Username)
	})

	t.Run("by email", func(t *testing.T) {
		_, err := svc.Authenticate("reader@example.com", "password12345")
		assert.NoError(t, err)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Authenticate("ghost", "password12345")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("lockout after repeated failures", func(t *testing.T) {
		for i := 0; i < maxFailedLogins; i++ {
			_, err := svc.Authenticate("reader", "wrong-password")
			assert.ErrorIs(t, err, ErrInvalidPassword)
		}

		_, err := svc.Authenticate("reader", "password12345")
		assert.ErrorIs(t, err, ErrAccountLocked)

		svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err = svc.Authenticate("reader", "password12345")
		assert.NoError(t, err)
	})
}

func TestService_TokenOperations(t *testing.T) {
	svc := NewService(setupTestDB(t), config.Auth{BcryptCost: 4, TokenExpiry: 24 * time.Hour})

	user, err := svc.CreateUser("reader", "reader@example.com", "password12345", entities.UserRoleEditor)
	require.NoError(t, err)

	token, err := svc.GenerateToken(user.ID)
	require.NoError(t, err)

	found, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	svc.now = time.Now

	require.NoError(t, svc.RevokeToken(user.ID))
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.GenerateToken(9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_EnsureDefaultUser(t *testing.T) {
	svc := NewService(setupTestDB(t), config.Auth{DefaultUsername: "shelf"})

	first, err := svc.EnsureDefaultUser()
	require.NoError(t, err)
	second, err := svc.EnsureDefaultUser()
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "shelf", first.Username)
	assert.Equal(t, entities.UserRoleAdmin, first.Role)

	has, err := svc.HasUsers()
	require.NoError(t, err)
	assert.True(t, has)
}

func TestService_IsAuthEnabled(t *testing.T) {
	db := setupTestDB(t)
	assert.False(t, NewService(db, config.Auth{Mode: config.AuthModeNone}).IsAuthEnabled())
	assert.True(t, NewService(db, config.Auth{Mode: config.AuthModeLocal}).IsAuthEnabled())
}
