package audit

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	auditRepo "github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/entities"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.AuditEvent{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	return NewService(auditRepo.NewRepository(db)), db
}

func TestService_Log(t *testing.T) {
	svc, db := setupTestService(t)

	event := &entities.AuditEvent{
		UserID:      1,
		EventType:   entities.AuditEventImport,
		Action:      "csv_import",
		Description: "Test import event",
		Status:      entities.AuditStatusSuccess,
	}
	require.NoError(t, svc.Log(event))

	var saved entities.AuditEvent
	require.NoError(t, db.First(&saved, event.ID).Error)
	assert.Equal(t, "csv_import", saved.Action)
}

func TestService_LogImport(t *testing.T) {
	tests := []struct {
		name   string
		failed int
		err    error
		status entities.AuditStatus
	}{
		{"clean run", 0, nil, entities.AuditStatusSuccess},
		{"some rows rejected", 2, nil, entities.AuditStatusPartial},
		{"rolled back", 0, errors.New("database is locked"), entities.AuditStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db := setupTestService(t)

			svc.LogImport(3, "books.csv", "Imported books", 5, 1, tt.failed, tt.err)
			svc.Flush()

			var event entities.AuditEvent
			require.NoError(t, db.Where("action = ?", "csv_import").First(&event).Error)
			assert.Equal(t, uint(3), event.UserID)
			assert.Equal(t, tt.status, event.Status)
			assert.Contains(t, event.Metadata, `"source":"books.csv"`)
			assert.Contains(t, event.Metadata, `"created":5`)
			if tt.err != nil {
				assert.Contains(t, event.ErrorMsg, "database is locked")
			}
		})
	}
}

func TestService_LogLoans(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogCheckout(1, 42, "Dune", nil)
	svc.LogReturn(2, 42, "Dune", errors.New("you can only return books you checked out"))
	svc.Flush()

	var checkout entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "book_checkout").First(&checkout).Error)
	assert.Equal(t, entities.AuditEventCheckout, checkout.EventType)
	require.NotNil(t, checkout.EntityID)
	assert.Equal(t, uint(42), *checkout.EntityID)
	assert.Equal(t, `Checked out "Dune"`, checkout.Description)

	var ret entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "book_return").First(&ret).Error)
	assert.Equal(t, entities.AuditStatusFailed, ret.Status)
	assert.Contains(t, ret.ErrorMsg, "only return")
}

func TestService_LogTag(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogTag(1, entities.TaggableTypeAuthor, 7, "tag_add", "japanese")
	svc.Flush()

	var event entities.AuditEvent
	require.NoError(t, db.Where("event_type = ?", entities.AuditEventTag).First(&event).Error)
	assert.Equal(t, "authors", event.EntityType)
	assert.Contains(t, event.Description, `"japanese"`)
}

func TestService_LogAuth(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogAuth(1, "login", "192.168.1.1", "Mozilla/5.0", true)
	svc.LogAuth(0, "login_failed", "10.0.0.1", "curl/7.68.0", false)
	svc.Flush()

	var ok entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "login").First(&ok).Error)
	assert.Equal(t, entities.AuditStatusSuccess, ok.Status)
	assert.Equal(t, "192.168.1.1", ok.IPAddress)

	var failed entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "login_failed").First(&failed).Error)
	assert.Equal(t, entities.AuditStatusFailed, failed.Status)
}

func TestService_GetEvents(t *testing.T) {
	svc, _ := setupTestService(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Log(&entities.AuditEvent{
			UserID:    1,
			EventType: entities.AuditEventImport,
			Action:    "csv_import",
			Status:    entities.AuditStatusSuccess,
		}))
	}
	require.NoError(t, svc.Log(&entities.AuditEvent{
		UserID:    1,
		EventType: entities.AuditEventCheckout,
		Action:    "book_checkout",
		Status:    entities.AuditStatusSuccess,
	}))

	events, total, err := svc.GetEvents(auditRepo.Filter{UserID: 1}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
	assert.Len(t, events, 6)

	events, total, err = svc.GetEvents(auditRepo.Filter{UserID: 1, EventType: entities.AuditEventImport}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, events, 2)
}

func TestService_DeleteOldEvents(t *testing.T) {
	svc, db := setupTestService(t)

	require.NoError(t, db.Create(&entities.AuditEvent{
		UserID:    1,
		EventType: entities.AuditEventImport,
		Action:    "old",
		Status:    entities.AuditStatusSuccess,
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}).Error)
	require.NoError(t, db.Create(&entities.AuditEvent{
		UserID:    1,
		EventType: entities.AuditEventCheckout,
		Action:    "new",
		Status:    entities.AuditStatusSuccess,
		CreatedAt: time.Now(),
	}).Error)

	deleted, err := svc.DeleteOldEvents(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []entities.AuditEvent
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "new", remaining[0].Action)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10c", 10, "exactly10c"},
		{"this is a very long string", 10, "this is..."},
		{"", 5, ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, truncate(tc.input, tc.maxLen))
	}
}
