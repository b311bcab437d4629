package audit

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/entities"
)

// Service provides high-level audit logging functionality.
type Service struct {
	repo    *audit.Repository
	pending sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.repo.LogEvent(event); err != nil {
			log.Printf("Failed to log audit event: %v", err)
		}
	}()
}

// Flush blocks until every LogAsync call issued so far has been written.
func (s *Service) Flush() {
	s.pending.Wait()
}

// LogImport records a CSV import run. Runs that rejected some rows are
// marked partial; runs that were rolled back are marked failed.
func (s *Service) LogImport(userID uint, source, description string, created, skipped, failed int, err error) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventImport,
		Action:      "csv_import",
		Description: truncate(description, 500),
		EntityType:  "book",
		Status:      entities.AuditStatusSuccess,
	}

	metadata := map[string]any{
		"source":  source,
		"created": created,
		"skipped": skipped,
		"failed":  failed,
	}
	if mdBytes, e := json.Marshal(metadata); e == nil {
		event.Metadata = string(mdBytes)
	}

	switch {
	case err != nil:
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	case failed > 0:
		event.Status = entities.AuditStatusPartial
	}

	s.LogAsync(event)
}

// LogCheckout records a loan attempt.
func (s *Service) LogCheckout(userID, bookID uint, title string, err error) {
	s.logLoan(entities.AuditEventCheckout, "book_checkout", "Checked out", userID, bookID, title, err)
}

// LogReturn records a return attempt.
func (s *Service) LogReturn(userID, bookID uint, title string, err error) {
	s.logLoan(entities.AuditEventReturn, "book_return", "Returned", userID, bookID, title, err)
}

func (s *Service) logLoan(eventType entities.AuditEventType, action, verb string, userID, bookID uint, title string, err error) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   eventType,
		Action:      action,
		Description: truncate(fmt.Sprintf("%s %q", verb, title), 500),
		EntityType:  "book",
		EntityID:    &bookID,
		Status:      entities.AuditStatusSuccess,
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}

	s.LogAsync(event)
}

// LogOverdue records that a checkout passed its due date without a return.
func (s *Service) LogOverdue(userID, bookID uint, title string, dueAt time.Time) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventOverdue,
		Action:      "checkout_overdue",
		Description: truncate(fmt.Sprintf("%q was due %s", title, dueAt.Format(time.DateOnly)), 500),
		EntityType:  "book",
		EntityID:    &bookID,
		Status:      entities.AuditStatusSuccess,
	}

	s.LogAsync(event)
}

// LogTag records a manual tag change on a book or author.
func (s *Service) LogTag(userID uint, entityType string, entityID uint, action, tag string) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventTag,
		Action:      action,
		Description: truncate(fmt.Sprintf("%s %q on %s %d", action, tag, entityType, entityID), 500),
		EntityType:  entityType,
		EntityID:    &entityID,
		Status:      entities.AuditStatusSuccess,
	}

	s.LogAsync(event)
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(userID uint, action string, ipAddr, userAgent string, success bool) {
	event := &entities.AuditEvent{
		UserID:    userID,
		EventType: entities.AuditEventAuth,
		Action:    action,
		IPAddress: ipAddr,
		UserAgent: truncate(userAgent, 500),
		Status:    entities.AuditStatusSuccess,
	}

	if !success {
		event.Status = entities.AuditStatusFailed
	}

	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(filter audit.Filter, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(filter, limit, offset)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
