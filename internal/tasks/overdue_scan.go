package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/librarian/internal/entities"
)

type OverdueLister interface {
	ListOverdue(ctx context.Context, now time.Time) ([]entities.Checkout, error)
}

// OverdueRecorder is told about every overdue checkout a scan finds.
type OverdueRecorder interface {
	LogOverdue(userID, bookID uint, title string, dueAt time.Time)
}

// ScanOverdueCheckoutsTask reports active checkouts past their due date.
type ScanOverdueCheckoutsTask struct{}

func (t ScanOverdueCheckoutsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "scan_overdue_checkouts",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   72 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ScanOverdueCheckoutsProcessor lists overdue checkouts as of now(). The
// recorder may be nil, in which case findings are only logged.
func ScanOverdueCheckoutsProcessor(lister OverdueLister, recorder OverdueRecorder, now func() time.Time) backlite.QueueProcessor[ScanOverdueCheckoutsTask] {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, _ ScanOverdueCheckoutsTask) error {
		if lister == nil {
			return errors.New("checkout lister not configured")
		}

		overdue, err := lister.ListOverdue(ctx, now())
		if err != nil {
			return fmt.Errorf("list overdue checkouts: %w", err)
		}

		for _, c := range overdue {
			title := ""
			if c.Book != nil {
				title = c.Book.Title
			}
			log.Printf("[TASK] Overdue: %q held by user %d since %s, due %s",
				title, c.UserID, c.CheckedOutAt.Format(time.DateOnly), c.DueAt.Format(time.DateOnly))
			if recorder != nil {
				recorder.LogOverdue(c.UserID, c.BookID, title, c.DueAt)
			}
		}

		log.Printf("[TASK] Overdue scan found %d checkouts", len(overdue))
		return nil
	}
}

func NewScanOverdueCheckoutsQueue(lister OverdueLister, recorder OverdueRecorder) backlite.Queue {
	return backlite.NewQueue(ScanOverdueCheckoutsProcessor(lister, recorder, nil))
}
