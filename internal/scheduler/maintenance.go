package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/tasks"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Enqueuer hands tasks to the task queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
}

// Job enqueues Task every time Schedule fires.
type Job struct {
	Name     string
	Schedule string
	Task     backlite.Task
}

// MaintenanceJobs returns the periodic jobs configured in cfg. Jobs with an
// empty schedule are left out.
func MaintenanceJobs(cfg config.Scheduler, audit config.Audit) []Job {
	jobs := []Job{
		{Name: "orphan_tags", Schedule: cfg.OrphanTagCron, Task: tasks.CleanupOrphanTagsTask{}},
		{Name: "audit_cleanup", Schedule: cfg.AuditCleanupCron, Task: tasks.CleanupAuditEventsTask{RetentionDays: audit.RetentionDays}},
		{Name: "overdue_scan", Schedule: cfg.OverdueScanCron, Task: tasks.ScanOverdueCheckoutsTask{}},
	}

	enabled := jobs[:0]
	for _, j := range jobs {
		if j.Schedule != "" {
			enabled = append(enabled, j)
		}
	}
	return enabled
}

// ValidateCronSchedule checks a five-field cron expression.
func ValidateCronSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// MaintenanceScheduler turns cron schedules into queued tasks. The work
// itself always runs on the task queue workers.
type MaintenanceScheduler struct {
	queue Enqueuer
	jobs  map[string]Job

	cron       *cron.Cron
	entries    map[string]cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

func NewMaintenanceScheduler(queue Enqueuer, jobs ...Job) *MaintenanceScheduler {
	byName := make(map[string]Job, len(jobs))
	for _, j := range jobs {
		byName[j.Name] = j
	}
	return &MaintenanceScheduler{
		queue:   queue,
		jobs:    byName,
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
	}
}

// Start validates every schedule and starts the cron loop. It stops again
// when ctx is cancelled.
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	for _, name := range s.jobNames() {
		job := s.jobs[name]
		if err := ValidateCronSchedule(job.Schedule); err != nil {
			return fmt.Errorf("invalid cron schedule '%s' for %s: %w", job.Schedule, name, err)
		}
		id, err := s.cron.AddFunc(job.Schedule, func() {
			s.enqueue(context.Background(), job)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", name, err)
		}
		s.entries[name] = id
	}

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	for _, name := range s.jobNames() {
		log.Printf("Maintenance scheduler: %s on '%s', next run %v",
			name, s.jobs[name].Schedule, s.cron.Entry(s.entries[name]).Next)
	}

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for in-flight enqueue calls and stops the cron loop.
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}
	s.isRunning = false

	log.Printf("Maintenance scheduler: stopped")
}

// RunNow enqueues the named job immediately and returns the task ID.
func (s *MaintenanceScheduler) RunNow(ctx context.Context, name string) (string, error) {
	job, ok := s.jobs[name]
	if !ok {
		return "", fmt.Errorf("unknown maintenance job %q", name)
	}
	return s.enqueue(ctx, job)
}

func (s *MaintenanceScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRuns reports when each job fires next. It is empty while stopped.
func (s *MaintenanceScheduler) NextRuns() map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	next := make(map[string]time.Time, len(s.entries))
	if !s.isRunning {
		return next
	}
	for name, id := range s.entries {
		next[name] = s.cron.Entry(id).Next
	}
	return next
}

func (s *MaintenanceScheduler) enqueue(ctx context.Context, job Job) (string, error) {
	id, err := s.queue.Enqueue(ctx, job.Task)
	if err != nil {
		log.Printf("Maintenance scheduler: failed to enqueue %s: %v", job.Name, err)
		return "", err
	}
	log.Printf("Maintenance scheduler: enqueued %s (task %s)", job.Name, id)
	return id, nil
}

func (s *MaintenanceScheduler) jobNames() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
