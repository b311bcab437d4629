// Package interfaces holds compile-time checks tying the concrete types to
// the narrow interfaces their consumers declare.
//
// # Where the interfaces live
//
// Consumers own their interfaces:
//
//   - BookStore, AuthorStore, TagStore, LoanService, BookImporter and the
//     other controller dependencies: internal/http/stores.go
//   - ImportStore, ImportTx, ImportAuditor, ResultArchiver and
//     CheckoutAuditor: internal/services
//   - OrphanTagsCleaner, AuditEventCleaner, OverdueLister and
//     OverdueRecorder: internal/tasks
//   - Enqueuer: internal/scheduler
//   - LoginAuditor: internal/auth
//
// # Adding a New Maintenance Job
//
//  1. Define the task and its processor in internal/tasks:
//
//     type ReindexTask struct{}
//
//     func (t ReindexTask) Config() backlite.QueueConfig {
//         return backlite.QueueConfig{Name: "reindex", MaxAttempts: 3}
//     }
//
//  2. Register the queue in entrypoint.go.
//
//  3. Add a Job to scheduler.MaintenanceJobs with its cron schedule.
//
// # Compile-Time Interface Checks
//
// Every implementation gets a check in checks.go:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
package interfaces
