package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/librarian/internal/database/books"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/importers"
)

// RowStatus is the outcome of importing one row.
type RowStatus string

const (
	RowCreated RowStatus = "created"
	RowSkipped RowStatus = "skipped"
	RowFailed  RowStatus = "failed"
)

// RowOutcome describes what happened to one row. Err is set only when
// Status is RowFailed.
type RowOutcome struct {
	Line   int
	Status RowStatus
	Book   *entities.Book
	Err    error
}

// RowError is a rejected row and the reason it was rejected.
type RowError struct {
	Data  importers.Row `json:"data"`
	Error string        `json:"error"`
}

// ImportResult aggregates the outcomes of one import run, in source order.
type ImportResult struct {
	Total   int        `json:"total"`
	Created int        `json:"created"`
	Skipped int        `json:"skipped"`
	Failed  int        `json:"failed"`
	Errors  []RowError `json:"errors"`
}

func newImportResult() *ImportResult {
	return &ImportResult{Errors: []RowError{}}
}

func (r *ImportResult) record(row importers.Row, outcome RowOutcome) {
	r.Total++
	switch outcome.Status {
	case RowCreated:
		r.Created++
	case RowSkipped:
		r.Skipped++
	default:
		r.Failed++
		r.Errors = append(r.Errors, RowError{Data: row.Clone(), Error: outcome.Err.Error()})
	}
}

// ImportAuditor records finished or aborted import runs.
type ImportAuditor interface {
	LogImport(userID uint, source, description string, created, skipped, failed int, err error)
}

// ResultArchiver keeps a copy of runs that rejected rows.
type ResultArchiver interface {
	SaveJSON(data any) (string, error)
}

// BookImportService imports CSV book lists for an owner.
type BookImportService struct {
	store     ImportStore
	validator *RowValidator
	logger    *log.Logger
	auditor   ImportAuditor
	archiver  ResultArchiver
	delimiter rune
}

type BookImportOption func(*BookImportService)

// WithImportLogger routes run logging to l, typically the book_imports
// channel.
func WithImportLogger(l *log.Logger) BookImportOption {
	return func(s *BookImportService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithImportAuditor(a ImportAuditor) BookImportOption {
	return func(s *BookImportService) {
		s.auditor = a
	}
}

func WithResultArchiver(a ResultArchiver) BookImportOption {
	return func(s *BookImportService) {
		s.archiver = a
	}
}

// WithCSVDelimiter overrides the comma delimiter.
func WithCSVDelimiter(delim rune) BookImportOption {
	return func(s *BookImportService) {
		if delim != 0 {
			s.delimiter = delim
		}
	}
}

func NewBookImportService(store ImportStore, opts ...BookImportOption) *BookImportService {
	s := &BookImportService{
		store:     store,
		validator: defaultRowValidator,
		logger:    log.New(os.Stderr, "[book_imports] ", log.LstdFlags),
		delimiter: ',',
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportFromCSV imports the file at path for owner.
//
// A *SourceError or *StructureError means nothing was imported. Rejected
// rows are reported in the result and never abort the run. Any other error
// means the transaction was rolled back and no row was saved.
func (s *BookImportService) ImportFromCSV(ctx context.Context, path string, owner *entities.User) (*ImportResult, error) {
	if err := checkSource(path); err != nil {
		return nil, err
	}

	reader, err := importers.OpenCSV(path, importers.WithDelimiter(s.delimiter))
	if err != nil {
		return nil, &SourceError{Path: path, Reason: "File not readable", Err: err}
	}
	defer reader.Close()

	return s.run(ctx, path, reader, owner)
}

// ImportFromReader imports an already opened source, such as an upload.
// name only appears in logs and errors.
func (s *BookImportService) ImportFromReader(ctx context.Context, name string, r io.Reader, owner *entities.User) (*ImportResult, error) {
	reader := importers.NewCSVReader(r, importers.WithDelimiter(s.delimiter), importers.WithName(name))
	return s.run(ctx, name, reader, owner)
}

func checkSource(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &SourceError{Path: path, Reason: "File not found", Err: err}
		}
		return &SourceError{Path: path, Reason: "File not readable", Err: err}
	}
	if info.IsDir() {
		return &SourceError{Path: path, Reason: "File not readable", Err: fmt.Errorf("%s is a directory", path)}
	}

	f, err := os.Open(path)
	if err != nil {
		return &SourceError{Path: path, Reason: "File not readable", Err: err}
	}
	return f.Close()
}

func (s *BookImportService) run(ctx context.Context, source string, reader *importers.CSVReader, owner *entities.User) (*ImportResult, error) {
	if owner == nil || owner.ID == 0 {
		return nil, ErrOwnerRequired
	}

	runID := uuid.NewString()
	started := time.Now()
	s.logger.Printf("Starting book import run=%s source=%s user=%d", runID, source, owner.ID)

	rows, err := reader.ReadAll()
	if err != nil {
		s.logger.Printf("Import run=%s could not read source: %v", runID, err)
		return nil, &SourceError{Path: source, Reason: "File not readable", Err: err}
	}
	if err := checkStructure(rows); err != nil {
		s.logger.Printf("Import run=%s rejected: %v", runID, err)
		return nil, err
	}

	result := newImportResult()
	err = s.store.RunInTransaction(ctx, func(tx ImportTx) error {
		for i, row := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}

			outcome, err := s.importRow(tx, owner, i+1, row)
			if err != nil {
				return err
			}
			result.record(row, outcome)
			s.logOutcome(owner, outcome)
		}
		return nil
	})
	if err != nil {
		s.logger.Printf("Import run=%s aborted after %d rows, rolled back: %v", runID, result.Total, err)
		s.audit(owner, source, "CSV import aborted", &ImportResult{}, err)
		return nil, fmt.Errorf("import aborted, no rows were saved: %w", err)
	}

	s.logger.Printf("Finished book import run=%s total=%d created=%d skipped=%d failed=%d in %s",
		runID, result.Total, result.Created, result.Skipped, result.Failed, time.Since(started).Round(time.Millisecond))
	s.audit(owner, source, fmt.Sprintf("Imported %d of %d rows from %s", result.Created+result.Skipped, result.Total, source), result, nil)
	s.archive(runID, source, owner, result)

	return result, nil
}

func checkStructure(rows []importers.Row) error {
	if len(rows) == 0 {
		return &StructureError{Message: "CSV file is empty"}
	}
	for _, col := range RequiredColumns {
		if !rows[0].Has(col) {
			return &StructureError{Column: col, Message: "Missing required column: " + col}
		}
	}
	return nil
}

// importRow wraps one row in a savepoint. The returned error is fatal for
// the whole run; row failures travel in the outcome.
func (s *BookImportService) importRow(tx ImportTx, owner *entities.User, line int, row importers.Row) (RowOutcome, error) {
	savepoint := fmt.Sprintf("import_row_%d", line)
	if err := tx.Savepoint(savepoint); err != nil {
		return RowOutcome{}, fmt.Errorf("savepoint for row %d: %w", line, err)
	}

	outcome := s.processRow(tx, owner, row)
	outcome.Line = line

	if outcome.Status == RowFailed {
		if err := tx.RollbackTo(savepoint); err != nil {
			return RowOutcome{}, fmt.Errorf("rollback row %d: %w", line, err)
		}
	}
	if err := tx.Release(savepoint); err != nil {
		return RowOutcome{}, fmt.Errorf("release row %d: %w", line, err)
	}
	return outcome, nil
}

func (s *BookImportService) processRow(tx ImportTx, owner *entities.User, row importers.Row) (outcome RowOutcome) {
	defer func() {
		if p := recover(); p != nil {
			outcome = RowOutcome{Status: RowFailed, Err: fmt.Errorf("unexpected error: %v", p)}
		}
	}()

	input, err := s.validator.Validate(row)
	if err != nil {
		return RowOutcome{Status: RowFailed, Err: err}
	}
	if strings.TrimSpace(input.Author) == "" {
		return RowOutcome{Status: RowFailed, Err: &ValidationError{Field: ColumnAuthor, Message: "Author name is required in book data."}}
	}

	author, err := tx.FindOrCreateAuthor(input.Author)
	if err != nil {
		return RowOutcome{Status: RowFailed, Err: fmt.Errorf("resolve author: %w", err)}
	}

	book, created, err := tx.FindOrCreateBook(books.Key{
		OwnerID:   owner.ID,
		AuthorID:  author.ID,
		Title:     input.Title,
		ISBN13:    input.ISBN13,
		PageCount: input.PageCount,
	})
	if err != nil {
		return RowOutcome{Status: RowFailed, Err: fmt.Errorf("save book: %w", err)}
	}
	book.Author = author

	if err := tx.SyncTags(book, input.BookTags); err != nil {
		return RowOutcome{Status: RowFailed, Err: fmt.Errorf("book tags: %w", err)}
	}
	if err := tx.SyncTags(author, input.AuthorTags); err != nil {
		return RowOutcome{Status: RowFailed, Err: fmt.Errorf("author tags: %w", err)}
	}

	if created {
		return RowOutcome{Status: RowCreated, Book: book}
	}
	return RowOutcome{Status: RowSkipped, Book: book}
}

func (s *BookImportService) logOutcome(owner *entities.User, outcome RowOutcome) {
	switch outcome.Status {
	case RowCreated:
		s.logger.Printf("Created book: %s [%d] for user %d", outcome.Book.Title, outcome.Book.ID, owner.ID)
	case RowSkipped:
		s.logger.Printf("Skipped existing book: %s [%d] for user %d", outcome.Book.Title, outcome.Book.ID, owner.ID)
	case RowFailed:
		s.logger.Printf("Failed row %d: %v", outcome.Line, outcome.Err)
	}
}

func (s *BookImportService) audit(owner *entities.User, source, description string, result *ImportResult, err error) {
	if s.auditor == nil {
		return
	}
	s.auditor.LogImport(owner.ID, source, description, result.Created, result.Skipped, result.Failed, err)
}

func (s *BookImportService) archive(runID, source string, owner *entities.User, result *ImportResult) {
	if s.archiver == nil || result.Failed == 0 {
		return
	}
	name, err := s.archiver.SaveJSON(map[string]any{
		"run_id":  runID,
		"source":  source,
		"user_id": owner.ID,
		"result":  result,
	})
	if err != nil {
		s.logger.Printf("Import run=%s could not archive failed rows: %v", runID, err)
		return
	}
	s.logger.Printf("Import run=%s archived %d failed rows to %s", runID, result.Failed, name)
}
