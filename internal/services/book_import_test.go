package services

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/database/authors"
	"github.com/mrlokans/librarian/internal/database/books"
	"github.com/mrlokans/librarian/internal/database/tags"
	"github.com/mrlokans/librarian/internal/database/users"
	"github.com/mrlokans/librarian/internal/entities"
)

const csvHeader = "title,author,isbn13,page_count,book_tags,author_tags\n"

func setupImportDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "import.db"), logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db.DB
}

func createOwner(t *testing.T, db *gorm.DB, username string) *entities.User {
	t.Helper()
	user, err := users.NewRepository(db).CreateUser(username, username+"@example.com")
	require.NoError(t, err)
	return user
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "books.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestImporter(db *gorm.DB, opts ...BookImportOption) (*BookImportService, *bytes.Buffer) {
	var buf bytes.Buffer
	opts = append([]BookImportOption{WithImportLogger(log.New(&buf, "", 0))}, opts...)
	return NewBookImportService(NewGormImportStore(db), opts...), &buf
}

func countRows(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func TestImportFromCSV_SingleRow(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	svc, logs := newTestImporter(db)

	path := writeCSV(t, csvHeader+"Test Book,Test Author,9781234567890,100,fiction;drama,american")
	result, err := svc.ImportFromCSV(context.Background(), path, owner)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Failed)
	assert.NotNil(t, result.Errors)
	assert.Empty(t, result.Errors)

	assert.Equal(t, int64(1), countRows(t, db, &entities.Author{}, "name = ?", "Test Author"))

	author, err := authors.NewRepository(db).GetAuthorByName("Test Author")
	require.NoError(t, err)

	book, err := books.NewRepository(db).FindByNaturalKey(books.Key{
		OwnerID:   owner.ID,
		AuthorID:  author.ID,
		Title:     "Test Book",
		ISBN13:    "9781234567890",
		PageCount: intPtr(100),
	})
	require.NoError(t, err)

	tagRepo := tags.NewRepository(db)
	bookTags, err := tagRepo.TagsFor(book)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"fiction", "drama"}, names(bookTags))

	authorTags, err := tagRepo.TagsFor(author)
	require.NoError(t, err)
	assert.Equal(t, []string{"american"}, names(authorTags))

	assert.Contains(t, logs.String(), "Starting book import")
	assert.Contains(t, logs.String(), "Created book: Test Book [")
}

func TestImportFromCSV_AuthorsAreGlobal(t *testing.T) {
	db := setupImportDB(t)
	first := createOwner(t, db, "first")
	second := createOwner(t, db, "second")
	svc, _ := newTestImporter(db)

	path := writeCSV(t, csvHeader+
		"Book 1,Haruki Murakami,9781111111111,100,fiction,japanese\n"+
		"Book 2,Haruki Murakami,9782222222222,200,fiction,japanese")
	_, err := svc.ImportFromCSV(context.Background(), path, first)
	require.NoError(t, err)
	assert.Equal(t, int64(1), countRows(t, db, &entities.Author{}, "name = ?", "Haruki Murakami"))

	path = writeCSV(t, csvHeader+"Book 3,Haruki Murakami,9783333333333,300,fiction,japanese")
	_, err = svc.ImportFromCSV(context.Background(), path, second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), countRows(t, db, &entities.Author{}, "name = ?", "Haruki Murakami"))
	assert.Equal(t, int64(3), countRows(t, db, &entities.Book{}, ""))
}

func TestImportFromCSV_BooksDeduplicatedPerOwner(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	other := createOwner(t, db, "other")
	svc, logs := newTestImporter(db)

	row := "Test Book,Test Author,9781234567890,100,fiction,american"
	path := writeCSV(t, csvHeader+row+"\n"+row)

	result, err := svc.ImportFromCSV(context.Background(), path, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Contains(t, logs.String(), "Skipped existing book: Test Book [")

	result, err = svc.ImportFromCSV(context.Background(), path, other)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)

	assert.Equal(t, int64(1), countRows(t, db, &entities.Book{}, "user_id = ? AND isbn13 = ?", owner.ID, "9781234567890"))
	assert.Equal(t, int64(1), countRows(t, db, &entities.Book{}, "user_id = ? AND isbn13 = ?", other.ID, "9781234567890"))
}

func TestImportFromCSV_ReimportKeepsStoredBook(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	svc, _ := newTestImporter(db)

	path := writeCSV(t, csvHeader+"Test Book,Test Author,9781234567890,100,fiction,american")
	_, err := svc.ImportFromCSV(context.Background(), path, owner)
	require.NoError(t, err)

	var before entities.Book
	require.NoError(t, db.First(&before).Error)

	result, err := svc.ImportFromCSV(context.Background(), path, owner)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Skipped)

	var after entities.Book
	require.NoError(t, db.First(&after, before.ID).Error)
	assert.Equal(t, "Test Book", after.Title)
	require.NotNil(t, after.PageCount)
	assert.Equal(t, 100, *after.PageCount)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
}

func TestImportFromCSV_ChangedTitleIsANewBook(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	svc, _ := newTestImporter(db)

	_, err := svc.ImportFromCSV(context.Background(),
		writeCSV(t, csvHeader+"Test Book,Test Author,9781234567890,100,fiction,american"), owner)
	require.NoError(t, err)

	result, err := svc.ImportFromCSV(context.Background(),
		writeCSV(t, csvHeader+"Test Book Fixed Title,Test Author,9781234567890,105,fiction,american"), owner)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	var original entities.Book
	require.NoError(t, db.Where("title = ?", "Test Book").First(&original).Error)
	assert.Equal(t, 100, *original.PageCount)
}

func TestImportFromCSV_TagSyncReplacesSet(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	svc, _ := newTestImporter(db)

	_, err := svc.ImportFromCSV(context.Background(),
		writeCSV(t, csvHeader+"Test Book,Test Author,9781234567890,100,fiction;drama,american;contemporary"), owner)
	require.NoError(t, err)

	// Same key, new book tags, no author tags.
	_, err = svc.ImportFromCSV(context.Background(),
		writeCSV(t, csvHeader+"Test Book,Test Author,9781234567890,100,drama;classic,"), owner)
	require.NoError(t, err)

	var book entities.Book
	require.NoError(t, db.Preload("Author").First(&book).Error)

	tagRepo := tags.NewRepository(db)
	bookTags, err := tagRepo.TagsFor(&book)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"drama", "classic"}, names(bookTags))

	authorTags, err := tagRepo.TagsFor(book.Author)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"american", "contemporary"}, names(authorTags))
}

func TestImportFromCSV_TagSyncIsIdempotent(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	svc, _ := newTestImporter(db)

	path := writeCSV(t, csvHeader+"Test Book,Test Author,9781234567890,100,fiction;drama,american")
	for i := 0; i < 2; i++ {
		_, err := svc.ImportFromCSV(context.Background(), path, owner)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(3), countRows(t, db, &entities.Tagging{}, ""))
	assert.Equal(t, int64(3), countRows(t, db, &entities.Tag{}, ""))
}

func TestImportFromCSV_MissingAuthorFailsRow(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	svc, _ := newTestImporter(db)

	result, err := svc.ImportFromCSV(context.Background(),
		writeCSV(t, csvHeader+"Test Book,,9781234567890,100,fiction,"), owner)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "The author field is required.", result.Errors[0].Error)
	assert.Equal(t, "Test Book", result.Errors[0].Data["title"])
	assert.Equal(t, int64(0), countRows(t, db, &entities.Book{}, ""))
	assert.Equal(t, int64(0), countRows(t, db, &entities.Tag{}, ""))
}

func TestImportFromCSV_BlankRequiredFields(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	svc, _ := newTestImporter(db)

	result, err := svc.ImportFromCSV(context.Background(), writeCSV(t, csvHeader+
		"   ,Test Author,9781234567890,100,,\n"+
		"Test Book,   ,9781234567890,100,,\n"+
		"Test Book,Test Author,             ,100,,\n"), owner)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 3, result.Failed)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, "The title field is required.", result.Errors[0].Error)
	assert.Equal(t, "The author field is required.", result.Errors[1].Error)
	assert.Equal(t, "The isbn13 field is required.", result.Errors[2].Error)
	assert.Equal(t, int64(0), countRows(t, db, &entities.Book{}, ""))
	assert.Equal(t, int64(0), countRows(t, db, &entities.Author{}, ""))
}

func TestImportFromCSV_AuthorGuard(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	svc, _ := newTestImporter(db)

	// A validator that lets blank names through still never reaches storage.
	lenient := NewRowValidator()
	require.NoError(t, lenient.v.RegisterValidation("notblank", func(validator.FieldLevel) bool { return true }))
	svc.validator = lenient

	result, err := svc.ImportFromCSV(context.Background(),
		writeCSV(t, csvHeader+"Test Book,   ,9781234567890,100,,"), owner)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Author name is required in book data.", result.Errors[0].Error)
	assert.Equal(t, int64(0), countRows(t, db, &entities.Author{}, ""))
}

func TestImportFromCSV_BadRowDoesNotAbortBatch(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	svc, _ := newTestImporter(db)

	path := writeCSV(t, csvHeader+
		"First,Author A,9781111111111,100,fiction,\n"+
		"Broken,Author B,123,100,fiction,\n"+
		"Third,Author C,9783333333333,abc,,\n"+
		"Fourth,Author D,9784444444444,,poetry,\n")

	result, err := svc.ImportFromCSV(context.Background(), path, owner)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "Broken", result.Errors[0].Data["title"])
	assert.Equal(t, "The isbn13 field must be 13 characters.", result.Errors[0].Error)
	assert.Equal(t, "Third", result.Errors[1].Data["title"])
	assert.Equal(t, "The page count field must be an integer.", result.Errors[1].Error)

	var fourth entities.Book
	require.NoError(t, db.Where("title = ?", "Fourth").First(&fourth).Error)
	assert.Nil(t, fourth.PageCount)
}

func TestImportFromCSV_SampleFile(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	svc, _ := newTestImporter(db)

	result, err := svc.ImportFromCSV(context.Background(), filepath.Join("testdata", "sample-books.csv"), owner)
	require.NoError(t, err)

	assert.Equal(t, 25, result.Total)
	assert.Equal(t, 23, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Failed)

	assert.Equal(t, int64(23), countRows(t, db, &entities.Book{}, ""))
	assert.Equal(t, int64(1), countRows(t, db, &entities.Author{}, "name = ?", "Haruki Murakami"))
	assert.Equal(t, int64(1), countRows(t, db, &entities.Author{}, "name = ?", "Margaret Atwood"))

	var murakami entities.Author
	require.NoError(t, db.Where("name = ?", "Haruki Murakami").First(&murakami).Error)
	assert.Equal(t, int64(3), countRows(t, db, &entities.Book{}, "author_id = ?", murakami.ID))

	assert.Equal(t, int64(1), countRows(t, db, &entities.Tag{}, "name = ?", "japanese"))
	assert.Equal(t, int64(1), countRows(t, db, &entities.Tag{}, "name = ?", "sci-fi"))
}

func TestImportFromCSV_WrongFormat(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	svc, _ := newTestImporter(db)

	result, err := svc.ImportFromCSV(context.Background(), filepath.Join("testdata", "wrong-format.csv"), owner)
	require.Error(t, err)
	assert.Nil(t, result)

	var structErr *StructureError
	require.ErrorAs(t, err, &structErr)
	assert.Equal(t, "title", structErr.Column)
	assert.EqualError(t, err, "Missing required column: title")
	assert.True(t, IsFatalImportError(err))
	assert.Equal(t, int64(0), countRows(t, db, &entities.Book{}, ""))
}

func TestImportFromCSV_MissingLaterColumn(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	svc, _ := newTestImporter(db)

	_, err := svc.ImportFromCSV(context.Background(),
		writeCSV(t, "title,author,page_count\nA,B,1\n"), owner)
	assert.EqualError(t, err, "Missing required column: isbn13")
}

func TestImportFromCSV_EmptyFile(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	svc, _ := newTestImporter(db)

	for name, content := range map[string]string{
		"no bytes":    "",
		"header only": csvHeader,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ImportFromCSV(context.Background(), writeCSV(t, content), owner)
			var structErr *StructureError
			require.ErrorAs(t, err, &structErr)
			assert.Equal(t, "CSV file is empty", structErr.Error())
		})
	}
}

func TestImportFromCSV_SourceErrors(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	svc, _ := newTestImporter(db)

	missing := filepath.Join(t.TempDir(), "nope.csv")
	_, err := svc.ImportFromCSV(context.Background(), missing, owner)
	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "File not found: "+missing, err.Error())
	assert.ErrorIs(t, err, os.ErrNotExist)

	dir := t.TempDir()
	_, err = svc.ImportFromCSV(context.Background(), dir, owner)
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "File not readable: "+dir, err.Error())
}

func TestImportFromCSV_RequiresOwner(t *testing.T) {
	db := setupImportDB(t)
	svc, _ := newTestImporter(db)

	path := writeCSV(t, csvHeader+"Test Book,Test Author,9781234567890,100,,")
	_, err := svc.ImportFromCSV(context.Background(), path, nil)
	assert.ErrorIs(t, err, ErrOwnerRequired)

	_, err = svc.ImportFromCSV(context.Background(), path, &entities.User{})
	assert.ErrorIs(t, err, ErrOwnerRequired)
}

func TestImportFromReader(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	svc, _ := newTestImporter(db, WithCSVDelimiter(';'))

	input := "title;author;isbn13;page_count\nTest Book;Test Author;9781234567890;100\n"
	result, err := svc.ImportFromReader(context.Background(), "upload.csv", strings.NewReader(input), owner)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
}

func TestImportFromCSV_CancelledContextRollsBack(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	auditor := &recordingAuditor{}
	svc, _ := newTestImporter(db, WithImportAuditor(auditor))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.ImportFromCSV(ctx, filepath.Join("testdata", "sample-books.csv"), owner)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsFatalImportError(err))
	assert.Equal(t, int64(0), countRows(t, db, &entities.Book{}, ""))

	require.Len(t, auditor.calls, 1)
	assert.Error(t, auditor.calls[0].err)
}

func TestImportFromCSV_AuditsAndArchives(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	auditor := &recordingAuditor{}
	archiver := &recordingArchiver{}
	svc, _ := newTestImporter(db, WithImportAuditor(auditor), WithResultArchiver(archiver))

	_, err := svc.ImportFromCSV(context.Background(), filepath.Join("testdata", "sample-books.csv"), owner)
	require.NoError(t, err)

	require.Len(t, auditor.calls, 1)
	call := auditor.calls[0]
	assert.Equal(t, owner.ID, call.userID)
	assert.Equal(t, 23, call.created)
	assert.Equal(t, 1, call.skipped)
	assert.Equal(t, 1, call.failed)
	assert.NoError(t, call.err)
	assert.Len(t, archiver.saved, 1)

	// Nothing failed, nothing archived.
	_, err = svc.ImportFromCSV(context.Background(),
		writeCSV(t, csvHeader+"Clean,Author,9781234567890,1,,"), owner)
	require.NoError(t, err)
	assert.Len(t, archiver.saved, 1)
}

// Row-level storage failures are contained by rolling back to the row's
// savepoint; savepoint failures abort the run.
func TestImportRow_StorageFailures(t *testing.T) {
	owner := &entities.User{ID: 7}
	rows := csvHeader +
		"Good,Author,9781111111111,100,,\n" +
		"Boom,Author,9782222222222,100,,\n" +
		"Also Good,Author,9783333333333,100,,\n"

	t.Run("statement failure is row scoped", func(t *testing.T) {
		tx := &fakeTx{failTitle: "Boom"}
		svc := NewBookImportService(&fakeStore{tx: tx}, WithImportLogger(log.New(&bytes.Buffer{}, "", 0)))

		result, err := svc.ImportFromReader(context.Background(), "rows.csv", strings.NewReader(rows), owner)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Created)
		assert.Equal(t, 1, result.Failed)
		assert.Equal(t, "save book: disk I/O error", result.Errors[0].Error)
		assert.Equal(t, []string{"import_row_2"}, tx.rolledBack)
		assert.Len(t, tx.released, 3)
	})

	t.Run("savepoint failure is fatal", func(t *testing.T) {
		tx := &fakeTx{savepointErr: errors.New("database is locked")}
		store := &fakeStore{tx: tx}
		svc := NewBookImportService(store, WithImportLogger(log.New(&bytes.Buffer{}, "", 0)))

		result, err := svc.ImportFromReader(context.Background(), "rows.csv", strings.NewReader(rows), owner)
		require.Error(t, err)
		assert.Nil(t, result)
		assert.Contains(t, err.Error(), "database is locked")
		assert.True(t, store.rolledBack)
	})

	t.Run("panic is row scoped", func(t *testing.T) {
		tx := &fakeTx{panicTitle: "Boom"}
		svc := NewBookImportService(&fakeStore{tx: tx}, WithImportLogger(log.New(&bytes.Buffer{}, "", 0)))

		result, err := svc.ImportFromReader(context.Background(), "rows.csv", strings.NewReader(rows), owner)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Failed)
		assert.Contains(t, result.Errors[0].Error, "unexpected error")
	})
}

func TestImportFromCSV_ReimportAfterDelete(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	svc, _ := newTestImporter(db)
	path := writeCSV(t, csvHeader+"Test Book,Test Author,9781234567890,100,fiction,")

	first, err := svc.ImportFromCSV(context.Background(), path, owner)
	require.NoError(t, err)
	require.Equal(t, 1, first.Created)

	author, err := authors.NewRepository(db).GetAuthorByName("Test Author")
	require.NoError(t, err)
	repo := books.NewRepository(db)
	book, err := repo.FindByNaturalKey(books.Key{
		OwnerID: owner.ID, AuthorID: author.ID,
		Title: "Test Book", ISBN13: "9781234567890", PageCount: intPtr(100),
	})
	require.NoError(t, err)
	require.NoError(t, repo.DeleteBook(book.ID))

	second, err := svc.ImportFromCSV(context.Background(), path, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Created)
	assert.Equal(t, 0, second.Failed)
	assert.Empty(t, second.Errors)

	restored, err := repo.GetBookByID(book.ID)
	require.NoError(t, err)
	bookTags, err := tags.NewRepository(db).TagsFor(restored)
	require.NoError(t, err)
	assert.Equal(t, []string{"fiction"}, names(bookTags))
}

// A row that fails after its author and book were inserted leaves nothing
// behind on a real database.
func TestImportFromCSV_FailedRowRollsBackToSavepoint(t *testing.T) {
	db := setupImportDB(t)
	owner := createOwner(t, db, "reader")
	svc, _ := newTestImporter(db)

	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_tag", func(tx *gorm.DB) {
		if tag, ok := tx.Statement.Dest.(*entities.Tag); ok && tag.Name == "poison" {
			_ = tx.AddError(errors.New("disk I/O error"))
		}
	}))

	result, err := svc.ImportFromCSV(context.Background(), writeCSV(t, csvHeader+
		"Book A,Known Author,9781111111111,100,fiction,\n"+
		"Book B,New Author,9782222222222,100,poison,\n"+
		"Book C,Known Author,9783333333333,100,drama,\n"), owner)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error, "disk I/O error")

	assert.Equal(t, int64(0), countRows(t, db, &entities.Book{}, "title = ?", "Book B"))
	assert.Equal(t, int64(0), countRows(t, db, &entities.Author{}, "name = ?", "New Author"))
	assert.Equal(t, int64(0), countRows(t, db, &entities.Tag{}, "name = ?", "poison"))
	assert.Equal(t, int64(2), countRows(t, db, &entities.Book{}, ""))
	assert.Equal(t, int64(2), countRows(t, db, &entities.Tagging{}, ""))
}

func intPtr(n int) *int { return &n }

func names(list []entities.Tag) []string {
	out := make([]string, len(list))
	for i, tag := range list {
		out[i] = tag.Name
	}
	return out
}

type auditCall struct {
	userID                   uint
	created, skipped, failed int
	err                      error
}

type recordingAuditor struct {
	calls []auditCall
}

func (a *recordingAuditor) LogImport(userID uint, _, _ string, created, skipped, failed int, err error) {
	a.calls = append(a.calls, auditCall{userID, created, skipped, failed, err})
}

type recordingArchiver struct {
	saved []any
}

func (a *recordingArchiver) SaveJSON(data any) (string, error) {
	a.saved = append(a.saved, data)
	return "archive.json", nil
}

type fakeStore struct {
	tx         *fakeTx
	rolledBack bool
}

func (s *fakeStore) RunInTransaction(_ context.Context, fn func(ImportTx) error) error {
	if err := fn(s.tx); err != nil {
		s.rolledBack = true
		return err
	}
	return nil
}

type fakeTx struct {
	failTitle    string
	panicTitle   string
	savepointErr error
	nextID       uint
	rolledBack   []string
	released     []string
}

func (f *fakeTx) FindOrCreateAuthor(name string) (*entities.Author, error) {
	return &entities.Author{ID: 1, Name: name}, nil
}

func (f *fakeTx) FindOrCreateBook(key books.Key) (*entities.Book, bool, error) {
	switch key.Title {
	case f.failTitle:
		return nil, false, errors.New("disk I/O error")
	case f.panicTitle:
		panic("nil map write")
	}
	f.nextID++
	return &entities.Book{ID: f.nextID, Title: key.Title, UserID: key.OwnerID, AuthorID: key.AuthorID}, true, nil
}

func (f *fakeTx) SyncTags(entities.Taggable, string) error { return nil }

func (f *fakeTx) Savepoint(string) error { return f.savepointErr }

func (f *fakeTx) RollbackTo(name string) error {
	f.rolledBack = append(f.rolledBack, name)
	return nil
}

func (f *fakeTx) Release(name string) error {
	f.released = append(f.released, name)
	return nil
}
