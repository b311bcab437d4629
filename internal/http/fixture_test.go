package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/require"

	auditsvc "github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/database/authors"
	"github.com/mrlokans/librarian/internal/database/books"
	"github.com/mrlokans/librarian/internal/database/tags"
	"github.com/mrlokans/librarian/internal/database/users"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/services"
)

type recordingTaskQueue struct {
	mu    sync.Mutex
	tasks []backlite.Task
}

func (q *recordingTaskQueue) Enqueue(_ context.Context, task backlite.Task) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return "task-1", nil
}

func (q *recordingTaskQueue) Status(_ context.Context, taskID string) (backlite.TaskStatus, error) {
	if taskID == "task-1" {
		return backlite.TaskStatusPending, nil
	}
	return backlite.TaskStatusNotFound, nil
}

// apiFixture serves the full router over a real sqlite database with auth
// disabled, so every request acts as a chosen user.
type apiFixture struct {
	t     *testing.T
	db    *database.Database
	cfg   RouterConfig
	audit *auditsvc.Service
	queue *recordingTaskQueue
	owner *entities.User
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db := newTestDatabase(t)
	auditService := auditsvc.NewService(audit.NewRepository(db.DB))
	t.Cleanup(auditService.Flush)

	userRepo := users.NewRepository(db.DB)
	owner, err := userRepo.CreateUser("owner", "owner@example.com")
	require.NoError(t, err)

	bookRepo := books.NewRepository(db.DB)
	queue := &recordingTaskQueue{}

	return &apiFixture{
		t:     t,
		db:    db,
		audit: auditService,
		queue: queue,
		owner: owner,
		cfg: RouterConfig{
			Database:   db,
			Version:    "test",
			Books:      bookRepo,
			Authors:    authors.NewRepository(db.DB),
			Tags:       tags.NewRepository(db.DB),
			Users:      userRepo,
			Deleter:    bookRepo,
			Importer:   services.NewBookImportService(services.NewGormImportStore(db.DB)),
			Loans:      services.NewCheckoutService(db.DB, services.WithCheckoutAuditor(auditService)),
			Audit:      auditService,
			TagAuditor: auditService,
			Tasks:      queue,
			AuthConfig: config.Auth{Mode: config.AuthModeNone},
		},
	}
}

func (f *apiFixture) user(username string) *entities.User {
	f.t.Helper()
	user, err := users.NewRepository(f.db.DB).CreateUser(username, username+"@example.com")
	require.NoError(f.t, err)
	return user
}

// seedBook stores a book owned by owner, creating its author on demand.
func (f *apiFixture) seedBook(owner *entities.User, title, authorName string) *entities.Book {
	f.t.Helper()
	author, err := authors.NewRepository(f.db.DB).FindOrCreateAuthor(authorName)
	require.NoError(f.t, err)

	pages := 200
	book, _, err := books.NewRepository(f.db.DB).FindOrCreateBook(books.Key{
		OwnerID:   owner.ID,
		AuthorID:  author.ID,
		Title:     title,
		ISBN13:    "9780000000001",
		PageCount: &pages,
	})
	require.NoError(f.t, err)
	return book
}

func (f *apiFixture) serve(as *entities.User, req *http.Request) *httptest.ResponseRecorder {
	f.t.Helper()
	cfg := f.cfg
	cfg.AuthMiddleware = auth.NewMiddleware(nil, nil, cfg.AuthConfig, as.ID)

	w := httptest.NewRecorder()
	NewRouter(cfg).ServeHTTP(w, req)
	return w
}

func (f *apiFixture) do(as *entities.User, method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return f.serve(as, req)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// uploadRequest builds a multipart POST with content under field.
func uploadRequest(t *testing.T, path, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// newUserRouter returns a bare engine that acts as userID, for mounting a
// single controller.
func newUserRouter(userID uint) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(auth.ContextKeyUserID, userID)
		c.Next()
	})
	return router
}

func serveRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}
