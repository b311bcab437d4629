package http

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/tasks"
)

type TagsController struct {
	tags    TagStore
	books   BookStore
	authors AuthorStore
	queue   TaskQueue
	auditor TagAuditor
}

// NewTagsController creates the controller. queue and auditor may be nil.
func NewTagsController(tags TagStore, books BookStore, authors AuthorStore, queue TaskQueue, auditor TagAuditor) *TagsController {
	return &TagsController{
		tags:    tags,
		books:   books,
		authors: authors,
		queue:   queue,
		auditor: auditor,
	}
}

type tagRequest struct {
	Name string `json:"name" form:"name" binding:"required"`
}

// GetAllTags returns every tag.
// GET /api/tags
func (tc *TagsController) GetAllTags(c *gin.Context) {
	tags, err := tc.tags.GetAllTags()
	if err != nil {
		respondInternalError(c, err, "get all tags")
		return
	}
	c.JSON(http.StatusOK, tags)
}

// AddTagToBook tags one of the caller's books.
// POST /api/books/:id/tags
func (tc *TagsController) AddTagToBook(c *gin.Context) {
	book, ok := tc.ownedBook(c)
	if !ok {
		return
	}
	tc.addTag(c, book)
}

// RemoveTagFromBook DELETE /api/books/:id/tags/:name
func (tc *TagsController) RemoveTagFromBook(c *gin.Context) {
	book, ok := tc.ownedBook(c)
	if !ok {
		return
	}
	tc.removeTag(c, book)
}

// AddTagToAuthor tags an author. Authors are shared by every user.
// POST /api/authors/:id/tags
func (tc *TagsController) AddTagToAuthor(c *gin.Context) {
	author, ok := tc.author(c)
	if !ok {
		return
	}
	tc.addTag(c, author)
}

// RemoveTagFromAuthor DELETE /api/authors/:id/tags/:name
func (tc *TagsController) RemoveTagFromAuthor(c *gin.Context) {
	author, ok := tc.author(c)
	if !ok {
		return
	}
	tc.removeTag(c, author)
}

// CleanupOrphanTags enqueues removal of tags nothing carries any more.
// POST /api/tags/cleanup
func (tc *TagsController) CleanupOrphanTags(c *gin.Context) {
	if tc.queue == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "task queue is not enabled", Code: CodeTasksDisabled})
		return
	}

	id, err := tc.queue.Enqueue(c.Request.Context(), tasks.CleanupOrphanTagsTask{RequestedBy: GetUserID(c)})
	if err != nil {
		respondInternalError(c, err, "enqueue cleanup task")
		return
	}
	log.Printf("Enqueued CleanupOrphanTagsTask with ID: %s", id)

	respondAccepted(c, "cleanup task started", gin.H{"task_id": id})
}

func (tc *TagsController) addTag(c *gin.Context, entity entities.Taggable) {
	var req tagRequest
	if err := c.ShouldBind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		respondBadRequest(c, "name is required")
		return
	}
	name := strings.TrimSpace(req.Name)

	if err := tc.tags.AddTag(entity, name); err != nil {
		respondInternalError(c, err, "add tag")
		return
	}
	tc.audit(c, entity, "tag_add", name)
	tc.respondTags(c, entity, http.StatusCreated)
}

func (tc *TagsController) removeTag(c *gin.Context, entity entities.Taggable) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		respondBadRequest(c, "name is required")
		return
	}

	if err := tc.tags.RemoveTag(entity, name); err != nil {
		respondInternalError(c, err, "remove tag")
		return
	}
	tc.audit(c, entity, "tag_remove", name)
	tc.respondTags(c, entity, http.StatusOK)
}

func (tc *TagsController) respondTags(c *gin.Context, entity entities.Taggable, status int) {
	tags, err := tc.tags.TagsFor(entity)
	if err != nil {
		respondInternalError(c, err, "load tags")
		return
	}
	c.JSON(status, gin.H{"tags": tags})
}

func (tc *TagsController) audit(c *gin.Context, entity entities.Taggable, action, name string) {
	if tc.auditor != nil {
		tc.auditor.LogTag(GetUserID(c), entity.TaggableType(), entity.TaggableID(), action, name)
	}
}

// ownedBook loads :id and checks the caller owns it.
func (tc *TagsController) ownedBook(c *gin.Context) (*entities.Book, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}

	book, err := tc.books.GetBookByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondNotFound(c, "book")
		return nil, false
	}
	if err != nil {
		respondInternalError(c, err, "get book")
		return nil, false
	}
	if book.UserID != GetUserID(c) {
		respondError(c, http.StatusForbidden, "you can only tag your own books")
		return nil, false
	}
	return book, true
}

func (tc *TagsController) author(c *gin.Context) (*entities.Author, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}

	author, err := tc.authors.GetAuthorByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondNotFound(c, "author")
		return nil, false
	}
	if err != nil {
		respondInternalError(c, err, "get author")
		return nil, false
	}
	return author, true
}
