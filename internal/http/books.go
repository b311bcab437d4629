package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/entities"
)

type BooksController struct {
	books   BookStore
	authors AuthorStore
	tags    TagStore
}

func NewBooksController(books BookStore, authors AuthorStore, tags TagStore) *BooksController {
	return &BooksController{
		books:   books,
		authors: authors,
		tags:    tags,
	}
}

// GetAllBooks handles GET /api/books. ?q= searches title and ISBN, ?mine=true
// limits the list to the caller's books.
func (bc *BooksController) GetAllBooks(c *gin.Context) {
	var (
		books []entities.Book
		err   error
	)
	switch q := strings.TrimSpace(c.Query("q")); {
	case q != "":
		books, err = bc.books.SearchBooks(q)
	case c.Query("mine") == "true":
		books, err = bc.books.GetAllBooksForUser(GetUserID(c))
	default:
		books, err = bc.books.GetAllBooks()
	}
	if err != nil {
		respondInternalError(c, err, "list books")
		return
	}
	if err := bc.tags.LoadBookTags(books); err != nil {
		respondInternalError(c, err, "load book tags")
		return
	}

	c.JSON(http.StatusOK, gin.H{"books": books, "count": len(books)})
}

// GetBook handles GET /api/books/:id.
func (bc *BooksController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := bc.books.GetBookByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondNotFound(c, "book")
		return
	}
	if err != nil {
		respondInternalError(c, err, "get book")
		return
	}

	if book.Tags, err = bc.tags.TagsFor(book); err != nil {
		respondInternalError(c, err, "load book tags")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"book":      book,
		"available": book.IsAvailable(),
	})
}

// GetAllAuthors handles GET /api/authors.
func (bc *BooksController) GetAllAuthors(c *gin.Context) {
	authors, err := bc.authors.GetAllAuthors()
	if err != nil {
		respondInternalError(c, err, "list authors")
		return
	}
	if err := bc.tags.LoadAuthorTags(authors); err != nil {
		respondInternalError(c, err, "load author tags")
		return
	}
	c.JSON(http.StatusOK, gin.H{"authors": authors, "count": len(authors)})
}

// GetAuthor handles GET /api/authors/:id, including the author's books.
func (bc *BooksController) GetAuthor(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	author, err := bc.authors.GetAuthorByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondNotFound(c, "author")
		return
	}
	if err != nil {
		respondInternalError(c, err, "get author")
		return
	}
	if author.Tags, err = bc.tags.TagsFor(author); err != nil {
		respondInternalError(c, err, "load author tags")
		return
	}
	c.JSON(http.StatusOK, author)
}

// GetBookStats handles GET /api/books/stats for the caller.
func (bc *BooksController) GetBookStats(c *gin.Context) {
	total, checkedOut, err := bc.books.GetStatsForUser(GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "book stats")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_books": total,
		"checked_out": checkedOut,
	})
}
