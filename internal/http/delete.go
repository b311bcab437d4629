package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type DeleteController struct {
	books   BookStore
	deleter BookDeleter
}

func NewDeleteController(books BookStore, deleter BookDeleter) *DeleteController {
	return &DeleteController{books: books, deleter: deleter}
}

// DeleteBook soft-deletes one of the caller's books. A book that is out on
// loan cannot be deleted.
// DELETE /api/books/:id
func (dc *DeleteController) DeleteBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := dc.books.GetBookByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondNotFound(c, "book")
		return
	}
	if err != nil {
		respondInternalError(c, err, "get book")
		return
	}

	if book.UserID != GetUserID(c) {
		respondError(c, http.StatusForbidden, "you can only delete your own books")
		return
	}
	if !book.IsAvailable() {
		respondFieldError(c, http.StatusConflict, CodeConflict, "delete", "this book is checked out")
		return
	}

	if err := dc.deleter.DeleteBook(id); err != nil {
		respondInternalError(c, err, "delete book")
		return
	}

	respondSuccess(c, "book deleted")
}
