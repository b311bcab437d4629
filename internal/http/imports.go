package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/services"
	"github.com/mrlokans/librarian/internal/utils"
)

const (
	// DefaultMaxUploadBytes is 5120 KB.
	DefaultMaxUploadBytes = 5120 * 1024

	uploadField = "file"

	// multipart framing around the file part
	multipartOverhead = 64 * 1024

	sniffLen = 3072
)

var allowedImportExtensions = map[string]bool{
	".csv": true,
	".txt": true,
}

// BookImportController accepts CSV uploads and runs them through the
// import orchestrator for the caller.
type BookImportController struct {
	importer BookImporter
	users    UserGetter
	maxBytes int64
}

func NewBookImportController(importer BookImporter, users UserGetter, maxBytes int64) *BookImportController {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &BookImportController{
		importer: importer,
		users:    users,
		maxBytes: maxBytes,
	}
}

// Import handles POST /api/books/import.
func (ic *BookImportController) Import(c *gin.Context) {
	owner, err := ic.users.GetUserByID(GetUserID(c))
	if err != nil {
		respondUnauthorized(c)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ic.maxBytes+multipartOverhead)
	header, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ic.respondTooLarge(c)
			return
		}
		respondFieldError(c, http.StatusUnprocessableEntity, CodeImportInvalid, uploadField, "The file field is required.")
		return
	}
	if header.Size > ic.maxBytes {
		ic.respondTooLarge(c)
		return
	}

	if !allowedImportExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
		respondFieldError(c, http.StatusUnprocessableEntity, CodeImportInvalid, uploadField, "The file must be a file of type: csv, txt.")
		return
	}

	body, err := openSniffed(header)
	if err != nil {
		respondFieldError(c, http.StatusUnprocessableEntity, CodeImportInvalid, uploadField, err.Error())
		return
	}
	defer body.Close()

	name := utils.SanitizeFilename(header.Filename)
	result, err := ic.importer.ImportFromReader(c.Request.Context(), name, body, owner)
	if err != nil {
		var sourceErr *services.SourceError
		var structureErr *services.StructureError
		switch {
		case errors.As(err, &sourceErr), errors.As(err, &structureErr):
			respondFieldError(c, http.StatusUnprocessableEntity, CodeImportInvalid, uploadField, err.Error())
		case errors.Is(err, services.ErrOwnerRequired):
			respondUnauthorized(c)
		default:
			respondInternalError(c, err, "book import")
		}
		return
	}

	log.Printf("Imported %s for user %d: %d created, %d skipped, %d failed",
		name, owner.ID, result.Created, result.Skipped, result.Failed)
	c.JSON(http.StatusOK, result)
}

func (ic *BookImportController) respondTooLarge(c *gin.Context) {
	respondFieldError(c, http.StatusRequestEntityTooLarge, CodeFileTooLarge, uploadField,
		fmt.Sprintf("The file must not be greater than %d kilobytes.", ic.maxBytes/1024))
}

type sniffedFile struct {
	io.Reader
	io.Closer
}

// openSniffed opens an uploaded file and checks that its content is text.
// The returned reader still yields the whole file.
func openSniffed(header *multipart.FileHeader) (io.ReadCloser, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("File not readable: %s", header.Filename)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		f.Close()
		return nil, fmt.Errorf("File not readable: %s", header.Filename)
	}
	head = head[:n]

	if !isTabularText(mimetype.Detect(head)) {
		f.Close()
		return nil, errors.New("The file must be a file of type: csv, txt.")
	}

	return sniffedFile{Reader: io.MultiReader(bytes.NewReader(head), f), Closer: f}, nil
}

func isTabularText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/csv") || m.Is("text/plain") {
			return true
		}
	}
	return false
}
