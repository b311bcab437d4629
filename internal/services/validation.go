package services

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/mrlokans/librarian/internal/importers"
)

// Column names of the import format.
const (
	ColumnTitle      = "title"
	ColumnAuthor     = "author"
	ColumnISBN13     = "isbn13"
	ColumnPageCount  = "page_count"
	ColumnBookTags   = "book_tags"
	ColumnAuthorTags = "author_tags"
)

// RequiredColumns must all be present in the header, in this order of
// reporting.
var RequiredColumns = []string{ColumnTitle, ColumnAuthor, ColumnISBN13, ColumnPageCount}

// bookRow mirrors one import line. Field order is rule order: the first
// failing field is the one reported.
type bookRow struct {
	Title      string `col:"title" validate:"required,notblank,max=255"`
	Author     string `col:"author" validate:"required,notblank,max=255"`
	ISBN13     string `col:"isbn13" validate:"required,notblank,len=13"`
	PageCount  string `col:"page_count" validate:"omitempty,integer,at_least=1"`
	BookTags   string `col:"book_tags"`
	AuthorTags string `col:"author_tags"`
}

// BookRowInput is a row that passed validation.
type BookRowInput struct {
	Title      string
	Author     string
	ISBN13     string
	PageCount  *int
	BookTags   string
	AuthorTags string
}

// RowValidator checks import rows before anything is written.
type RowValidator struct {
	v *validator.Validate
}

// NewRowValidator builds a validator with the import-specific rules
// registered.
func NewRowValidator() *RowValidator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("col"); name != "" {
			return name
		}
		return fld.Name
	})

	// Registration only fails for malformed tag names.
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	_ = v.RegisterValidation("integer", func(fl validator.FieldLevel) bool {
		_, err := strconv.Atoi(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("at_least", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Field().String())
		if err != nil {
			return false
		}
		floor, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return n >= floor
	})

	return &RowValidator{v: v}
}

var defaultRowValidator = NewRowValidator()

// ValidateBookRow validates row with the shared validator.
func ValidateBookRow(row importers.Row) (*BookRowInput, error) {
	return defaultRowValidator.Validate(row)
}

// Validate returns the parsed input or a *ValidationError describing the
// first violation.
func (rv *RowValidator) Validate(row importers.Row) (*BookRowInput, error) {
	candidate := bookRow{
		Title:      row[ColumnTitle],
		Author:     row[ColumnAuthor],
		ISBN13:     row[ColumnISBN13],
		PageCount:  row[ColumnPageCount],
		BookTags:   row[ColumnBookTags],
		AuthorTags: row[ColumnAuthorTags],
	}

	if err := rv.v.Struct(candidate); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			return nil, err
		}
		first := fieldErrs[0]
		return nil, &ValidationError{Field: first.Field(), Message: friendlyMessage(first)}
	}

	input := &BookRowInput{
		Title:      candidate.Title,
		Author:     candidate.Author,
		ISBN13:     candidate.ISBN13,
		BookTags:   candidate.BookTags,
		AuthorTags: candidate.AuthorTags,
	}
	if candidate.PageCount != "" {
		n, _ := strconv.Atoi(candidate.PageCount)
		input.PageCount = &n
	}
	return input, nil
}

func friendlyMessage(e validator.FieldError) string {
	attr := strings.ReplaceAll(e.Field(), "_", " ")
	switch e.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("The %s field is required.", attr)
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", attr, e.Param())
	case "len":
		return fmt.Sprintf("The %s field must be %s characters.", attr, e.Param())
	case "integer":
		return fmt.Sprintf("The %s field must be an integer.", attr)
	case "at_least":
		return fmt.Sprintf("The %s field must be at least %s.", attr, e.Param())
	default:
		return fmt.Sprintf("The %s field is invalid.", attr)
	}
}
