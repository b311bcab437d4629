package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type DashboardController struct {
	books BookStore
	tags  TagStore
	loans LoanService
	now   func() time.Time
}

func NewDashboardController(books BookStore, tags TagStore, loans LoanService) *DashboardController {
	return &DashboardController{
		books: books,
		tags:  tags,
		loans: loans,
		now:   time.Now,
	}
}

// Show handles GET /api/dashboard: the caller's checkouts, active first,
// and the whole catalogue with authors, owners, tags and availability.
func (dc *DashboardController) Show(c *gin.Context) {
	userID := GetUserID(c)

	checkouts, err := dc.loans.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondInternalError(c, err, "dashboard checkouts")
		return
	}

	books, err := dc.books.GetAllBooks()
	if err != nil {
		respondInternalError(c, err, "dashboard books")
		return
	}
	if err := dc.tags.LoadBookTags(books); err != nil {
		respondInternalError(c, err, "dashboard tags")
		return
	}

	now := dc.now()
	active, overdue := 0, 0
	for i := range checkouts {
		if checkouts[i].IsActive() {
			active++
		}
		if checkouts[i].IsOverdue(now) {
			overdue++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"checkouts":        checkouts,
		"books":            books,
		"active_checkouts": active,
		"overdue":          overdue,
		"loan_period_days": int(dc.loans.LoanPeriod().Hours() / 24),
	})
}
