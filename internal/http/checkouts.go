package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/services"
)

type CheckoutsController struct {
	loans LoanService
}

func NewCheckoutsController(loans LoanService) *CheckoutsController {
	return &CheckoutsController{loans: loans}
}

// Checkout handles POST /api/books/:id/checkout.
func (cc *CheckoutsController) Checkout(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	checkout, err := cc.loans.Checkout(c.Request.Context(), GetUserID(c), bookID)
	switch {
	case err == nil:
		respondCreated(c, checkout)
	case errors.Is(err, services.ErrBookNotFound):
		respondNotFound(c, "book")
	case errors.Is(err, services.ErrAlreadyCheckedOut):
		respondFieldError(c, http.StatusConflict, CodeConflict, "checkout", err.Error())
	default:
		respondInternalError(c, err, "checkout")
	}
}

// Return handles POST /api/checkouts/:id/return.
func (cc *CheckoutsController) Return(c *gin.Context) {
	checkoutID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	checkout, err := cc.loans.Return(c.Request.Context(), GetUserID(c), checkoutID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, checkout)
	case errors.Is(err, services.ErrCheckoutNotFound):
		respondNotFound(c, "checkout")
	case errors.Is(err, services.ErrNotBorrower):
		respondFieldError(c, http.StatusForbidden, CodeForbidden, "return", err.Error())
	case errors.Is(err, services.ErrAlreadyReturned):
		respondFieldError(c, http.StatusConflict, CodeConflict, "return", err.Error())
	default:
		respondInternalError(c, err, "return")
	}
}

// ListMine handles GET /api/checkouts.
func (cc *CheckoutsController) ListMine(c *gin.Context) {
	checkouts, err := cc.loans.ListForUser(c.Request.Context(), GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "list checkouts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkouts": checkouts, "count": len(checkouts)})
}
