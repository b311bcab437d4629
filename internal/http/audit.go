package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/entities"
)

type AuditController struct {
	events AuditReader
}

func NewAuditController(events AuditReader) *AuditController {
	return &AuditController{events: events}
}

// GetAuditEvents returns the caller's audit events, newest first.
// GET /api/audit?type=import&page=1&limit=25
func (ac *AuditController) GetAuditEvents(c *gin.Context) {
	page, limit := parsePage(c, 25, 100)
	filter := audit.Filter{
		UserID:    GetUserID(c),
		EventType: entities.AuditEventType(c.Query("type")),
	}

	events, total, err := ac.events.GetEvents(filter, limit, (page-1)*limit)
	if err != nil {
		respondInternalError(c, err, "audit events")
		return
	}

	totalPages := (int(total) + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Data:       events,
		Total:      total,
		Limit:      limit,
		Offset:     (page - 1) * limit,
		HasMore:    page < totalPages,
		TotalPages: totalPages,
	})
}
