package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
)

// TasksController exposes task status and on-demand maintenance runs.
type TasksController struct {
	queue       TaskQueue
	maintenance MaintenanceRunner
}

// NewTasksController creates the controller. maintenance may be nil when
// the scheduler is disabled.
func NewTasksController(queue TaskQueue, maintenance MaintenanceRunner) *TasksController {
	return &TasksController{queue: queue, maintenance: maintenance}
}

// GetTaskStatus handles GET /api/tasks/:id
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.queue.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": taskStatusToString(status),
	})
}

// ListMaintenance handles GET /api/maintenance and reports the next run of
// every scheduled job.
func (tc *TasksController) ListMaintenance(c *gin.Context) {
	if tc.maintenance == nil {
		c.JSON(http.StatusOK, gin.H{"jobs": map[string]time.Time{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": tc.maintenance.NextRuns()})
}

// RunMaintenance handles POST /api/maintenance/:job/run
func (tc *TasksController) RunMaintenance(c *gin.Context) {
	if tc.maintenance == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "scheduler is not enabled", Code: CodeTasksDisabled})
		return
	}

	job := c.Param("job")
	id, err := tc.maintenance.RunNow(c.Request.Context(), job)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	respondAccepted(c, "task enqueued", gin.H{"task_id": id, "job": job})
}

func taskStatusToString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
