package http

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMaintenance struct {
	ran []string
}

func (m *fakeMaintenance) RunNow(_ context.Context, name string) (string, error) {
	if name != "orphan_tags" {
		return "", errors.New("unknown maintenance job: " + name)
	}
	m.ran = append(m.ran, name)
	return "task-7", nil
}

func (m *fakeMaintenance) NextRuns() map[string]time.Time {
	return map[string]time.Time{"orphan_tags": time.Date(2024, 3, 2, 3, 30, 0, 0, time.UTC)}
}

func TestTasksController_GetTaskStatus(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(f.owner, http.MethodGet, "/api/tasks/task-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"task-1","status":"pending"}`, w.Body.String())

	w = f.do(f.owner, http.MethodGet, "/api/tasks/missing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"missing","status":"not_found"}`, w.Body.String())
}

func TestTasksController_Maintenance(t *testing.T) {
	t.Run("runs a known job", func(t *testing.T) {
		f := newAPIFixture(t)
		maintenance := &fakeMaintenance{}
		f.cfg.Maintenance = maintenance

		w := f.do(f.owner, http.MethodPost, "/api/maintenance/orphan_tags/run", nil)
		require.Equal(t, http.StatusAccepted, w.Code)
		assert.JSONEq(t, `{"message":"task enqueued","data":{"task_id":"task-7","job":"orphan_tags"}}`, w.Body.String())
		assert.Equal(t, []string{"orphan_tags"}, maintenance.ran)

		w = f.do(f.owner, http.MethodGet, "/api/maintenance", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"jobs":{"orphan_tags":"2024-03-02T03:30:00Z"}}`, w.Body.String())
	})

	t.Run("unknown job", func(t *testing.T) {
		f := newAPIFixture(t)
		f.cfg.Maintenance = &fakeMaintenance{}

		w := f.do(f.owner, http.MethodPost, "/api/maintenance/nope/run", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("scheduler disabled", func(t *testing.T) {
		f := newAPIFixture(t)

		w := f.do(f.owner, http.MethodPost, "/api/maintenance/orphan_tags/run", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		w = f.do(f.owner, http.MethodGet, "/api/maintenance", nil)
		assert.JSONEq(t, `{"jobs":{}}`, w.Body.String())
	})
}

func TestTaskStatusToString(t *testing.T) {
	assert.Equal(t, "running", taskStatusToString(backlite.TaskStatusRunning))
	assert.Equal(t, "success", taskStatusToString(backlite.TaskStatusSuccess))
	assert.Equal(t, "failure", taskStatusToString(backlite.TaskStatusFailure))
}
