// Package task implements the registry of asynchronous jobs. Long-running
// operations create a task, push progress into it, and attach results; user
// apps poll task status over unrelated connections and fetch results once.
package task

import (
	"context"
	"strconv"

	"github.com/graphbio/genograph/internal/store"
)

// Reply sentinels of the task protocol. Reads report failure explicitly;
// status and result writes are fire-and-forget progress telemetry and must
// never fail the operation that emits them.
const (
	NotFound      = "-1"
	UnknownStatus = "Unknown"
	Deleted       = "Deleted"
)

// Registry manages task records in the main database.
type Registry struct {
	store store.Store
	logf  func(format string, args ...interface{})
}

// NewRegistry returns a task registry over the given store. logf receives
// swallowed write failures; it may be nil.
func NewRegistry(st store.Store, logf func(format string, args ...interface{})) *Registry {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Registry{store: st, logf: logf}
}

// Define creates a new task under projectID with status "started" and
// returns its id as a string, or "-1" on any store failure. It never
// returns an error: callers are mid-operation and a task id is the only
// thing they can forward to the user.
func (r *Registry) Define(ctx context.Context, projectID int64, description string) string {
	id, err := r.store.CreateTask(ctx, projectID, description)
	if err != nil {
		r.logf("task: define failed for project %d: %v", projectID, err)
		return NotFound
	}
	return strconv.FormatInt(id, 10)
}

// SetStatus updates a task's status string. Best effort: a failed write is
// logged and dropped, never reported to the caller.
func (r *Registry) SetStatus(ctx context.Context, projectID int64, taskID, status string) {
	id, err := strconv.ParseInt(taskID, 10, 64)
	if err != nil {
		r.logf("task: set status: bad task id %q: %v", taskID, err)
		return
	}
	if err := r.store.SetTaskStatus(ctx, projectID, id, status); err != nil {
		r.logf("task: set status failed for task %s: %v", taskID, err)
	}
}

// AddResults attaches results to a task. Best effort, same as SetStatus; a
// later call overwrites.
func (r *Registry) AddResults(ctx context.Context, projectID int64, taskID, results string) {
	id, err := strconv.ParseInt(taskID, 10, 64)
	if err != nil {
		r.logf("task: add results: bad task id %q: %v", taskID, err)
		return
	}
	if err := r.store.SetTaskResults(ctx, projectID, id, results); err != nil {
		r.logf("task: add results failed for task %s: %v", taskID, err)
	}
}

// Status returns the status of each requested task. A task that cannot be
// found (wrong project, deleted, never existed, unparseable id) contributes
// the literal "Unknown"; one bad id never fails the whole batch.
func (r *Registry) Status(ctx context.Context, projectID int64, taskIDs []string) []string {
	statuses := make([]string, 0, len(taskIDs))
	for _, taskID := range taskIDs {
		id, err := strconv.ParseInt(taskID, 10, 64)
		if err != nil {
			statuses = append(statuses, UnknownStatus)
			continue
		}
		t, err := r.store.GetTask(ctx, projectID, id)
		if err != nil {
			statuses = append(statuses, UnknownStatus)
			continue
		}
		statuses = append(statuses, t.Status)
	}
	return statuses
}

// Result returns a task's results and deletes the task: results are
// single-fetch, a second call on the same id returns "-1".
func (r *Registry) Result(ctx context.Context, projectID int64, taskID string) string {
	id, err := strconv.ParseInt(taskID, 10, 64)
	if err != nil {
		return NotFound
	}
	t, err := r.store.GetTask(ctx, projectID, id)
	if err != nil {
		return NotFound
	}
	if err := r.store.DeleteTask(ctx, projectID, id); err != nil {
		r.logf("task: delete after fetch failed for task %s: %v", taskID, err)
	}
	return t.Results
}

// Delete removes a task without fetching its results. Returns "Deleted" on
// success and "-1" when the task cannot be found.
func (r *Registry) Delete(ctx context.Context, projectID int64, taskID string) string {
	id, err := strconv.ParseInt(taskID, 10, 64)
	if err != nil {
		return NotFound
	}
	if err := r.store.DeleteTask(ctx, projectID, id); err != nil {
		return NotFound
	}
	return Deleted
}

// List returns all tasks of a project.
func (r *Registry) List(ctx context.Context, projectID int64) ([]store.Task, error) {
	return r.store.ListTasks(ctx, projectID)
}
