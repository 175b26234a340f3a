// Package store defines the interface to the main database: the system of
// record for ports, projects, and tasks.
package store

import (
	"context"
	"errors"
)

// Sentinel errors surfaced by Store implementations. Resource exhaustion is
// deliberately distinct from a plain not-found so dispatchers can report it
// instead of letting it surface as an unrelated failure later.
var (
	ErrNotFound      = errors.New("store: record not found")
	ErrPoolExhausted = errors.New("store: no inactive port available")
)

// Port statuses. A port is active exactly while it is leased to a project.
const (
	PortActive   = "active"
	PortInactive = "inactive"
)

// Project statuses. Transitions are monotonic writes; a failed project stays
// inspectable but is never re-entered into an earlier state.
const (
	StatusInit          = "INIT"
	StatusInitSuccess   = "INIT_SUCCESS"
	StatusInitFailed    = "INIT_FAILED"
	StatusDBBuild       = "DB_BUILD"
	StatusDBBuildFailed = "DB_BUILD_FAILED"
	StatusDBRunning     = "DB_RUNNING"
	StatusDBStopped     = "DB_STOPPED"
	StatusDBStartFailed = "DB_START_FAILED"
)

// TaskStarted is the status every new task is created with. Later statuses
// are free-text progress strings written by whatever operation owns the task.
const TaskStarted = "started"

// Port is one entry of the configured port universe.
type Port struct {
	Nr        int
	Status    string
	ProjectID *int64
}

// Project is an isolated unit of work with its own graph database instance.
type Project struct {
	ID       int64
	Name     string
	Status   string
	BoltPort *int
	HTTPPort *int
}

// Task is an asynchronous, pollable job owned by one project.
type Task struct {
	ID          int64
	ProjectID   int64
	Description string
	Status      string
	Results     string
}

// Store is the main-database client handed to every manager at construction.
// Implementations must make LeasePort a single atomic claim: two concurrent
// calls never return the same port while both leases are outstanding.
type Store interface {
	// Ports
	SyncPorts(ctx context.Context, configured []int) error
	LeasePort(ctx context.Context, projectID int64) (int, error)
	ReleasePort(ctx context.Context, nr int) error
	ListPorts(ctx context.Context) ([]Port, error)

	// Projects
	CreateProject(ctx context.Context, name string) (int64, error)
	GetProject(ctx context.Context, id int64) (*Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	SetProjectStatus(ctx context.Context, id int64, status string) error
	SetProjectPorts(ctx context.Context, id int64, boltPort, httpPort int) error
	DeleteProject(ctx context.Context, id int64) error

	// Tasks
	CreateTask(ctx context.Context, projectID int64, description string) (int64, error)
	GetTask(ctx context.Context, projectID, taskID int64) (*Task, error)
	SetTaskStatus(ctx context.Context, projectID, taskID int64, status string) error
	SetTaskResults(ctx context.Context, projectID, taskID int64, results string) error
	DeleteTask(ctx context.Context, projectID, taskID int64) error
	ListTasks(ctx context.Context, projectID int64) ([]Task, error)

	// Lifecycle
	Close() error
}
