// Package sqlite implements the store interface using SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/graphbio/genograph/internal/store"

	// Import SQLite driver
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	bolt_port   INTEGER,
	http_port   INTEGER,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS ports (
	nr          INTEGER PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'inactive' CHECK (status IN ('active', 'inactive')),
	project_id  INTEGER REFERENCES projects(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id  INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	description TEXT NOT NULL,
	status      TEXT NOT NULL,
	results     TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
CREATE INDEX IF NOT EXISTS idx_ports_status ON ports(status);
`

// SQLiteStore implements store.Store on a single SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	closed atomic.Bool
}

var _ store.Store = (*SQLiteStore)(nil)

// New opens (or creates) the main database at path. ":memory:" opens a
// shared in-memory database, which keeps all pooled connections on the same
// data set.
func New(path string) (*SQLiteStore, error) {
	dbPath := path
	if path == ":memory:" {
		dbPath = "file::memory:?cache=shared"
	}

	if !strings.Contains(dbPath, ":memory:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// WAL for concurrent handler threads, busy_timeout so parallel writers
	// wait for locks instead of failing, foreign keys for task ownership.
	connStr := dbPath
	if strings.Contains(dbPath, "?") {
		connStr += "&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite"
	} else {
		connStr += "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: path}, nil
}

// Path returns the database path this store was opened with.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close closes the underlying database. Safe to call more than once.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// SyncPorts reconciles the port table with the configured universe. New
// ports are added as inactive; tracked ports missing from the configuration
// are removed unless they are active, so a live project never loses its
// database port to a config change.
func (s *SQLiteStore) SyncPorts(ctx context.Context, configured []int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sync ports: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, nr := range configured {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO ports (nr, status) VALUES (?, 'inactive')`, nr); err != nil {
			return fmt.Errorf("sync ports: insert %d: %w", nr, err)
		}
	}

	query := `DELETE FROM ports WHERE status != 'active'`
	args := make([]interface{}, 0, len(configured))
	if len(configured) > 0 {
		placeholders := strings.Repeat("?,", len(configured))
		query += ` AND nr NOT IN (` + placeholders[:len(placeholders)-1] + `)`
		for _, nr := range configured {
			args = append(args, nr)
		}
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sync ports: prune: %w", err)
	}

	return tx.Commit()
}

// LeasePort atomically claims one inactive port for projectID. The claim is
// a conditional update that only succeeds while the port is still inactive;
// a lost race simply retries on the next candidate. Returns
// store.ErrPoolExhausted when no inactive port remains.
func (s *SQLiteStore) LeasePort(ctx context.Context, projectID int64) (int, error) {
	for {
		var nr int
		err := s.db.QueryRowContext(ctx,
			`SELECT nr FROM ports WHERE status = 'inactive' ORDER BY nr LIMIT 1`).Scan(&nr)
		if err == sql.ErrNoRows {
			return 0, store.ErrPoolExhausted
		}
		if err != nil {
			return 0, fmt.Errorf("lease port: %w", err)
		}

		res, err := s.db.ExecContext(ctx,
			`UPDATE ports SET status = 'active', project_id = ? WHERE nr = ? AND status = 'inactive'`,
			projectID, nr)
		if err != nil {
			return 0, fmt.Errorf("lease port %d: %w", nr, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("lease port %d: %w", nr, err)
		}
		if affected == 1 {
			return nr, nil
		}
		// Another handler claimed this port between the select and the
		// update. Retry with the next candidate.
	}
}

// ReleasePort returns a port to the pool and clears its project
// association. Idempotent if the port is already inactive or untracked.
func (s *SQLiteStore) ReleasePort(ctx context.Context, nr int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE ports SET status = 'inactive', project_id = NULL WHERE nr = ?`, nr)
	if err != nil {
		return fmt.Errorf("release port %d: %w", nr, err)
	}
	return nil
}

// ListPorts returns every tracked port ordered by number.
func (s *SQLiteStore) ListPorts(ctx context.Context) ([]store.Port, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT nr, status, project_id FROM ports ORDER BY nr`)
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	defer rows.Close()

	var ports []store.Port
	for rows.Next() {
		var p store.Port
		var projectID sql.NullInt64
		if err := rows.Scan(&p.Nr, &p.Status, &projectID); err != nil {
			return nil, fmt.Errorf("list ports: scan: %w", err)
		}
		if projectID.Valid {
			p.ProjectID = &projectID.Int64
		}
		ports = append(ports, p)
	}
	return ports, rows.Err()
}

// CreateProject inserts a new project record in INIT and returns its id.
func (s *SQLiteStore) CreateProject(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (name, status) VALUES (?, ?)`, name, store.StatusInit)
	if err != nil {
		return 0, fmt.Errorf("create project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create project: %w", err)
	}
	return id, nil
}

// GetProject returns one project or store.ErrNotFound.
func (s *SQLiteStore) GetProject(ctx context.Context, id int64) (*store.Project, error) {
	var p store.Project
	var boltPort, httpPort sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, bolt_port, http_port FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Status, &boltPort, &httpPort)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}
	if boltPort.Valid {
		nr := int(boltPort.Int64)
		p.BoltPort = &nr
	}
	if httpPort.Valid {
		nr := int(httpPort.Int64)
		p.HTTPPort = &nr
	}
	return &p, nil
}

// ListProjects returns all projects ordered by name.
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]store.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, status, bolt_port, http_port FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []store.Project
	for rows.Next() {
		var p store.Project
		var boltPort, httpPort sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Name, &p.Status, &boltPort, &httpPort); err != nil {
			return nil, fmt.Errorf("list projects: scan: %w", err)
		}
		if boltPort.Valid {
			nr := int(boltPort.Int64)
			p.BoltPort = &nr
		}
		if httpPort.Valid {
			nr := int(httpPort.Int64)
			p.HTTPPort = &nr
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// SetProjectStatus writes the project's status field.
func (s *SQLiteStore) SetProjectStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set project %d status: %w", id, err)
	}
	return requireAffected(res, fmt.Sprintf("project %d", id))
}

// SetProjectPorts records the two leased ports on the project.
func (s *SQLiteStore) SetProjectPorts(ctx context.Context, id int64, boltPort, httpPort int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET bolt_port = ?, http_port = ? WHERE id = ?`, boltPort, httpPort, id)
	if err != nil {
		return fmt.Errorf("set project %d ports: %w", id, err)
	}
	return requireAffected(res, fmt.Sprintf("project %d", id))
}

// DeleteProject removes the project record. Its tasks go with it via the
// foreign key cascade.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project %d: %w", id, err)
	}
	return requireAffected(res, fmt.Sprintf("project %d", id))
}

// CreateTask inserts a new task under projectID with status "started".
func (s *SQLiteStore) CreateTask(ctx context.Context, projectID int64, description string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (project_id, description, status) VALUES (?, ?, ?)`,
		projectID, description, store.TaskStarted)
	if err != nil {
		return 0, fmt.Errorf("create task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create task: %w", err)
	}
	return id, nil
}

// GetTask returns one task scoped to its owning project, or
// store.ErrNotFound when the id is unknown or owned by another project.
func (s *SQLiteStore) GetTask(ctx context.Context, projectID, taskID int64) (*store.Task, error) {
	var t store.Task
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, description, status, results FROM tasks WHERE id = ? AND project_id = ?`,
		taskID, projectID).
		Scan(&t.ID, &t.ProjectID, &t.Description, &t.Status, &t.Results)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", taskID, err)
	}
	return &t, nil
}

// SetTaskStatus writes a task's status string.
func (s *SQLiteStore) SetTaskStatus(ctx context.Context, projectID, taskID int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ? WHERE id = ? AND project_id = ?`, status, taskID, projectID)
	if err != nil {
		return fmt.Errorf("set task %d status: %w", taskID, err)
	}
	return requireAffected(res, fmt.Sprintf("task %d", taskID))
}

// SetTaskResults writes a task's results payload. A later write overwrites.
func (s *SQLiteStore) SetTaskResults(ctx context.Context, projectID, taskID int64, results string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET results = ? WHERE id = ? AND project_id = ?`, results, taskID, projectID)
	if err != nil {
		return fmt.Errorf("set task %d results: %w", taskID, err)
	}
	return requireAffected(res, fmt.Sprintf("task %d", taskID))
}

// DeleteTask removes one task scoped to its owning project.
func (s *SQLiteStore) DeleteTask(ctx context.Context, projectID, taskID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND project_id = ?`, taskID, projectID)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", taskID, err)
	}
	return requireAffected(res, fmt.Sprintf("task %d", taskID))
}

// ListTasks returns all tasks of a project ordered by id.
func (s *SQLiteStore) ListTasks(ctx context.Context, projectID int64) ([]store.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, description, status, results FROM tasks WHERE project_id = ? ORDER BY id`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []store.Task
	for rows.Next() {
		var t store.Task
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Description, &t.Status, &t.Results); err != nil {
			return nil, fmt.Errorf("list tasks: scan: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func requireAffected(res sql.Result, what string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
