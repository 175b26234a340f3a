// Package project owns the lifecycle of projects: creation, deletion, and
// status reporting. It composes the port pool, the task registry, and the
// graph-database collaborator, and drives each project through its status
// state machine with monotonic writes.
package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/graphbio/genograph/internal/graphdb"
	"github.com/graphbio/genograph/internal/pool"
	"github.com/graphbio/genograph/internal/store"
	"github.com/graphbio/genograph/internal/wire"
)

// badControlSyntax is the sentinel for a malformed DB-control request,
// distinct from the generic "-1" so clients can tell a syntax slip from a
// missing project.
const badControlSyntax = "-5"

// Manager creates, deletes, and inspects projects.
type Manager struct {
	store       store.Store
	pool        *pool.Manager
	provisioner graphdb.Provisioner
	runner      graphdb.Runner

	projectsDir string
	deleteGrace time.Duration
	logf        func(format string, args ...interface{})
}

// Options configures a Manager.
type Options struct {
	// ProjectsDir is the directory that holds one subdirectory per project.
	ProjectsDir string
	// DeleteGrace is how long to wait after a successful instance stop
	// before the project directory is removed, giving the external process
	// time to fully exit.
	DeleteGrace time.Duration
	Logf        func(format string, args ...interface{})
}

// NewManager returns a project manager over the given collaborators.
func NewManager(st store.Store, pm *pool.Manager, prov graphdb.Provisioner, run graphdb.Runner, opts Options) *Manager {
	if opts.Logf == nil {
		opts.Logf = func(string, ...interface{}) {}
	}
	return &Manager{
		store:       st,
		pool:        pm,
		provisioner: prov,
		runner:      run,
		projectsDir: opts.ProjectsDir,
		deleteGrace: opts.DeleteGrace,
		logf:        opts.Logf,
	}
}

// Dir returns the on-disk directory of a project.
func (m *Manager) Dir(id int64) string {
	return filepath.Join(m.projectsDir, strconv.FormatInt(id, 10))
}

// Create creates a new project and provisions its private database
// instance. The new id is handed to reply as soon as the record exists, so
// the caller can start polling status while provisioning continues. Any
// later failure releases the leased ports, removes the partial directory,
// and leaves the record in INIT_FAILED.
func (m *Manager) Create(ctx context.Context, name string, reply func(string)) {
	id, err := m.store.CreateProject(ctx, name)
	if err != nil {
		m.logf("project: create %q: %v", name, err)
		reply(wire.ReplyInvalid)
		return
	}
	reply(strconv.FormatInt(id, 10))

	if err := m.provision(ctx, id); err != nil {
		m.logf("project: provisioning %d failed: %v", id, err)
		if err := m.store.SetProjectStatus(ctx, id, store.StatusInitFailed); err != nil {
			m.logf("project: marking %d INIT_FAILED: %v", id, err)
		}
	}
}

func (m *Manager) provision(ctx context.Context, id int64) error {
	ports, err := m.pool.LeasePair(ctx, id)
	if err != nil {
		return err
	}

	dir := m.Dir(id)
	fail := func(err error) error {
		// Compensating cleanup: nothing of a failed provisioning run stays
		// behind except the INIT_FAILED record.
		if relErr := m.pool.ReleasePair(ctx, ports); relErr != nil {
			m.logf("project: releasing ports of failed project %d: %v", id, relErr)
		}
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			m.logf("project: removing partial dir of project %d: %v", id, rmErr)
		}
		return err
	}

	for _, sub := range []string{"Files", "CSV", "BlastDB"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fail(fmt.Errorf("create project dirs: %w", err))
		}
	}
	if err := m.provisioner.Provision(ctx, dir, ports.Bolt, ports.HTTP); err != nil {
		return fail(err)
	}
	if err := m.store.SetProjectPorts(ctx, id, ports.Bolt, ports.HTTP); err != nil {
		return fail(err)
	}
	if err := m.store.SetProjectStatus(ctx, id, store.StatusInitSuccess); err != nil {
		return fail(err)
	}
	return nil
}

// Delete removes a project. The project's instance is stopped first; if the
// stop does not report success the deletion is aborted with "-1" and
// nothing — status, tasks, ports, files — is touched, since the instance
// may still be serving traffic. On success the reply is the project id,
// sent before the slow file cleanup begins.
func (m *Manager) Delete(ctx context.Context, rawID string, reply func(string)) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		reply(wire.ReplyInvalid)
		return
	}
	proj, err := m.store.GetProject(ctx, id)
	if err != nil {
		reply(wire.ReplyInvalid)
		return
	}

	dir := m.Dir(id)
	if err := m.runner.Stop(ctx, dir); err != nil {
		m.logf("project: stop of %d failed, aborting deletion: %v", id, err)
		reply(wire.ReplyInvalid)
		return
	}
	reply(rawID)

	// Tasks go with the record.
	if err := m.store.DeleteProject(ctx, id); err != nil {
		m.logf("project: deleting record %d: %v", id, err)
	}
	if proj.BoltPort != nil {
		if err := m.pool.Release(ctx, *proj.BoltPort); err != nil {
			m.logf("project: releasing bolt port of %d: %v", id, err)
		}
	}
	if proj.HTTPPort != nil {
		if err := m.pool.Release(ctx, *proj.HTTPPort); err != nil {
			m.logf("project: releasing http port of %d: %v", id, err)
		}
	}

	// Give the stopped instance time to fully exit before its files go.
	time.Sleep(m.deleteGrace)
	if err := os.RemoveAll(dir); err != nil {
		m.logf("project: removing dir of %d: %v", id, err)
	}
}

// Info returns the status of one project, or a listing of every project
// (one "name\tid\tstatus" line per project, ordered by name) when rawID is
// empty. An unknown id yields "-1".
func (m *Manager) Info(ctx context.Context, rawID string) string {
	if rawID != "" {
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			return wire.ReplyInvalid
		}
		proj, err := m.store.GetProject(ctx, id)
		if err != nil {
			return wire.ReplyInvalid
		}
		return proj.Status
	}

	projects, err := m.store.ListProjects(ctx)
	if err != nil {
		m.logf("project: listing: %v", err)
		return wire.ReplyInvalid
	}
	lines := make([]string, 0, len(projects))
	for _, p := range projects {
		lines = append(lines, strings.Join([]string{p.Name, strconv.FormatInt(p.ID, 10), p.Status}, "\t"))
	}
	return strings.Join(lines, "\n")
}

// ControlDB serves the DABA command: start, stop, or query the project's
// private database instance. Start and stop acknowledge immediately and
// flip the project status only if the control command succeeds.
func (m *Manager) ControlDB(ctx context.Context, args []string, reply func(string)) {
	if len(args) != 2 {
		reply(badControlSyntax)
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		reply(badControlSyntax)
		return
	}
	dir := m.Dir(id)

	switch args[1] {
	case "START":
		reply("Starting Project DB")
		if err := m.runner.Start(ctx, dir); err != nil {
			m.logf("project: start of %d failed: %v", id, err)
			m.setStatus(ctx, id, store.StatusDBStartFailed)
			return
		}
		m.setStatus(ctx, id, store.StatusDBRunning)
	case "STOP":
		reply("Stopping Project DB")
		if err := m.runner.Stop(ctx, dir); err != nil {
			m.logf("project: stop of %d failed: %v", id, err)
			return
		}
		m.setStatus(ctx, id, store.StatusDBStopped)
	case "STATUS":
		if err := m.runner.Status(ctx, dir); err != nil {
			reply("Not running")
			return
		}
		reply("Running")
	default:
		reply(badControlSyntax)
	}
}

func (m *Manager) setStatus(ctx context.Context, id int64, status string) {
	if err := m.store.SetProjectStatus(ctx, id, status); err != nil {
		m.logf("project: setting status of %d to %s: %v", id, status, err)
	}
}
