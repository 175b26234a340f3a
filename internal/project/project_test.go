package project

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/graphbio/genograph/internal/graphdb"
	"github.com/graphbio/genograph/internal/pool"
	"github.com/graphbio/genograph/internal/store"
	"github.com/graphbio/genograph/internal/store/sqlite"
)

type fixture struct {
	store *sqlite.SQLiteStore
	pool  *pool.Manager
	fake  *graphdb.Fake
	mgr   *Manager
}

func newFixture(t *testing.T, ports []int) *fixture {
	t.Helper()
	st, err := sqlite.New(filepath.Join(t.TempDir(), "main.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	pm := pool.NewManager(st)
	if err := pm.Sync(context.Background(), ports); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	fake := &graphdb.Fake{}
	mgr := NewManager(st, pm, fake, fake, Options{
		ProjectsDir: filepath.Join(t.TempDir(), "Projects"),
		DeleteGrace: 0,
		Logf:        t.Logf,
	})
	return &fixture{store: st, pool: pm, fake: fake, mgr: mgr}
}

func createProject(t *testing.T, f *fixture, name string) int64 {
	t.Helper()
	var replies []string
	f.mgr.Create(context.Background(), name, func(s string) { replies = append(replies, s) })
	if len(replies) != 1 {
		t.Fatalf("Create sent %d replies, want 1", len(replies))
	}
	id, err := strconv.ParseInt(replies[0], 10, 64)
	if err != nil {
		t.Fatalf("Create reply = %q, want a project id", replies[0])
	}
	return id
}

func TestCreateProvisionsAndSucceeds(t *testing.T) {
	f := newFixture(t, []int{7687, 7688})
	ctx := context.Background()

	id := createProject(t, f, "barley pan-genome")

	proj, err := f.store.GetProject(ctx, id)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if proj.Status != store.StatusInitSuccess {
		t.Errorf("status = %q, want INIT_SUCCESS", proj.Status)
	}
	if proj.BoltPort == nil || proj.HTTPPort == nil {
		t.Fatalf("ports not recorded: %+v", proj)
	}
	if *proj.BoltPort == *proj.HTTPPort {
		t.Errorf("bolt and http port collide: %+v", proj)
	}
	if len(f.fake.Provisioned) != 1 {
		t.Errorf("provision calls = %d, want 1", len(f.fake.Provisioned))
	}
	for _, sub := range []string{"Files", "CSV", "BlastDB"} {
		if _, err := os.Stat(filepath.Join(f.mgr.Dir(id), sub)); err != nil {
			t.Errorf("missing project subdir %s: %v", sub, err)
		}
	}
}

func TestCreateFailureCleansUp(t *testing.T) {
	f := newFixture(t, []int{7687, 7688})
	f.fake.FailProvision = true
	ctx := context.Background()

	id := createProject(t, f, "doomed")

	proj, err := f.store.GetProject(ctx, id)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if proj.Status != store.StatusInitFailed {
		t.Errorf("status = %q, want INIT_FAILED", proj.Status)
	}

	// Both ports are back in the pool and the partial directory is gone.
	ports, _ := f.store.ListPorts(ctx)
	for _, p := range ports {
		if p.Status != store.PortInactive {
			t.Errorf("port %d still %s after failed create", p.Nr, p.Status)
		}
	}
	if _, err := os.Stat(f.mgr.Dir(id)); !os.IsNotExist(err) {
		t.Errorf("partial project dir survived failed create")
	}
}

func TestCreateExhaustedPoolStillReturnsID(t *testing.T) {
	// The id goes out before provisioning, so the caller can poll the
	// INIT_FAILED status even when no port was available.
	f := newFixture(t, nil)
	ctx := context.Background()

	id := createProject(t, f, "portless")
	proj, _ := f.store.GetProject(ctx, id)
	if proj.Status != store.StatusInitFailed {
		t.Errorf("status = %q, want INIT_FAILED", proj.Status)
	}
}

func TestDeleteReleasesEverything(t *testing.T) {
	f := newFixture(t, []int{7687, 7688})
	ctx := context.Background()

	id := createProject(t, f, "short-lived")
	rawID := strconv.FormatInt(id, 10)

	var replies []string
	f.mgr.Delete(ctx, rawID, func(s string) { replies = append(replies, s) })
	if len(replies) != 1 || replies[0] != rawID {
		t.Fatalf("Delete replies = %v, want [%s]", replies, rawID)
	}

	if _, err := f.store.GetProject(ctx, id); err == nil {
		t.Error("project record survived deletion")
	}
	ports, _ := f.store.ListPorts(ctx)
	for _, p := range ports {
		if p.Status != store.PortInactive {
			t.Errorf("port %d still %s after delete", p.Nr, p.Status)
		}
	}
	if _, err := os.Stat(f.mgr.Dir(id)); !os.IsNotExist(err) {
		t.Error("project dir survived deletion")
	}
	if len(f.fake.Stopped) != 1 {
		t.Errorf("stop calls = %d, want 1", len(f.fake.Stopped))
	}
}

func TestDeleteAbortsWhenStopFails(t *testing.T) {
	f := newFixture(t, []int{7687, 7688})
	ctx := context.Background()

	id := createProject(t, f, "still-running")
	rawID := strconv.FormatInt(id, 10)
	taskID, err := f.store.CreateTask(ctx, id, "long cluster run")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	f.fake.FailStop = true
	var replies []string
	f.mgr.Delete(ctx, rawID, func(s string) { replies = append(replies, s) })
	if len(replies) != 1 || replies[0] != "-1" {
		t.Fatalf("Delete replies = %v, want [-1]", replies)
	}

	// Nothing may have been touched: status, tasks, ports, files.
	proj, err := f.store.GetProject(ctx, id)
	if err != nil {
		t.Fatalf("project record gone after aborted delete: %v", err)
	}
	if proj.Status != store.StatusInitSuccess {
		t.Errorf("status = %q, want untouched INIT_SUCCESS", proj.Status)
	}
	if _, err := f.store.GetTask(ctx, id, taskID); err != nil {
		t.Errorf("task gone after aborted delete: %v", err)
	}
	ports, _ := f.store.ListPorts(ctx)
	for _, p := range ports {
		if p.Status != store.PortActive {
			t.Errorf("port %d released by aborted delete", p.Nr)
		}
	}
	if _, err := os.Stat(f.mgr.Dir(id)); err != nil {
		t.Errorf("project dir removed by aborted delete: %v", err)
	}
}

func TestDeleteUnknownProject(t *testing.T) {
	f := newFixture(t, nil)
	var replies []string
	f.mgr.Delete(context.Background(), "4242", func(s string) { replies = append(replies, s) })
	if len(replies) != 1 || replies[0] != "-1" {
		t.Errorf("Delete replies = %v, want [-1]", replies)
	}
}

func TestInfoSingleAndListing(t *testing.T) {
	f := newFixture(t, []int{7687, 7688, 7689, 7690})
	ctx := context.Background()

	idB := createProject(t, f, "beta")
	idA := createProject(t, f, "alpha")

	if got := f.mgr.Info(ctx, strconv.FormatInt(idA, 10)); got != store.StatusInitSuccess {
		t.Errorf("Info(single) = %q, want INIT_SUCCESS", got)
	}
	if got := f.mgr.Info(ctx, "999"); got != "-1" {
		t.Errorf("Info(unknown) = %q, want -1", got)
	}
	if got := f.mgr.Info(ctx, "not-a-number"); got != "-1" {
		t.Errorf("Info(garbage) = %q, want -1", got)
	}

	listing := f.mgr.Info(ctx, "")
	lines := strings.Split(listing, "\n")
	if len(lines) != 2 {
		t.Fatalf("listing has %d lines, want 2:\n%s", len(lines), listing)
	}
	// Ordered by name: alpha before beta.
	if !strings.HasPrefix(lines[0], "alpha\t"+strconv.FormatInt(idA, 10)) {
		t.Errorf("lines[0] = %q, want alpha first", lines[0])
	}
	if !strings.HasPrefix(lines[1], "beta\t"+strconv.FormatInt(idB, 10)) {
		t.Errorf("lines[1] = %q, want beta second", lines[1])
	}
}

func TestControlDB(t *testing.T) {
	f := newFixture(t, []int{7687, 7688})
	ctx := context.Background()

	id := createProject(t, f, "controlled")
	rawID := strconv.FormatInt(id, 10)

	reply := func(replies *[]string) func(string) {
		return func(s string) { *replies = append(*replies, s) }
	}

	var r []string
	f.mgr.ControlDB(ctx, []string{rawID, "START"}, reply(&r))
	if len(r) != 1 || r[0] != "Starting Project DB" {
		t.Fatalf("START replies = %v", r)
	}
	proj, _ := f.store.GetProject(ctx, id)
	if proj.Status != store.StatusDBRunning {
		t.Errorf("status after START = %q, want DB_RUNNING", proj.Status)
	}

	r = nil
	f.mgr.ControlDB(ctx, []string{rawID, "STATUS"}, reply(&r))
	if len(r) != 1 || r[0] != "Running" {
		t.Errorf("STATUS replies = %v, want [Running]", r)
	}

	r = nil
	f.mgr.ControlDB(ctx, []string{rawID, "STOP"}, reply(&r))
	if len(r) != 1 || r[0] != "Stopping Project DB" {
		t.Fatalf("STOP replies = %v", r)
	}
	proj, _ = f.store.GetProject(ctx, id)
	if proj.Status != store.StatusDBStopped {
		t.Errorf("status after STOP = %q, want DB_STOPPED", proj.Status)
	}

	r = nil
	f.mgr.ControlDB(ctx, []string{rawID, "STATUS"}, reply(&r))
	if len(r) != 1 || r[0] != "Not running" {
		t.Errorf("STATUS replies = %v, want [Not running]", r)
	}

	r = nil
	f.mgr.ControlDB(ctx, []string{rawID}, reply(&r))
	if len(r) != 1 || r[0] != "-5" {
		t.Errorf("bad syntax replies = %v, want [-5]", r)
	}
}

func TestControlDBStartFailure(t *testing.T) {
	f := newFixture(t, []int{7687, 7688})
	ctx := context.Background()

	id := createProject(t, f, "wont-start")
	f.fake.FailStart = true

	var r []string
	f.mgr.ControlDB(ctx, []string{strconv.FormatInt(id, 10), "START"}, func(s string) { r = append(r, s) })
	proj, _ := f.store.GetProject(ctx, id)
	if proj.Status != store.StatusDBStartFailed {
		t.Errorf("status = %q, want DB_START_FAILED", proj.Status)
	}
}
