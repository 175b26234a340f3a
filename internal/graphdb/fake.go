package graphdb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Fake is an in-memory Provisioner/Runner for tests. It records calls and
// can be told to fail specific operations.
type Fake struct {
	mu sync.Mutex

	FailProvision bool
	FailStart     bool
	FailStop      bool

	Provisioned []string
	Started     []string
	Stopped     []string

	running map[string]bool
}

var (
	_ Provisioner = (*Fake)(nil)
	_ Runner      = (*Fake)(nil)
)

var errFake = errors.New("graphdb: fake failure")

// Provision records the call and creates the instance directory so callers
// can observe (and clean up) on-disk state.
func (f *Fake) Provision(_ context.Context, dir string, boltPort, httpPort int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailProvision {
		return errFake
	}
	if err := os.MkdirAll(filepath.Join(dir, InstanceDirName, "conf"), 0o755); err != nil {
		return err
	}
	f.Provisioned = append(f.Provisioned, dir)
	return nil
}

func (f *Fake) Start(_ context.Context, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailStart {
		return errFake
	}
	if f.running == nil {
		f.running = make(map[string]bool)
	}
	f.running[dir] = true
	f.Started = append(f.Started, dir)
	return nil
}

func (f *Fake) Stop(_ context.Context, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailStop {
		return errFake
	}
	delete(f.running, dir)
	f.Stopped = append(f.Stopped, dir)
	return nil
}

func (f *Fake) Status(_ context.Context, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running[dir] {
		return nil
	}
	return errFake
}
