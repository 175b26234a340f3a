// Package pool manages the fixed universe of graph-database ports that
// projects lease from the main database.
package pool

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/graphbio/genograph/internal/store"
)

// Pair is the two ports every project needs: one bolt (data) port and one
// http (admin) port for its private graph database instance.
type Pair struct {
	Bolt int
	HTTP int
}

// Manager lends ports to projects and reclaims them. All state lives in the
// store; the manager holds no in-process locks and relies on the store's
// atomic claim for exclusivity.
type Manager struct {
	store store.Store
}

// NewManager returns a pool manager over the given store.
func NewManager(st store.Store) *Manager {
	return &Manager{store: st}
}

// Sync reconciles the tracked ports with the configured universe. Idempotent;
// active ports are never dropped even when excluded from configuration.
func (m *Manager) Sync(ctx context.Context, configured []int) error {
	return m.store.SyncPorts(ctx, configured)
}

// Lease claims one inactive port for projectID.
func (m *Manager) Lease(ctx context.Context, projectID int64) (int, error) {
	return m.store.LeasePort(ctx, projectID)
}

// Release returns a port to the pool. Idempotent.
func (m *Manager) Release(ctx context.Context, nr int) error {
	return m.store.ReleasePort(ctx, nr)
}

// LeasePair claims the two ports a project needs. When the second lease
// fails the first is released again, so a half-provisioned project never
// pins a port.
func (m *Manager) LeasePair(ctx context.Context, projectID int64) (Pair, error) {
	bolt, err := m.store.LeasePort(ctx, projectID)
	if err != nil {
		return Pair{}, fmt.Errorf("lease bolt port: %w", err)
	}
	http, err := m.store.LeasePort(ctx, projectID)
	if err != nil {
		if relErr := m.store.ReleasePort(ctx, bolt); relErr != nil {
			return Pair{}, fmt.Errorf("lease http port: %w (rollback of port %d also failed: %v)", err, bolt, relErr)
		}
		return Pair{}, fmt.Errorf("lease http port: %w", err)
	}
	return Pair{Bolt: bolt, HTTP: http}, nil
}

// ReleasePair returns both ports of a pair to the pool.
func (m *Manager) ReleasePair(ctx context.Context, pair Pair) error {
	if err := m.store.ReleasePort(ctx, pair.Bolt); err != nil {
		return err
	}
	return m.store.ReleasePort(ctx, pair.HTTP)
}

// ParsePortRanges expands a configuration string like "7687-7690, 7800" into
// the list of port numbers it denotes. Malformed entries are skipped, as the
// original configuration format tolerated hand-edited lists.
func ParsePortRanges(spec string) []int {
	var ports []int
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(entry, "-"); ok {
			start, err1 := strconv.Atoi(strings.TrimSpace(lo))
			end, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if err1 != nil || err2 != nil || start > end {
				continue
			}
			for nr := start; nr <= end; nr++ {
				ports = append(ports, nr)
			}
			continue
		}
		nr, err := strconv.Atoi(entry)
		if err != nil {
			continue
		}
		ports = append(ports, nr)
	}
	return ports
}
