package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ops-tracker/internal/domain"
)

// Memory is an in-process Store. It backs the unit tests and is good
// enough for single-node deployments that do not need durability.
type Memory struct {
	mu       sync.Mutex
	entities map[string]domain.TrackedEntity
	log      []domain.Transition
	seq      int64
}

func NewMemory() *Memory {
	return &Memory{entities: make(map[string]domain.TrackedEntity)}
}

func (m *Memory) Get(ctx context.Context, id string) (domain.TrackedEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return domain.TrackedEntity{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return e, nil
}

func (m *Memory) Create(ctx context.Context, e domain.TrackedEntity, t *domain.Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[e.ID]; ok {
		return fmt.Errorf("entity %s already exists", e.ID)
	}
	m.entities[e.ID] = e
	m.append(t)
	return nil
}

func (m *Memory) CommitTransition(ctx context.Context, e domain.TrackedEntity, expectedVersion int64, t *domain.Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.entities[e.ID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, e.ID)
	}
	if cur.Version != expectedVersion {
		return fmt.Errorf("%w: entity %s at version %d, expected %d",
			domain.ErrVersionConflict, e.ID, cur.Version, expectedVersion)
	}
	m.entities[e.ID] = e
	m.append(t)
	return nil
}

func (m *Memory) Query(ctx context.Context, f Filter) ([]domain.TrackedEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TrackedEntity
	for _, e := range m.entities {
		if e.TenantID != f.TenantID || e.LocationID != f.LocationID {
			continue
		}
		if !matchKind(f.Kinds, e.Kind) || !matchState(f.States, e.State) {
			continue
		}
		out = append(out, e)
	}
	// Stable result order regardless of map iteration.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Since(ctx context.Context, tenantID, locationID string, afterSeq int64) ([]domain.Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Transition
	for _, t := range m.log {
		if t.Seq > afterSeq && t.TenantID == tenantID && t.LocationID == locationID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Memory) Scopes(ctx context.Context) ([]Scope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[Scope]bool)
	var out []Scope
	for _, t := range m.log {
		sc := Scope{TenantID: t.TenantID, LocationID: t.LocationID}
		if !seen[sc] {
			seen[sc] = true
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TenantID != out[j].TenantID {
			return out[i].TenantID < out[j].TenantID
		}
		return out[i].LocationID < out[j].LocationID
	})
	return out, nil
}

// append assigns the next logical sequence number and records t. The
// caller must hold mu.
func (m *Memory) append(t *domain.Transition) {
	m.seq++
	t.Seq = m.seq
	m.log = append(m.log, *t)
}
