package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ops-tracker/internal/domain"
)

// Schema for the two tracker tables. transitions.seq is the logical
// clock backing the reconciliation channel.
const Schema = `
CREATE TABLE IF NOT EXISTS tracked_entities (
    id                 TEXT PRIMARY KEY,
    kind               TEXT NOT NULL,
    tenant_id          TEXT NOT NULL,
    location_id        TEXT NOT NULL,
    priority           SMALLINT NOT NULL,
    state              TEXT NOT NULL,
    version            BIGINT NOT NULL,
    created_at         TIMESTAMPTZ NOT NULL,
    last_transition_at TIMESTAMPTZ NOT NULL,
    actor_id           TEXT,
    payload            JSONB
);
CREATE INDEX IF NOT EXISTS idx_entities_scope
    ON tracked_entities (tenant_id, location_id, state);

CREATE TABLE IF NOT EXISTS transitions (
    seq         BIGSERIAL PRIMARY KEY,
    entity_id   TEXT NOT NULL,
    tenant_id   TEXT NOT NULL,
    location_id TEXT NOT NULL,
    kind        TEXT NOT NULL,
    from_state  TEXT NOT NULL DEFAULT '',
    to_state    TEXT NOT NULL,
    version     BIGINT NOT NULL,
    actor_id    TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMPTZ NOT NULL,
    UNIQUE (entity_id, version)
);
CREATE INDEX IF NOT EXISTS idx_transitions_scope
    ON transitions (tenant_id, location_id, seq);
`

// Postgres implements Store over a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres { return &Postgres{pool: pool} }

// EnsureSchema creates the tracker tables if they do not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, Schema)
	return err
}

func (p *Postgres) Get(ctx context.Context, id string) (domain.TrackedEntity, error) {
	row := p.pool.QueryRow(ctx, `
SELECT id, kind, tenant_id, location_id, priority, state, version,
       created_at, last_transition_at, COALESCE(actor_id, ''), payload
FROM tracked_entities WHERE id = $1`, id)
	e, err := scanEntity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TrackedEntity{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return e, err
}

func (p *Postgres) Create(ctx context.Context, e domain.TrackedEntity, t *domain.Transition) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO tracked_entities
  (id, kind, tenant_id, location_id, priority, state, version,
   created_at, last_transition_at, actor_id, payload)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NULLIF($10,''),$11)`,
			e.ID, string(e.Kind), e.TenantID, e.LocationID, int16(e.Priority),
			string(e.State), e.Version, e.CreatedAt, e.LastTransitionAt,
			e.ActorID, e.Payload)
		if err != nil {
			return fmt.Errorf("inserting entity: %w", err)
		}
		return appendTransition(ctx, tx, t)
	})
}

func (p *Postgres) CommitTransition(ctx context.Context, e domain.TrackedEntity, expectedVersion int64, t *domain.Transition) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
UPDATE tracked_entities
SET state = $1, version = $2, last_transition_at = $3, actor_id = NULLIF($4,'')
WHERE id = $5 AND version = $6`,
			string(e.State), e.Version, e.LastTransitionAt, e.ActorID,
			e.ID, expectedVersion)
		if err != nil {
			return fmt.Errorf("updating entity: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Conditional update missed: either the id is unknown or
			// someone else moved the version first.
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM tracked_entities WHERE id = $1)`,
				e.ID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("%w: %s", domain.ErrNotFound, e.ID)
			}
			return fmt.Errorf("%w: entity %s, expected version %d",
				domain.ErrVersionConflict, e.ID, expectedVersion)
		}
		return appendTransition(ctx, tx, t)
	})
}

func (p *Postgres) Query(ctx context.Context, f Filter) ([]domain.TrackedEntity, error) {
	q := `
SELECT id, kind, tenant_id, location_id, priority, state, version,
       created_at, last_transition_at, COALESCE(actor_id, ''), payload
FROM tracked_entities
WHERE tenant_id = $1 AND location_id = $2`
	args := []any{f.TenantID, f.LocationID}
	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		args = append(args, kinds)
		q += fmt.Sprintf(" AND kind = ANY($%d)", len(args))
	}
	if len(f.States) > 0 {
		states := make([]string, len(f.States))
		for i, s := range f.States {
			states[i] = string(s)
		}
		args = append(args, states)
		q += fmt.Sprintf(" AND state = ANY($%d)", len(args))
	}
	q += " ORDER BY id"

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TrackedEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) Since(ctx context.Context, tenantID, locationID string, afterSeq int64) ([]domain.Transition, error) {
	rows, err := p.pool.Query(ctx, `
SELECT seq, entity_id, tenant_id, location_id, kind, from_state, to_state,
       version, actor_id, occurred_at
FROM transitions
WHERE tenant_id = $1 AND location_id = $2 AND seq > $3
ORDER BY seq`, tenantID, locationID, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transition
	for rows.Next() {
		var t domain.Transition
		var kind, from, to string
		if err := rows.Scan(&t.Seq, &t.EntityID, &t.TenantID, &t.LocationID,
			&kind, &from, &to, &t.Version, &t.ActorID, &t.OccurredAt); err != nil {
			return nil, err
		}
		t.Kind, t.FromState, t.ToState = domain.Kind(kind), domain.State(from), domain.State(to)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) Scopes(ctx context.Context) ([]Scope, error) {
	rows, err := p.pool.Query(ctx, `
SELECT DISTINCT tenant_id, location_id FROM transitions
ORDER BY tenant_id, location_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Scope
	for rows.Next() {
		var sc Scope
		if err := rows.Scan(&sc.TenantID, &sc.LocationID); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (p *Postgres) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func appendTransition(ctx context.Context, tx pgx.Tx, t *domain.Transition) error {
	err := tx.QueryRow(ctx, `
INSERT INTO transitions
  (entity_id, tenant_id, location_id, kind, from_state, to_state, version, actor_id, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING seq`,
		t.EntityID, t.TenantID, t.LocationID, string(t.Kind),
		string(t.FromState), string(t.ToState), t.Version, t.ActorID,
		t.OccurredAt).Scan(&t.Seq)
	if err != nil {
		return fmt.Errorf("appending transition: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (domain.TrackedEntity, error) {
	var e domain.TrackedEntity
	var kind, state string
	var priority int16
	err := row.Scan(&e.ID, &kind, &e.TenantID, &e.LocationID, &priority,
		&state, &e.Version, &e.CreatedAt, &e.LastTransitionAt, &e.ActorID,
		&e.Payload)
	if err != nil {
		return domain.TrackedEntity{}, err
	}
	e.Kind, e.State, e.Priority = domain.Kind(kind), domain.State(state), domain.Priority(priority)
	return e, nil
}
