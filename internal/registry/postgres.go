package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresActionStore is a durable ActionClient backend: an `actions` table
// holding (name, exec_kind, exec_code, annotations). Invocation is left to
// a caller-supplied dispatcher since "what running an action means" is a
// host-platform concern, not a storage concern.
//
// Grounded on common/db/db.go's pgxpool wrapper (connect, ping, pooled
// queries), adapted from run/artifact storage to action-definition storage.
type PostgresActionStore struct {
	pool    *pgxpool.Pool
	invoker func(ctx context.Context, spec ActionSpec, params map[string]interface{}) (map[string]interface{}, error)
}

// NewPostgresActionStore wraps an already-connected pool. Callers build the
// pool the way common/db.New does (ParseConfig + pgxpool.NewWithConfig +
// Ping) before constructing this store.
func NewPostgresActionStore(pool *pgxpool.Pool, invoker func(ctx context.Context, spec ActionSpec, params map[string]interface{}) (map[string]interface{}, error)) *PostgresActionStore {
	return &PostgresActionStore{pool: pool, invoker: invoker}
}

// EnsureSchema creates the actions table if it does not already exist.
func (s *PostgresActionStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS actions (
			name        TEXT PRIMARY KEY,
			exec_kind   TEXT NOT NULL,
			exec_code   TEXT NOT NULL,
			annotations JSONB NOT NULL DEFAULT '[]'
		)`)
	if err != nil {
		return fmt.Errorf("ensure actions schema: %w", err)
	}
	return nil
}

func (s *PostgresActionStore) Delete(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM actions WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete action %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresActionStore) Create(ctx context.Context, spec ActionSpec) error {
	annotations, err := json.Marshal(spec.Action.Annotations)
	if err != nil {
		return fmt.Errorf("marshal annotations for %q: %w", spec.Name, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO actions (name, exec_kind, exec_code, annotations)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET exec_kind = $2, exec_code = $3, annotations = $4
	`, spec.Name, spec.Action.Exec.Kind, spec.Action.Exec.Code, annotations)
	if err != nil {
		return fmt.Errorf("create action %q: %w", spec.Name, err)
	}
	return nil
}

func (s *PostgresActionStore) Update(ctx context.Context, spec ActionSpec) error {
	return s.Create(ctx, spec)
}

func (s *PostgresActionStore) Invoke(ctx context.Context, req InvokeRequest) (*Activation, error) {
	spec, err := s.Get(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	if s.invoker == nil {
		return nil, fmt.Errorf("no invoker configured for action %q", req.Name)
	}
	result, err := s.invoker(ctx, *spec, req.Params)
	if err != nil {
		return nil, err
	}
	act := &Activation{Result: result}
	if resume, ok := result["$resume"].(map[string]interface{}); ok {
		act.Resume = resume
	}
	return act, nil
}

func (s *PostgresActionStore) Get(ctx context.Context, name string) (*ActionSpec, error) {
	row := s.pool.QueryRow(ctx, `SELECT name, exec_kind, exec_code FROM actions WHERE name = $1`, name)
	var spec ActionSpec
	if err := row.Scan(&spec.Name, &spec.Action.Exec.Kind, &spec.Action.Exec.Code); err != nil {
		return nil, ErrNotFound
	}
	return &spec, nil
}
