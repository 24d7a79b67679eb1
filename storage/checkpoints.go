package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"phimgg-importer/checkpoint"
)

// CheckpointStore keeps the run state of one import source in the
// import_state table.
type CheckpointStore struct {
	s      *SQLStorage
	source string
}

// Checkpoints returns the run-state store for source.
func (s *SQLStorage) Checkpoints(source string) *CheckpointStore {
	return &CheckpointStore{s: s, source: source}
}

func (c *CheckpointStore) Load(ctx context.Context) (checkpoint.RunState, error) {
	query := `
	SELECT version, run_id, phase, page_start, page_end, last_completed_page, updated_at
	FROM import_state
	WHERE source = ?
	`

	var state checkpoint.RunState
	var phase string
	err := c.s.db.QueryRowContext(ctx, c.s.rebind(query), c.source).Scan(
		&state.Version, &state.RunID, &phase, &state.PageStart, &state.PageEnd,
		&state.LastCompletedPage, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return checkpoint.NotStarted(), nil
	}
	if err != nil {
		return checkpoint.RunState{}, fmt.Errorf("failed to load import state: %w", err)
	}

	state.Source = c.source
	state.Phase = checkpoint.Phase(phase)
	if err := state.Validate(); err != nil {
		return checkpoint.RunState{}, &checkpoint.CorruptError{Location: "import_state/" + c.source, Err: err}
	}
	return state, nil
}

// Save upserts the run state inside a transaction.
func (c *CheckpointStore) Save(ctx context.Context, state checkpoint.RunState) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("refusing to save import state: %w", err)
	}

	tx, err := c.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO import_state (source, version, run_id, phase, page_start, page_end, last_completed_page, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (source) DO UPDATE SET
		version = excluded.version,
		run_id = excluded.run_id,
		phase = excluded.phase,
		page_start = excluded.page_start,
		page_end = excluded.page_end,
		last_completed_page = excluded.last_completed_page,
		updated_at = excluded.updated_at
	`

	_, err = tx.ExecContext(ctx, c.s.rebind(query),
		c.source, state.Version, state.RunID, string(state.Phase),
		state.PageStart, state.PageEnd, state.LastCompletedPage, state.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save import state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import state: %w", err)
	}
	return nil
}
