package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielzillmann-hue/transformation-agent/internal/model"
)

// SaveRun inserts a new run row.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *model.Run) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, source_system, output_dir, status, error,
			tables_generated, tables_skipped, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SourceSystem, run.OutputDir, string(run.Status), run.Error,
		run.TablesGenerated, run.TablesSkipped, run.StartedAt.UTC(), nullTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun updates the outcome columns of an existing run.
func (s *SQLiteStorage) FinishRun(ctx context.Context, run *model.Run) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}

	finished := run.FinishedAt
	if finished == nil {
		now := time.Now()
		finished = &now
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, error = ?, tables_generated = ?, tables_skipped = ?, finished_at = ?
		WHERE id = ?`,
		string(run.Status), run.Error, run.TablesGenerated, run.TablesSkipped, finished.UTC(), run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check run update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// SaveDecisions records the classification decisions of a run. Saving the
// same table twice keeps the latest decision.
func (s *SQLiteStorage) SaveDecisions(ctx context.Context, runID string, decisions []model.ClassificationDecision) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(runID, "runID"); err != nil {
		return err
	}
	if err := validateDecisions(decisions); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO decisions (run_id, table_name, kind, confidence, source, reasoning)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, d := range decisions {
			if _, err := stmt.ExecContext(ctx, runID, d.TableName, string(d.Kind),
				string(d.Confidence), string(d.Source), d.Reasoning); err != nil {
				return fmt.Errorf("failed to save decision for %s: %w", d.TableName, err)
			}
		}
		return nil
	})
}

// SaveFallbackTypes records the unmapped types seen during a run.
func (s *SQLiteStorage) SaveFallbackTypes(ctx context.Context, runID string, fallbacks []model.FallbackType) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(runID, "runID"); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO fallback_types (run_id, base_type, target_type, occurrences)
			VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, f := range fallbacks {
			if _, err := stmt.ExecContext(ctx, runID, f.BaseType, f.TargetType, f.Occurrences); err != nil {
				return fmt.Errorf("failed to save fallback type %s: %w", f.BaseType, err)
			}
		}
		return nil
	})
}

// SaveArtifacts records where each artifact of a run was written. Content is
// not stored.
func (s *SQLiteStorage) SaveArtifacts(ctx context.Context, runID string, artifacts []model.Artifact) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(runID, "runID"); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO artifacts (run_id, table_name, domain_slug, table_slug, dataset, kind, path)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, a := range artifacts {
			if _, err := stmt.ExecContext(ctx, runID, a.TableName, a.DomainSlug, a.TableSlug,
				a.Dataset, string(a.Kind), a.Path); err != nil {
				return fmt.Errorf("failed to save artifact for %s: %w", a.TableName, err)
			}
		}
		return nil
	})
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_system, output_dir, status, error,
			tables_generated, tables_skipped, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run or ErrNotFound.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_system, output_dir, status, error,
			tables_generated, tables_skipped, started_at, finished_at
		FROM runs
		WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetDecisions returns a run's decisions ordered by table name.
func (s *SQLiteStorage) GetDecisions(ctx context.Context, runID string) ([]model.ClassificationDecision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name, kind, confidence, source, reasoning
		FROM decisions
		WHERE run_id = ?
		ORDER BY table_name`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []model.ClassificationDecision
	for rows.Next() {
		var (
			d                        model.ClassificationDecision
			kind, confidence, source string
		)
		if err := rows.Scan(&d.TableName, &kind, &confidence, &source, &d.Reasoning); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		d.Kind = model.TableKind(kind)
		d.Confidence = model.Confidence(confidence)
		d.Source = model.DecisionSource(source)
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate decisions: %w", err)
	}
	return decisions, nil
}

// GetFallbackTypes returns a run's unmapped types, most frequent first.
func (s *SQLiteStorage) GetFallbackTypes(ctx context.Context, runID string) ([]model.FallbackType, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT base_type, target_type, occurrences
		FROM fallback_types
		WHERE run_id = ?
		ORDER BY occurrences DESC, base_type`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fallback types: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.FallbackType
	for rows.Next() {
		var f model.FallbackType
		if err := rows.Scan(&f.BaseType, &f.TargetType, &f.Occurrences); err != nil {
			return nil, fmt.Errorf("failed to scan fallback type: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fallback types: %w", err)
	}
	return out, nil
}

// GetArtifacts returns a run's artifacts ordered by path.
func (s *SQLiteStorage) GetArtifacts(ctx context.Context, runID string) ([]model.Artifact, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name, domain_slug, table_slug, dataset, kind, path
		FROM artifacts
		WHERE run_id = ?
		ORDER BY path`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Artifact
	for rows.Next() {
		var (
			a    model.Artifact
			kind string
		)
		if err := rows.Scan(&a.TableName, &a.DomainSlug, &a.TableSlug, &a.Dataset, &kind, &a.Path); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		a.Kind = model.TableKind(kind)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate artifacts: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	var (
		run      model.Run
		status   string
		finished sql.NullTime
	)
	err := row.Scan(&run.ID, &run.SourceSystem, &run.OutputDir, &status, &run.Error,
		&run.TablesGenerated, &run.TablesSkipped, &run.StartedAt, &finished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Status = model.RunStatus(status)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func (s *SQLiteStorage) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
