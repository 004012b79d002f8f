package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"listing_governance/internal/domain"
	"listing_governance/internal/repository"
)

//go:embed schema.sql
var schemaSQL string

var _ repository.DecisionRepository = (*DecisionRepository)(nil)

// DecisionRepository is the durable decision audit log.
type DecisionRepository struct {
	db *sql.DB
}

// Open creates or opens the audit database at path and applies the schema.
// The connection runs in WAL mode with a single writer.
func Open(path string) (*DecisionRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DecisionRepository{db: db}, nil
}

func (r *DecisionRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *DecisionRepository) Save(ctx context.Context, d *domain.Decision) error {
	actions, err := json.Marshal(nonNil(d.Actions))
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}
	matches, err := json.Marshal(nonNil(d.Matches))
	if err != nil {
		return fmt.Errorf("failed to marshal matches: %w", err)
	}
	failures, err := json.Marshal(nonNil(d.Failures))
	if err != nil {
		return fmt.Errorf("failed to marshal failures: %w", err)
	}

	var evaluatedAt int64
	if !d.EvaluatedAt.IsZero() {
		evaluatedAt = d.EvaluatedAt.UnixNano()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO decisions (id, signal_id, signal_type, listing_id, actions, matches, failures, evaluated_at, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.SignalID, string(d.SignalType), d.ListingID,
		string(actions), string(matches), string(failures),
		evaluatedAt, int64(d.Duration),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: decision for signal %s", repository.ErrDuplicate, d.SignalID)
		}
		return fmt.Errorf("failed to insert decision: %w", err)
	}

	return nil
}

func (r *DecisionRepository) GetBySignalID(ctx context.Context, signalID string) (*domain.Decision, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, signal_id, signal_type, listing_id, actions, matches, failures, evaluated_at, duration_ns
		FROM decisions WHERE signal_id = ?`, signalID)

	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: decision for signal %s", repository.ErrNotFound, signalID)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DecisionRepository) List(ctx context.Context, limit, offset int) ([]*domain.Decision, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, signal_id, signal_type, listing_id, actions, matches, failures, evaluated_at, duration_ns
		FROM decisions ORDER BY evaluated_at DESC, seq DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	result := []*domain.Decision{}
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate decisions: %w", err)
	}

	return result, nil
}

func (r *DecisionRepository) CountByAction(ctx context.Context) (map[domain.ActionOutcome]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT je.value, COUNT(*)
		FROM decisions, json_each(decisions.actions) AS je
		GROUP BY je.value`)
	if err != nil {
		return nil, fmt.Errorf("failed to count actions: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ActionOutcome]int)
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("failed to scan action count: %w", err)
		}
		counts[domain.ActionOutcome(action)] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDecision(s scanner) (*domain.Decision, error) {
	var (
		d                          domain.Decision
		signalType                 string
		actions, matches, failures string
		evaluatedAt, durationNanos int64
	)

	err := s.Scan(&d.ID, &d.SignalID, &signalType, &d.ListingID, &actions, &matches, &failures, &evaluatedAt, &durationNanos)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan decision: %w", err)
	}

	if err := json.Unmarshal([]byte(actions), &d.Actions); err != nil {
		return nil, fmt.Errorf("failed to decode actions: %w", err)
	}
	if err := json.Unmarshal([]byte(matches), &d.Matches); err != nil {
		return nil, fmt.Errorf("failed to decode matches: %w", err)
	}
	if err := json.Unmarshal([]byte(failures), &d.Failures); err != nil {
		return nil, fmt.Errorf("failed to decode failures: %w", err)
	}

	d.SignalType = domain.SignalType(signalType)
	if evaluatedAt != 0 {
		d.EvaluatedAt = time.Unix(0, evaluatedAt).UTC()
	}
	d.Duration = time.Duration(durationNanos)

	return &d, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
