package monitoring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/networknest/networknest/internal/store"
	"github.com/networknest/networknest/pkg/models"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// RunRepository records discovery runs.
type RunRepository struct {
	st  *store.Store
	now func() time.Time
}

// NewRunRepository creates a RunRepository. The schema must exist
// (see EnsureSchema).
func NewRunRepository(st *store.Store) *RunRepository {
	return &RunRepository{st: st, now: time.Now}
}

// Create inserts a new run. ID, StartedAt and Status are filled in when empty.
func (r *RunRepository) Create(ctx context.Context, run *models.DiscoveryRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt == "" {
		run.StartedAt = r.now().UTC().Format(time.RFC3339)
	}
	if run.Status == "" {
		run.Status = RunRunning
	}

	_, err := r.st.DB().ExecContext(ctx, r.st.Rebind(`
		INSERT INTO discovery_runs (id, user_id, method, target, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?)`),
		run.ID, run.UserID, run.Method, run.Target, run.StartedAt, run.Status,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// Finish marks a run as ended with the given outcome.
func (r *RunRepository) Finish(ctx context.Context, id, status string, devices int, errMsg string) error {
	res, err := r.st.DB().ExecContext(ctx, r.st.Rebind(`
		UPDATE discovery_runs SET status = ?, devices = ?, error_msg = ?, ended_at = ?
		WHERE id = ?`),
		status, devices, errMsg, r.now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns a single run.
func (r *RunRepository) Get(ctx context.Context, id string) (*models.DiscoveryRun, error) {
	row := r.st.DB().QueryRowContext(ctx, r.st.Rebind(`
		SELECT id, user_id, method, target, started_at, ended_at, status, devices, error_msg
		FROM discovery_runs WHERE id = ?`), id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get run %q: %w", id, err)
	}
	return run, nil
}

// List returns the user's runs ordered by start time.
func (r *RunRepository) List(ctx context.Context, userID string, opts ListOptions) (*ListResult[models.DiscoveryRun], error) {
	opts = normalizeListOptions(opts)

	var total int
	if err := r.st.DB().QueryRowContext(ctx,
		r.st.Rebind(`SELECT COUNT(*) FROM discovery_runs WHERE user_id = ?`), userID,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}

	//nolint:gosec // orderDirection returns a fixed keyword
	query := fmt.Sprintf(`
		SELECT id, user_id, method, target, started_at, ended_at, status, devices, error_msg
		FROM discovery_runs WHERE user_id = ?
		ORDER BY started_at %s, id LIMIT ? OFFSET ?`, orderDirection(opts))
	rows, err := r.st.DB().QueryContext(ctx, r.st.Rebind(query), userID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []models.DiscoveryRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return &ListResult[models.DiscoveryRun]{Items: runs, Total: total}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.DiscoveryRun, error) {
	var run models.DiscoveryRun
	var endedAt sql.NullString
	if err := row.Scan(&run.ID, &run.UserID, &run.Method, &run.Target, &run.StartedAt,
		&endedAt, &run.Status, &run.Devices, &run.ErrorMsg); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		run.EndedAt = endedAt.String
	}
	return &run, nil
}
