package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/weave/pkg/schema"
)

// LibSQLRecorder implements Recorder on a libSQL (embedded SQLite fork)
// database.
type LibSQLRecorder struct {
	db *sql.DB
}

// NewLibSQLRecorder opens a libSQL database at the given path. The path
// should be a file URI, e.g. "file:/path/to/history.db".
func NewLibSQLRecorder(dbPath string) (*LibSQLRecorder, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLRecorder{db: db}, nil
}

// Migrate applies any pending schema migrations.
func (r *LibSQLRecorder) Migrate(ctx context.Context) error {
	return runMigrations(ctx, r.db)
}

// Vacuum runs VACUUM on the database.
func (r *LibSQLRecorder) Vacuum(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "VACUUM")
	return err
}

func (r *LibSQLRecorder) Close() error { return r.db.Close() }

func (r *LibSQLRecorder) Begin(ctx context.Context, rec *ExecutionRecord) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = schema.ExecutionStatusRunning
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO executions (id, workflow_ref, status, started_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.WorkflowRef, string(rec.Status), rec.StartedAt,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "begin execution %s: %s", rec.ID, err.Error()).WithCause(err)
	}
	return nil
}

func (r *LibSQLRecorder) AppendStep(ctx context.Context, executionID string, step schema.ExecutionLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO execution_steps (execution_id, seq, node_id, node_type, message, status, input, output, ts)
		 SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?, ?, ?
		 FROM execution_steps WHERE execution_id = ?`,
		executionID, step.NodeID, step.NodeType, step.Message, string(step.Status),
		nullableString(step.Input), nullableString(step.Output), step.Timestamp,
		executionID,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "append step to %s: %s", executionID, err.Error()).WithCause(err)
	}
	return nil
}

func (r *LibSQLRecorder) Finish(ctx context.Context, executionID string, status schema.ExecutionStatus, errMsg string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE executions SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(status), nullableString(errMsg), time.Now().UTC(), executionID,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "finish execution %s: %s", executionID, err.Error()).WithCause(err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return schema.NewErrorf(schema.ErrCodeNotFound, "execution %s not found", executionID)
	}
	return nil
}

func (r *LibSQLRecorder) Get(ctx context.Context, executionID string) (*ExecutionRecord, error) {
	rec := &ExecutionRecord{}
	var status string
	var errMsg sql.NullString
	var completed sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, workflow_ref, status, error, started_at, completed_at FROM executions WHERE id = ?`,
		executionID,
	).Scan(&rec.ID, &rec.WorkflowRef, &status, &errMsg, &rec.StartedAt, &completed)
	if err == sql.ErrNoRows {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "execution %s not found", executionID)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "get execution %s: %s", executionID, err.Error()).WithCause(err)
	}
	rec.Status = schema.ExecutionStatus(status)
	rec.Error = errMsg.String
	if completed.Valid {
		rec.CompletedAt = &completed.Time
	}

	steps, err := r.loadSteps(ctx, executionID)
	if err != nil {
		return nil, err
	}
	rec.Steps = steps
	return rec, nil
}

func (r *LibSQLRecorder) loadSteps(ctx context.Context, executionID string) ([]schema.ExecutionLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT node_id, node_type, message, status, input, output, ts
		 FROM execution_steps WHERE execution_id = ? ORDER BY seq`,
		executionID,
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "load steps for %s: %s", executionID, err.Error()).WithCause(err)
	}
	defer rows.Close()

	var steps []schema.ExecutionLog
	for rows.Next() {
		var step schema.ExecutionLog
		var status string
		var input, output sql.NullString
		if err := rows.Scan(&step.NodeID, &step.NodeType, &step.Message, &status, &input, &output, &step.Timestamp); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "scan step: %s", err.Error()).WithCause(err)
		}
		step.Status = schema.LogStatus(status)
		step.Input = input.String
		step.Output = output.String
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func (r *LibSQLRecorder) List(ctx context.Context, f Filter) ([]*ExecutionRecord, error) {
	query := `SELECT id, workflow_ref, status, error, started_at, completed_at FROM executions WHERE 1=1`
	var args []any
	if f.WorkflowRef != "" {
		query += ` AND workflow_ref = ?`
		args = append(args, f.WorkflowRef)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if !f.Since.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, f.Since)
	}
	query += ` ORDER BY started_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list executions: %s", err.Error()).WithCause(err)
	}
	defer rows.Close()

	var recs []*ExecutionRecord
	for rows.Next() {
		rec := &ExecutionRecord{}
		var status string
		var errMsg sql.NullString
		var completed sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.WorkflowRef, &status, &errMsg, &rec.StartedAt, &completed); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "scan execution: %s", err.Error()).WithCause(err)
		}
		rec.Status = schema.ExecutionStatus(status)
		rec.Error = errMsg.String
		if completed.Valid {
			rec.CompletedAt = &completed.Time
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Prune deletes all but the newest keep executions. Step rows follow via
// the foreign key cascade.
func (r *LibSQLRecorder) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM executions WHERE id NOT IN (
			SELECT id FROM executions ORDER BY started_at DESC LIMIT ?
		)`, keep,
	)
	if err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeStore, "prune executions: %s", err.Error()).WithCause(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
