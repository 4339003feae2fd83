package queue

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Postgres is the database-backed queue. It doubles as the server's task
// store: the worker uses Claim/Progress/Succeed/Fail/Status, the API uses
// Create/Get/Cancel.
type Postgres struct {
	pool      *pgxpool.Pool
	uploadDir string
	log       zerolog.Logger
}

// NewPostgres connects to the database and verifies the connection.
// uploadDir is where task uploads land; FetchFile resolves files there.
func NewPostgres(ctx context.Context, databaseURL, uploadDir string, log zerolog.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().Str("url", maskDSN(databaseURL)).Msg("database connected")
	return &Postgres{pool: pool, uploadDir: uploadDir, log: log}, nil
}

// Pool exposes the underlying pool for health checks.
func (q *Postgres) Pool() *pgxpool.Pool { return q.pool }

// Close releases the connection pool.
func (q *Postgres) Close() {
	q.log.Info().Msg("closing database pool")
	q.pool.Close()
}

// migration defines a single idempotent schema migration.
type migration struct {
	name  string
	sql   string
	check string // query returning true when already applied
}

var migrations = []migration{
	{
		name: "create tasks table",
		sql: `CREATE TABLE IF NOT EXISTS tasks (
			id uuid PRIMARY KEY,
			file_name text NOT NULL,
			status text NOT NULL DEFAULT 'pending',
			progress int NOT NULL DEFAULT 0,
			result text,
			error text,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
		check: `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'tasks')`,
	},
	{
		name:  "add tasks pending index",
		sql:   `CREATE INDEX IF NOT EXISTS idx_tasks_pending ON tasks (created_at) WHERE status = 'pending'`,
		check: `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_tasks_pending')`,
	},
}

// Migrate applies pending schema migrations. Each is idempotent; a failed
// apply is fatal since every query below depends on the schema.
func (q *Postgres) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if m.check != "" {
			var exists bool
			if err := q.pool.QueryRow(ctx, m.check).Scan(&exists); err == nil && exists {
				continue
			}
		}
		q.log.Info().Str("migration", m.name).Msg("applying migration")
		if _, err := q.pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %q: %w", m.name, err)
		}
	}
	return nil
}

// Claim takes the oldest pending task with SKIP LOCKED so concurrent workers
// never claim the same row.
func (q *Postgres) Claim(ctx context.Context) (*Task, error) {
	row := q.pool.QueryRow(ctx, `
		UPDATE tasks
		SET status = 'processing', progress = 10, updated_at = now()
		WHERE id = (
			SELECT id FROM tasks
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, file_name, status, progress, result, error, created_at, updated_at`)

	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	return t, nil
}

func (q *Postgres) Progress(ctx context.Context, taskID string, progress int) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE tasks SET progress = $1, updated_at = now() WHERE id = $2`,
		progress, taskID)
	return err
}

func (q *Postgres) Succeed(ctx context.Context, taskID, result string) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE tasks
		SET status = 'completed', progress = 100, result = $1, error = NULL, updated_at = now()
		WHERE id = $2`,
		result, taskID)
	return err
}

func (q *Postgres) Fail(ctx context.Context, taskID, message string) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE tasks
		SET status = 'failed', progress = 0, error = $1, updated_at = now()
		WHERE id = $2`,
		message, taskID)
	return err
}

func (q *Postgres) Status(ctx context.Context, taskID string) (string, error) {
	var status string
	err := q.pool.QueryRow(ctx, `SELECT status FROM tasks WHERE id = $1`, taskID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrTaskNotFound
	}
	if err != nil {
		return "", fmt.Errorf("task status: %w", err)
	}
	return status, nil
}

// FetchFile locates the task's upload in the shared upload directory. Files
// are stored as {taskID}{ext}; extensionless names are a legacy fallback.
func (q *Postgres) FetchFile(ctx context.Context, task *Task) (string, error) {
	matches, err := filepath.Glob(filepath.Join(q.uploadDir, task.ID+".*"))
	if err == nil && len(matches) > 0 {
		return matches[0], nil
	}
	legacy := filepath.Join(q.uploadDir, task.ID)
	if _, err := os.Stat(legacy); err == nil {
		return legacy, nil
	}
	return "", ErrFileNotFound
}

// DeleteRemoteFile is a no-op: with direct database access the upload
// directory is local, and the driver already removes the local file.
func (q *Postgres) DeleteRemoteFile(ctx context.Context, taskID string) error {
	return nil
}

// Create inserts a new pending task. Used by the API's upload intake.
func (q *Postgres) Create(ctx context.Context, taskID, fileName string) error {
	_, err := q.pool.Exec(ctx,
		`INSERT INTO tasks (id, file_name) VALUES ($1, $2)`,
		taskID, fileName)
	return err
}

// Get returns the full task row, or pgx.ErrNoRows if absent.
func (q *Postgres) Get(ctx context.Context, taskID string) (*Task, error) {
	row := q.pool.QueryRow(ctx, `
		SELECT id, file_name, status, progress, result, error, created_at, updated_at
		FROM tasks WHERE id = $1`, taskID)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	return t, err
}

// Cancel flips a pending or processing task to cancelled. Returns false when
// the task was already terminal (or doesn't exist).
func (q *Postgres) Cancel(ctx context.Context, taskID string) (bool, error) {
	tag, err := q.pool.Exec(ctx, `
		UPDATE tasks SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'processing')`,
		taskID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	var result, errMsg *string
	err := row.Scan(&t.ID, &t.FileName, &t.Status, &t.Progress, &result, &errMsg, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if result != nil {
		t.Result = *result
	}
	if errMsg != nil {
		t.Error = *errMsg
	}
	return &t, nil
}

func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		if _, hasPass := u.User.Password(); hasPass {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
