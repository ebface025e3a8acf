package tasksource

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/julianstephens/tickup/internal/models"
)

// PostgresSource reads tasks straight from the backend's tasks table.
type PostgresSource struct {
	pool   *pgxpool.Pool
	userID string
}

func NewPostgresSource(ctx context.Context, dsn, userID string) (*PostgresSource, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create task database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to task database: %w", err)
	}

	return &PostgresSource{pool: pool, userID: userID}, nil
}

func (s *PostgresSource) Tasks(ctx context.Context) ([]models.TaskSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, title, due_date, status, is_completed
		 FROM tasks WHERE user_id::text = $1
		 ORDER BY due_date ASC NULLS LAST`,
		s.userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.TaskSnapshot
	for rows.Next() {
		var (
			id        string
			title     *string
			due       *time.Time
			status    *string
			completed *bool
		)
		if err := rows.Scan(&id, &title, &due, &status, &completed); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, snapshotFromRow(id, title, due, status, completed))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}
	return tasks, nil
}

func snapshotFromRow(id string, title *string, due *time.Time, status *string, completed *bool) models.TaskSnapshot {
	t := models.TaskSnapshot{ID: id}
	if title != nil {
		t.Title = *title
	}
	if due != nil {
		t.DueAt = *due
	}
	var st string
	if status != nil {
		st = *status
	}
	t.IsCompleted = isCompleted(st, completed != nil && *completed)
	return t
}

func (s *PostgresSource) Close() {
	s.pool.Close()
}
