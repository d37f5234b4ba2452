package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"waitline/internal/models"
)

// CreateNotifyTask persists a notification task so dispatch survives restarts.
func (db *DB) CreateNotifyTask(ctx context.Context, task *models.NotifyTask) error {
	now := time.Now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO notify_tasks (token, title, body, status, attempts, created_at)
         VALUES (?, ?, ?, ?, 0, ?)`,
		task.Token, task.Title, task.Body, models.TaskStatusPending, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create notify task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.Status = models.TaskStatusPending
	task.CreatedAt = now
	return nil
}

// queuedRequeueAfter is how long a task handed to redis stays off the polling
// path. Past it the task is presumed orphaned (its consumer died before
// completing it) and polling re-adopts it.
const queuedRequeueAfter = time.Minute

// MarkNotifyTaskQueued records that the task was handed to a redis consumer,
// taking it off the polling path so it isn't dispatched twice.
func (db *DB) MarkNotifyTaskQueued(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE notify_tasks SET status = ? WHERE id = ? AND status = ?`,
		models.TaskStatusQueued, id, models.TaskStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notify task queued: %w", err)
	}
	return nil
}

// GetPendingNotifyTasks returns tasks due for dispatch: pending ones, retries
// whose next_retry_at has passed, and queued ones old enough to be presumed
// orphaned by their redis consumer.
func (db *DB) GetPendingNotifyTasks(ctx context.Context, limit int) ([]models.NotifyTask, error) {
	now := time.Now()
	rows, err := db.QueryContext(ctx,
		`SELECT id, token, title, body, status, attempts, COALESCE(last_error, ''), next_retry_at, created_at
         FROM notify_tasks
         WHERE status = ?
            OR (status = ? AND next_retry_at <= ?)
            OR (status = ? AND created_at <= ?)
         ORDER BY created_at ASC
         LIMIT ?`,
		models.TaskStatusPending,
		models.TaskStatusRetry, now,
		models.TaskStatusQueued, now.Add(-queuedRequeueAfter),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending notify tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.NotifyTask
	for rows.Next() {
		var task models.NotifyTask
		var nextRetry sql.NullTime
		err := rows.Scan(
			&task.ID, &task.Token, &task.Title, &task.Body,
			&task.Status, &task.Attempts, &task.LastError, &nextRetry, &task.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notify task: %w", err)
		}
		if nextRetry.Valid {
			task.NextRetryAt = &nextRetry.Time
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// UpdateNotifyTaskStatus transitions a task and bumps its attempt counter.
func (db *DB) UpdateNotifyTaskStatus(ctx context.Context, id int64, status, lastError string, nextRetryAt *time.Time) error {
	var nextRetry any
	if nextRetryAt != nil {
		nextRetry = *nextRetryAt
	}
	_, err := db.ExecContext(ctx,
		`UPDATE notify_tasks
         SET status = ?, attempts = attempts + 1, last_error = ?, next_retry_at = ?
         WHERE id = ?`,
		status, lastError, nextRetry, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update notify task: %w", err)
	}
	return nil
}
