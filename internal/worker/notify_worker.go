package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"waitline/internal/database"
	"waitline/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Sender delivers a single push message. Implemented by the FCM sender.
type Sender interface {
	Send(ctx context.Context, token, title, body string) error
}

// NotifyWorker drains notification tasks and delivers them with retries.
// Tasks are always persisted to the database first; redis is the fast path
// and the in-memory channel the fallback, with DB polling picking up anything
// both paths missed (including tasks left over from a previous run).
type NotifyWorker struct {
	db            *database.DB
	sender        Sender
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.NotifyTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	sendTimeout   time.Duration
	logger        zerolog.Logger
}

func NewNotifyWorker(db *database.DB, sender Sender, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *NotifyWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &NotifyWorker{
		db:            db,
		sender:        sender,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.NotifyTask, models.WorkerQueueSize),
		redisQueueKey: "notify:queue",
		deadLetterKey: "notify:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		sendTimeout:   models.DefaultNotifyTimeoutSeconds * time.Second,
		logger:        logger.With().Str("component", "notify-worker").Logger(),
	}
}

// Notify persists a notification task and schedules it for dispatch. It
// satisfies the queue engine's notifier contract: returning nil means the
// task is durably accepted, not that the push has been delivered.
func (w *NotifyWorker) Notify(ctx context.Context, token, title, body string) error {
	if token == "" {
		return errors.New("token is required")
	}

	task := models.NotifyTask{Token: token, Title: title, Body: body}
	if err := w.db.CreateNotifyTask(ctx, &task); err != nil {
		return fmt.Errorf("persist notify task: %w", err)
	}

	// Try redis first so a sibling process can pick the task up. A task on
	// the redis list is marked queued so polling doesn't dispatch it too.
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Msg("redis push failed, fallback to memory queue")
		} else {
			if err := w.db.MarkNotifyTaskQueued(ctx, task.ID); err != nil {
				w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark queued")
			}
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("in-memory queue full, task left to polling")
	}

	return nil
}

// Start launches the main loop; stops when ctx is done.
func (w *NotifyWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("started")
	defer w.logger.Info().Msg("stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.db.GetPendingNotifyTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("fetch pending tasks")
			w.sleep(ctx)
			continue
		}
		if len(tasks) == 0 {
			w.sleep(ctx)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *NotifyWorker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.pollInterval):
	}
}

func (w *NotifyWorker) tryLocalQueue() (models.NotifyTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.NotifyTask{}, false
	}
}

func (w *NotifyWorker) tryRedis(ctx context.Context) (models.NotifyTask, bool) {
	if w.redis == nil {
		return models.NotifyTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		// An empty poll or a shutdown is not an error worth logging.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, redis.Nil) {
			return models.NotifyTask{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP error")
		return models.NotifyTask{}, false
	}
	if len(res) != 2 {
		return models.NotifyTask{}, false
	}
	var task models.NotifyTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.NotifyTask{}, false
	}
	return task, true
}

func (w *NotifyWorker) processTask(ctx context.Context, task *models.NotifyTask) {
	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	err := w.sender.Send(sendCtx, task.Token, task.Title, task.Body)
	cancel()

	if err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.db.UpdateNotifyTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark completed")
	}
}

func (w *NotifyWorker) retryOrFail(ctx context.Context, task *models.NotifyTask, cause error) {
	attempt := task.Attempts + 1
	if attempt >= w.retryPolicy.MaxRetries {
		if err := w.db.UpdateNotifyTaskStatus(ctx, task.ID, models.TaskStatusFailed, cause.Error(), nil); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
		}
		w.pushDeadLetter(ctx, task)
		return
	}

	nextTime := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.db.UpdateNotifyTaskStatus(ctx, task.ID, models.TaskStatusRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry")
	}
}

func (w *NotifyWorker) pushRedis(ctx context.Context, task models.NotifyTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *NotifyWorker) pushDeadLetter(ctx context.Context, task *models.NotifyTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("deadletter push")
	}
}
