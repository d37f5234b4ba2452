package models

const (
	StatusWaiting = "waiting"
	StatusSeated  = "seated"
	StatusDone    = "done"
)

const (
	TaskStatusPending   = "pending"
	TaskStatusQueued    = "queued"
	TaskStatusRetry     = "retry"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

const (
	// DefaultSeatCapacity максимальное число одновременно посаженных клиентов на магазин
	DefaultSeatCapacity = 3

	// DefaultSnapshotTTL время жизни кэша очереди в Redis (секунды)
	DefaultSnapshotTTL = 30

	// WorkerQueueSize размер внутренней очереди воркера уведомлений
	WorkerQueueSize = 128

	// DefaultNotifyTimeoutSeconds таймаут на отправку одного push-уведомления
	DefaultNotifyTimeoutSeconds = 5
)

// ValidStatuses is the closed set of entry statuses.
var ValidStatuses = map[string]bool{
	StatusWaiting: true,
	StatusSeated:  true,
	StatusDone:    true,
}
