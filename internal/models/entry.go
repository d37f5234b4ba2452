package models

import "time"

// Entry is one customer's record within one shop's queue.
type Entry struct {
	ID        int64     `json:"id"`
	ShopID    int64     `json:"shop_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Status    string    `json:"status"` // waiting, seated, done
	Position  *int64    `json:"position,omitempty"`
	PushToken string    `json:"push_token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsWaiting reports whether the entry currently holds a queue position.
func (e *Entry) IsWaiting() bool {
	return e.Status == StatusWaiting
}

// QueueSnapshot is the read model returned for a shop's queue.
// Waiting is ordered ascending by position; seated has no intrinsic order.
type QueueSnapshot struct {
	Seated  []*Entry `json:"seated"`
	Waiting []*Entry `json:"waiting"`
}

// NotifyTask is a persisted unit of push-notification work.
type NotifyTask struct {
	ID          int64      `json:"id"`
	Token       string     `json:"token"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Status      string     `json:"status"` // pending, retry, completed, failed
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
