package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"waitline/internal/database"
	"waitline/internal/events"
	"waitline/internal/metrics"
	"waitline/internal/models"

	"github.com/rs/zerolog"
)

// Store is the durable queue state the engine mutates. AdmitEntry and
// CompleteEntry must each be atomic with respect to concurrent readers.
type Store interface {
	AdmitEntry(ctx context.Context, entry *models.Entry, capacity int) error
	CompleteEntry(ctx context.Context, id int64) (*models.Entry, error)
	GetEntry(ctx context.Context, id int64) (*models.Entry, error)
	Snapshot(ctx context.Context, shopID int64) (*models.QueueSnapshot, error)
	ListEntries(ctx context.Context, shopID int64) ([]*models.Entry, error)
	SaveToken(ctx context.Context, phone, token string) error
	TokenForPhone(ctx context.Context, phone string) (string, error)
}

// Cache holds per-shop queue snapshots for reads. May be nil.
type Cache interface {
	Get(ctx context.Context, shopID int64) (*models.QueueSnapshot, error)
	Set(ctx context.Context, shopID int64, snap *models.QueueSnapshot) error
	Invalidate(ctx context.Context, shopID int64) error
}

// Notifier dispatches a push message to a device token. Delivery is
// best-effort; the engine never fails a transition on a notify error.
type Notifier interface {
	Notify(ctx context.Context, token, title, body string) error
}

// Engine owns every queue-state transition: admission, seating, completion
// and position renumbering. Mutations for one shop are serialized; shops are
// independent. Notification dispatch happens outside the per-shop critical
// section.
type Engine struct {
	store         Store
	cache         Cache
	notifier      Notifier
	bus           *events.EventBus
	capacity      int
	notifyTimeout time.Duration
	logger        zerolog.Logger
	locks         *shopLocks

	// cacheMu orders cache writes against invalidations: a snapshot read
	// concurrently with a mutation must not be written back over that
	// mutation's invalidation. cacheGen counts invalidations per shop.
	cacheMu  sync.Mutex
	cacheGen map[int64]uint64
}

type Option func(*Engine)

// WithCache attaches a snapshot cache for GetQueue reads.
func WithCache(cache Cache) Option {
	return func(e *Engine) { e.cache = cache }
}

// WithNotifier attaches the push dispatch backend.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithEventBus attaches an event bus for domain events.
func WithEventBus(bus *events.EventBus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithNotifyTimeout bounds a single notification dispatch.
func WithNotifyTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.notifyTimeout = d
		}
	}
}

func NewEngine(store Store, capacity int, logger *zerolog.Logger, opts ...Option) *Engine {
	if capacity <= 0 {
		capacity = models.DefaultSeatCapacity
	}

	e := &Engine{
		store:         store,
		capacity:      capacity,
		notifyTimeout: models.DefaultNotifyTimeoutSeconds * time.Second,
		logger:        logger.With().Str("component", "queue-engine").Logger(),
		locks:         newShopLocks(),
		cacheGen:      make(map[int64]uint64),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddCustomer admits a customer to the shop's queue. The customer is seated
// when a seat is free, otherwise appended to the waiting list at the next
// position. Validation errors wrap ErrInvalidArgument and reject the request
// before any mutation.
func (e *Engine) AddCustomer(ctx context.Context, shopID int64, name, phone string) (*models.Entry, error) {
	if shopID <= 0 {
		return nil, fmt.Errorf("%w: shop id is required", ErrInvalidArgument)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, fmt.Errorf("%w: phone is required", ErrInvalidArgument)
	}

	entry := &models.Entry{ShopID: shopID, Name: name, Phone: phone}

	lock := e.locks.get(shopID)
	lock.Lock()
	err := e.store.AdmitEntry(ctx, entry, e.capacity)
	lock.Unlock()
	if err != nil {
		return nil, err
	}

	e.invalidateSnapshot(ctx, shopID)
	metrics.IncCustomerAdded(entry.Status)
	e.publish(events.EventCustomerAdded, entry)

	e.logger.Info().
		Int64("shop_id", shopID).
		Int64("entry_id", entry.ID).
		Str("status", entry.Status).
		Msg("customer added")

	return entry, nil
}

// GetQueue returns the shop's seated entries and its waiting entries ordered
// by position. Reads go through the snapshot cache when one is attached;
// mutations invalidate it, so cached reads reflect the latest committed
// state of this process. A snapshot taken before a mutation committed is
// never cached past that mutation's invalidation.
func (e *Engine) GetQueue(ctx context.Context, shopID int64) (*models.QueueSnapshot, error) {
	if shopID <= 0 {
		return nil, fmt.Errorf("%w: shop id is required", ErrInvalidArgument)
	}

	if e.cache != nil {
		if snap, err := e.cache.Get(ctx, shopID); err == nil && snap != nil {
			return snap, nil
		}
	}

	gen := e.cacheGeneration(shopID)
	snap, err := e.store.Snapshot(ctx, shopID)
	if err != nil {
		return nil, err
	}

	e.cacheSnapshot(ctx, shopID, gen, snap)
	return snap, nil
}

// FinishCustomer marks the entry done and promotes the lowest-position
// waiting entry of the same shop, renumbering the rest so positions stay
// gapless from 1. Finishing an entry that is already done is a no-op.
// When the promoted customer has a registered push token a notification is
// dispatched after the state change commits; delivery failure never fails
// the transition.
func (e *Engine) FinishCustomer(ctx context.Context, entryID int64) error {
	if entryID <= 0 {
		return fmt.Errorf("%w: entry id is required", ErrInvalidArgument)
	}

	// Shop id is needed to pick the lock; resolve it before entering the
	// critical section.
	entry, err := e.store.GetEntry(ctx, entryID)
	if err != nil {
		if errors.Is(err, database.ErrEntryNotFound) {
			return fmt.Errorf("%w: entry %d", ErrNotFound, entryID)
		}
		return err
	}

	lock := e.locks.get(entry.ShopID)
	lock.Lock()
	promoted, err := e.store.CompleteEntry(ctx, entryID)
	lock.Unlock()

	if err != nil {
		if errors.Is(err, database.ErrAlreadyDone) {
			// Documented no-op: a repeated finish must not promote again.
			e.logger.Debug().Int64("entry_id", entryID).Msg("entry already done")
			return nil
		}
		if errors.Is(err, database.ErrEntryNotFound) {
			return fmt.Errorf("%w: entry %d", ErrNotFound, entryID)
		}
		return err
	}

	e.invalidateSnapshot(ctx, entry.ShopID)
	e.publish(events.EventCustomerFinished, entry)

	e.logger.Info().
		Int64("shop_id", entry.ShopID).
		Int64("entry_id", entryID).
		Msg("customer finished")

	if promoted != nil {
		metrics.IncPromotion()
		e.publish(events.EventCustomerPromoted, promoted)
		e.notifyPromoted(ctx, promoted)
	}

	return nil
}

// SaveToken registers a push token for a phone number. The token is stored
// by phone, so a token saved after an entry was created is still found when
// that entry is promoted.
func (e *Engine) SaveToken(ctx context.Context, phone, token string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("%w: phone is required", ErrInvalidArgument)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidArgument)
	}

	return e.store.SaveToken(ctx, phone, token)
}

// ListEntries returns every entry of a shop, done included.
func (e *Engine) ListEntries(ctx context.Context, shopID int64) ([]*models.Entry, error) {
	if shopID <= 0 {
		return nil, fmt.Errorf("%w: shop id is required", ErrInvalidArgument)
	}
	return e.store.ListEntries(ctx, shopID)
}

func (e *Engine) notifyPromoted(ctx context.Context, promoted *models.Entry) {
	if e.notifier == nil {
		return
	}

	token, err := e.store.TokenForPhone(ctx, promoted.Phone)
	if err != nil {
		e.logger.Error().Err(err).Str("phone", promoted.Phone).Msg("token lookup failed")
		return
	}
	if token == "" {
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.notifyTimeout)
	defer cancel()

	title := "Your turn!"
	body := fmt.Sprintf("%s, please come inside the shop 😊", promoted.Name)
	if err := e.notifier.Notify(notifyCtx, token, title, body); err != nil {
		metrics.IncPushSent("error")
		e.logger.Error().Err(err).Int64("entry_id", promoted.ID).Msg("notification dispatch failed")
		return
	}
	metrics.IncPushSent("ok")
}

func (e *Engine) cacheGeneration(shopID int64) uint64 {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	return e.cacheGen[shopID]
}

// cacheSnapshot stores snap unless the shop was invalidated after gen was
// read; a reader that raced a mutation drops its write instead of masking
// the newer committed state.
func (e *Engine) cacheSnapshot(ctx context.Context, shopID int64, gen uint64, snap *models.QueueSnapshot) {
	if e.cache == nil {
		return
	}
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	if e.cacheGen[shopID] != gen {
		return
	}
	if err := e.cache.Set(ctx, shopID, snap); err != nil {
		e.logger.Warn().Err(err).Int64("shop_id", shopID).Msg("snapshot cache set failed")
	}
}

func (e *Engine) invalidateSnapshot(ctx context.Context, shopID int64) {
	if e.cache == nil {
		return
	}
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.cacheGen[shopID]++
	if err := e.cache.Invalidate(ctx, shopID); err != nil {
		e.logger.Warn().Err(err).Int64("shop_id", shopID).Msg("snapshot cache invalidate failed")
	}
}

func (e *Engine) publish(eventType string, entry *models.Entry) {
	payload := events.EntryEventPayload{
		EntryID:  entry.ID,
		ShopID:   entry.ShopID,
		Name:     entry.Name,
		Phone:    entry.Phone,
		Status:   entry.Status,
		Position: entry.Position,
	}
	if err := e.bus.PublishJSON(eventType, payload); err != nil {
		e.logger.Warn().Err(err).Str("event", eventType).Msg("event publish failed")
	}
}
