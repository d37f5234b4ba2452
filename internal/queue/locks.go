package queue

import "sync"

// shopLocks hands out one mutex per shop so mutations of the same shop are
// serialized while different shops proceed in parallel.
type shopLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newShopLocks() *shopLocks {
	return &shopLocks{locks: make(map[int64]*sync.Mutex)}
}

func (s *shopLocks) get(shopID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[shopID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[shopID] = lock
	}
	return lock
}
