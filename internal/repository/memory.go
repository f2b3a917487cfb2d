package repository

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRepository keeps contest logs in process. It is used when no
// database is configured; logs do not survive a restart.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID uint
	logs   map[string]ContestLog
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{logs: make(map[string]ContestLog)}
}

func (r *MemoryRepository) SaveLog(_ context.Context, log *ContestLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.logs[log.RequestID]; ok {
		return fmt.Errorf("duplicate request id %q", log.RequestID)
	}
	r.nextID++
	log.ID = r.nextID
	r.logs[log.RequestID] = *log
	return nil
}

func (r *MemoryRepository) FindByRequestID(_ context.Context, requestID string) (*ContestLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	log, ok := r.logs[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	return &log, nil
}
