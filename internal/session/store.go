package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Store хранит состояние диалога по chat id
type Store interface {
	// Get возвращает nil, если состояния нет или оно истекло
	Get(ctx context.Context, chatID int64) (State, error)
	Put(ctx context.Context, chatID int64, state State) error
	Clear(ctx context.Context, chatID int64) error
}

type envelope struct {
	Kind  Kind            `json:"kind"`
	State json.RawMessage `json:"state"`
}

// Encode сериализует состояние вместе с тегом
func Encode(state State) ([]byte, error) {
	body, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session state: %w", err)
	}
	return json.Marshal(envelope{Kind: state.Kind(), State: body})
}

// Decode восстанавливает состояние по тегу
func Decode(data []byte) (State, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode session envelope: %w", err)
	}

	var (
		state State
		err   error
	)
	switch env.Kind {
	case KindChoosingServices:
		var s ChoosingServices
		err = json.Unmarshal(env.State, &s)
		state = s
	case KindChoosingDate:
		var s ChoosingDate
		err = json.Unmarshal(env.State, &s)
		state = s
	case KindChoosingSlot:
		var s ChoosingSlot
		err = json.Unmarshal(env.State, &s)
		state = s
	case KindConfirming:
		var s Confirming
		err = json.Unmarshal(env.State, &s)
		state = s
	case KindRescheduling:
		var s Rescheduling
		err = json.Unmarshal(env.State, &s)
		state = s
	default:
		return nil, fmt.Errorf("unknown session kind %q", env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s state: %w", env.Kind, err)
	}

	return state, nil
}

type memoryEntry struct {
	state   State
	expires time.Time
}

// maxCleanupInterval верхняя граница периода очистки истекших состояний
const maxCleanupInterval = 5 * time.Minute

// MemoryStore хранит состояния в памяти процесса
type MemoryStore struct {
	mu      sync.Mutex
	entries map[int64]memoryEntry
	ttl     time.Duration
	now     func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore создает хранилище; ttl <= 0 означает бессрочное хранение.
// С ttl фоновая горутина периодически удаляет брошенные диалоги до вызова Close.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	m := &MemoryStore{
		entries: make(map[int64]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if ttl > 0 {
		go m.cleanupRoutine(min(ttl, maxCleanupInterval))
	}
	return m
}

func (m *MemoryStore) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.done:
			return
		}
	}
}

// cleanup удаляет истекшие состояния и возвращает их число
func (m *MemoryStore) cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for chatID, entry := range m.entries {
		if !entry.expires.IsZero() && !now.Before(entry.expires) {
			delete(m.entries, chatID)
			removed++
		}
	}
	return removed
}

// Len возвращает число хранимых состояний, включая еще не удаленные истекшие
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close останавливает фоновую очистку
func (m *MemoryStore) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

func (m *MemoryStore) Get(_ context.Context, chatID int64) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[chatID]
	if !ok {
		return nil, nil
	}
	if !entry.expires.IsZero() && !m.now().Before(entry.expires) {
		delete(m.entries, chatID)
		return nil, nil
	}
	return entry.state, nil
}

func (m *MemoryStore) Put(_ context.Context, chatID int64, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{state: state}
	if m.ttl > 0 {
		entry.expires = m.now().Add(m.ttl)
	}
	m.entries[chatID] = entry
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, chatID)
	return nil
}
