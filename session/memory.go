package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the record in process memory.
type MemoryStore struct {
	mu        sync.Mutex
	record    Record
	savedAt   time.Time
	username  string
	retention time.Duration
	now       func() time.Time

	saves int
}

// NewMemoryStore returns an empty store with the default retention.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{retention: DefaultRetention, now: time.Now}
}

// WithClock replaces the clock used for the retention ceiling.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

func (m *MemoryStore) Load(context.Context) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record.IsZero() {
		return Record{}, nil
	}
	if m.now().Sub(m.savedAt) > m.retention {
		m.record = Record{}
		return Record{}, nil
	}
	return cloneRecord(m.record), nil
}

func (m *MemoryStore) Save(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = cloneRecord(r)
	m.savedAt = m.now()
	m.saves++
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = Record{}
	return nil
}

func (m *MemoryStore) RememberUsername(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.username = username
	return nil
}

func (m *MemoryStore) RememberedUsername(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.username, nil
}

func (m *MemoryStore) ForgetUsername(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.username = ""
	return nil
}

// Saves reports how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func cloneRecord(r Record) Record {
	r.User = r.User.Clone()
	return r
}
