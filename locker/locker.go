// Package locker serialisiert Arbeit pro Schlüssel, z.B. die Neuberechnung eines Projekts.
package locker

import (
	"context"
	"sync"
	"time"
)

// Locker vergibt exklusive, zeitlich begrenzte Sperren. TryLock blockiert nicht:
// ist der Schlüssel belegt, ist ok false. release ist idempotent.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Memory sperrt innerhalb eines Prozesses.
type Memory struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewMemory erstellt einen prozesslokalen Locker.
func NewMemory() *Memory {
	return &Memory{held: map[string]time.Time{}, now: time.Now}
}

func (m *Memory) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expires, ok := m.held[key]; ok && now.Before(expires) {
		return nil, false, nil
	}
	expires := now.Add(ttl)
	m.held[key] = expires

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			// nur die eigene Sperre freigeben, nicht eine nach Ablauf neu vergebene
			if m.held[key].Equal(expires) {
				delete(m.held, key)
			}
		})
	}
	return release, true, nil
}
