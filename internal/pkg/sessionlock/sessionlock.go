package sessionlock

import "sync"

// Keyed mutex: serializes all writers of one recording session without
// coupling unrelated sessions. Entries are never evicted; the key space is
// bounded by the number of live sessions in a single process.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New() *Locker {
	return &Locker{
		locks: make(map[string]*sync.Mutex),
	}
}

func (l *Locker) Lock(key string) {
	l.get(key).Lock()
}

func (l *Locker) Unlock(key string) {
	l.get(key).Unlock()
}

func (l *Locker) get(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}
