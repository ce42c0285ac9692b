package usecase

import (
	"sync"

	"github.com/Ankur-Sura/Nivesh-Copilot/internal/domain"
)

type symbolMutex struct {
	mu   sync.Mutex
	refs int
}

// SymbolLocker serialises work per instrument. Entries are dropped once no
// goroutine holds or waits on them.
type SymbolLocker struct {
	mu    sync.Mutex
	locks map[string]*symbolMutex
}

func NewSymbolLocker() *SymbolLocker {
	return &SymbolLocker{locks: make(map[string]*symbolMutex)}
}

// Lock blocks until the instrument is free and returns the matching unlock func.
func (l *SymbolLocker) Lock(instrument string) func() {
	key := domain.NormalizeSymbol(instrument)

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &symbolMutex{}
		l.locks[key] = m
	}
	m.refs++
	l.mu.Unlock()

	m.mu.Lock()

	return func() {
		m.mu.Unlock()

		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *SymbolLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
