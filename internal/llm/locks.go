package llm

import "sync"

// conversationLocks hands out one mutex per conversation id. Entries are
// dropped once no caller holds or awaits them.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[string]*refLock)}
}

func (l *conversationLocks) lock(id string) (unlock func()) {
	l.mu.Lock()
	rl, ok := l.locks[id]
	if !ok {
		rl = &refLock{}
		l.locks[id] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()

		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *conversationLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
