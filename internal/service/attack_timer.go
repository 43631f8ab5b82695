package service

import (
	"sync"
	"time"
)

// attackTimers holds one pending roll per table, keyed by tag and attack id.
type attackTimers struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newAttackTimers() *attackTimers {
	return &attackTimers{timers: make(map[string]*time.Timer)}
}

func attackKey(tag, id string) string { return tag + "/" + id }

func (a *attackTimers) schedule(tag, id string, delay time.Duration, fn func()) {
	key := attackKey(tag, id)
	a.mu.Lock()
	defer a.mu.Unlock()
	if old, ok := a.timers[key]; ok {
		old.Stop()
	}
	a.timers[key] = time.AfterFunc(delay, func() {
		a.mu.Lock()
		delete(a.timers, key)
		a.mu.Unlock()
		fn()
	})
}

func (a *attackTimers) pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.timers)
}

func (a *attackTimers) stopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, t := range a.timers {
		t.Stop()
		delete(a.timers, key)
	}
}
