package placement

import "sync"

// admission hands out one mutex per baremetal id so placement commits
// against the same node serialize without a fleet-wide lock.
type admission struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAdmission() *admission {
	return &admission{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for id, creating it on first use, and
// returns the matching unlock.
func (a *admission) lock(id string) func() {
	a.mu.Lock()
	m, ok := a.locks[id]
	if !ok {
		m = &sync.Mutex{}
		a.locks[id] = m
	}
	a.mu.Unlock()

	m.Lock()
	return m.Unlock
}
