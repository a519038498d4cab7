package engine

import "sync"

// channelLocks serializes transitions per incident channel: at most one
// in-flight transition per channel id at any time. Entries are reference
// counted and dropped when the last holder releases, so a deleted incident
// leaves nothing behind and a concurrent waiter can never end up on a
// different mutex than a newcomer.
type channelLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newChannelLocks() *channelLocks {
	return &channelLocks{locks: make(map[string]*lockEntry)}
}

// acquire blocks until the channel's lock is held and returns the release func.
func (c *channelLocks) acquire(channelID string) func() {
	c.mu.Lock()
	e, ok := c.locks[channelID]
	if !ok {
		e = &lockEntry{}
		c.locks[channelID] = e
	}
	e.refs++
	c.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		c.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(c.locks, channelID)
		}
		c.mu.Unlock()
	}
}
