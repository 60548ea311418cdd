package dualcam

import "sync"

// Clock tracks the latest presentation timestamp observed per stream and
// derives the safe session end time used at shutdown.
//
// Timestamps are written by the ingestion router from the capture callback
// contexts and read by the coordinator during stop, so access is guarded by
// a single short-lived mutex.
type Clock struct {
	mu   sync.Mutex
	last [3]int64
	seen [3]bool
}

// NewClock creates an empty clock.
func NewClock() *Clock {
	return &Clock{}
}

// RecordPTS notes the latest accepted timestamp for a stream. Older
// timestamps are ignored so a late sample can never move the clock backward.
func (c *Clock) RecordPTS(id StreamID, pts int64) {
	if id < 0 || int(id) >= len(c.last) {
		return
	}
	c.mu.Lock()
	if !c.seen[id] || pts > c.last[id] {
		c.last[id] = pts
		c.seen[id] = true
	}
	c.mu.Unlock()
}

// LastPTS returns the latest recorded timestamp for a stream.
func (c *Clock) LastPTS(id StreamID) (int64, bool) {
	if id < 0 || int(id) >= len(c.last) {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last[id], c.seen[id]
}

// SafeEndPTS returns the minimum of the last observed timestamps across all
// streams that delivered samples. Ending every output at this cutoff
// guarantees no file carries a frozen video tail or unmatched audio beyond
// the other streams' last real sample. Returns false if nothing was recorded.
func (c *Clock) SafeEndPTS() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var end int64
	var any bool
	for i := range c.last {
		if !c.seen[i] {
			continue
		}
		if !any || c.last[i] < end {
			end = c.last[i]
		}
		any = true
	}
	return end, any
}

// Reset clears all recorded timestamps, called at session start so a prior
// recording can never influence the next cutoff.
func (c *Clock) Reset() {
	c.mu.Lock()
	for i := range c.last {
		c.last[i] = 0
		c.seen[i] = false
	}
	c.mu.Unlock()
}
