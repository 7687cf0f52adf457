package shard

import "time"

// positionBroadcastInterval caps how often one player's position fans out.
const positionBroadcastInterval = 50 * time.Millisecond

// positionThrottle tracks the last position broadcast per player. It only
// gates update_position; state-changing events are never dropped for timing.
type positionThrottle struct {
	minInterval time.Duration
	lastEmit    map[int64]time.Time
}

func newPositionThrottle(minInterval time.Duration) *positionThrottle {
	return &positionThrottle{
		minInterval: minInterval,
		lastEmit:    make(map[int64]time.Time),
	}
}

// shouldEmit reports whether a broadcast may go out at now, recording now as
// the new last-emit time when it may.
func (t *positionThrottle) shouldEmit(userID int64, now time.Time) bool {
	if last, ok := t.lastEmit[userID]; ok && now.Sub(last) < t.minInterval {
		return false
	}
	t.lastEmit[userID] = now
	return true
}

func (t *positionThrottle) forget(userID int64) {
	delete(t.lastEmit, userID)
}
