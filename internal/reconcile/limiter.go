package reconcile

import (
	"sync"
	"time"

	"github.com/nexu-chat/nexu/internal/identity"
)

// replyLimiter caps how many reconciliation replies nexu will send to one
// peer per window, guarding against the mutual-reply storm two peers
// joining at the same instant can otherwise trigger.
type replyLimiter struct {
	window time.Duration
	max    int

	mu      sync.Mutex
	buckets map[identity.ID]*bucket
}

type bucket struct {
	windowStart time.Time
	count       int
}

func newReplyLimiter(max int, window time.Duration) *replyLimiter {
	return &replyLimiter{window: window, max: max, buckets: make(map[identity.ID]*bucket)}
}

// allow reports whether one more reply to peer is permitted right now,
// consuming one unit of budget if so.
func (l *replyLimiter) allow(peer identity.ID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[peer]
	if !ok || now.Sub(b.windowStart) >= l.window {
		b = &bucket{windowStart: now}
		l.buckets[peer] = b
	}
	if b.count >= l.max {
		return false
	}
	b.count++
	return true
}
