package events

import "sync"

// DefaultRingCapacity bounds the log tail buffer.
const DefaultRingCapacity = 10000

// Ring is a bounded line buffer; when full, the oldest lines are evicted
// first. Safe for concurrent use.
type Ring struct {
	mu    sync.Mutex
	buf   []string
	head  int
	count int
}

// NewRing creates a ring with the given capacity (DefaultRingCapacity when
// capacity <= 0).
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Ring{buf: make([]string, capacity)}
}

// Append adds lines, evicting the oldest when over capacity. It returns the
// number of evicted lines.
func (r *Ring) Append(lines ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for _, line := range lines {
		if r.count == len(r.buf) {
			r.head = (r.head + 1) % len(r.buf)
			evicted++
		} else {
			r.count++
		}
		tail := (r.head + r.count - 1) % len(r.buf)
		r.buf[tail] = line
	}
	return evicted
}

// Len returns the number of buffered lines.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Snapshot returns the buffered lines, oldest first.
func (r *Ring) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Follower tracks whether the viewer is close enough to the bottom of the
// log view for new content to force a scroll. A manual scroll away from the
// bottom disables auto-follow; scrolling back within the threshold restores
// it.
type Follower struct {
	mu        sync.Mutex
	threshold int
	follow    bool
}

// DefaultFollowThreshold is the distance from the bottom, in the surface's
// own units (pixels, rows), still considered "at the bottom".
const DefaultFollowThreshold = 40

func NewFollower(threshold int) *Follower {
	if threshold <= 0 {
		threshold = DefaultFollowThreshold
	}
	return &Follower{threshold: threshold, follow: true}
}

// UpdateScroll feeds the current distance from the bottom.
func (f *Follower) UpdateScroll(distanceFromBottom int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.follow = distanceFromBottom <= f.threshold
}

// ShouldFollow reports whether new content should force scroll-to-bottom.
func (f *Follower) ShouldFollow() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.follow
}
