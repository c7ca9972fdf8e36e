package session

import "time"

// PresenceTracker remembers when each label was last seen so a label is
// reported once per appearance rather than once per frame.
type PresenceTracker struct {
	expiry   time.Duration
	lastSeen map[string]time.Time
}

// NewPresenceTracker creates a tracker that forgets labels unseen for
// longer than expiry.
func NewPresenceTracker(expiry time.Duration) *PresenceTracker {
	return &PresenceTracker{expiry: expiry, lastSeen: make(map[string]time.Time)}
}

// Seen records label at now and reports whether it was absent before.
func (p *PresenceTracker) Seen(label string, now time.Time) bool {
	_, present := p.lastSeen[label]
	p.lastSeen[label] = now
	return !present
}

// Expire forgets labels last seen more than expiry before now.
func (p *PresenceTracker) Expire(now time.Time) {
	for label, last := range p.lastSeen {
		if now.Sub(last) > p.expiry {
			delete(p.lastSeen, label)
		}
	}
}

// Active returns the number of labels currently present.
func (p *PresenceTracker) Active() int { return len(p.lastSeen) }

// Reset forgets every label.
func (p *PresenceTracker) Reset() {
	p.lastSeen = make(map[string]time.Time)
}
