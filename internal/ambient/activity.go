package ambient

import (
	"sync"
	"time"
)

// Activity is the process-wide time of the last inbound chat message.
type Activity struct {
	mu   sync.Mutex
	last time.Time
}

func NewActivity(now time.Time) *Activity {
	return &Activity{last: now}
}

func (a *Activity) Touch(t time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t.After(a.last) {
		a.last = t
	}
}

func (a *Activity) Last() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}
