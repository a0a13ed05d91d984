package pypi

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Throttle is a cooldown gate shared by all requests a client makes.
//
// The index does not publish a request budget, but it does answer with
// Retry-After when it wants callers to back off. UpdateFromResponse records
// that, and Wait blocks every worker until the cooldown passes.
type Throttle struct {
	mu       sync.Mutex
	cooldown time.Time
	now      func() time.Time
	notifyCh chan struct{}
}

func NewThrottle() *Throttle {
	return &Throttle{
		now:      time.Now,
		notifyCh: make(chan struct{}),
	}
}

// Wait blocks while a cooldown is active, or until ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	for {
		t.mu.Lock()
		now := t.now()
		if !now.Before(t.cooldown) {
			t.mu.Unlock()
			return nil
		}
		until := t.cooldown
		ch := t.notifyCh
		t.mu.Unlock()

		wait := until.Sub(now)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return ctx.Err()
		case <-ch:
			if !timer.Stop() {
				<-timer.C
			}
		case <-timer.C:
		}
	}
}

// UpdateFromResponse extends the cooldown when the response carries a
// Retry-After header (seconds form only; the index does not send HTTP dates).
func (t *Throttle) UpdateFromResponse(resp *http.Response) {
	if t == nil || resp == nil {
		return
	}
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return
	}
	seconds, err := strconv.Atoi(retryAfter)
	if err != nil || seconds <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	until := t.now().Add(time.Duration(seconds) * time.Second)
	if until.After(t.cooldown) {
		t.cooldown = until
		t.signalLocked()
	}
}

// CooldownUntil reports the end of the current cooldown, or a zero time when
// none is active.
func (t *Throttle) CooldownUntil() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cooldown
}

func (t *Throttle) signalLocked() {
	close(t.notifyCh)
	t.notifyCh = make(chan struct{})
}
