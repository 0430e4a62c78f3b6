package nitram

import (
	"sync"
	"time"

	"github.com/martinschaer/nitram/internal/logger"
	"github.com/martinschaer/nitram/session"
)

// connTracker is the engine's view of which connection ids currently
// have a live ServeConn goroutine pair. It backs the periodic janitor
// sweep: a defensive pass that drops any session store entry whose
// connection is no longer tracked here, in case a removeSession call
// was ever lost (e.g. to a panic recovered upstream of ServeConn).
type connTracker struct {
	mu   sync.Mutex
	live map[session.ConnID]struct{}
}

func newConnTracker() *connTracker {
	return &connTracker{live: make(map[session.ConnID]struct{})}
}

func (t *connTracker) mark(id session.ConnID) {
	t.mu.Lock()
	t.live[id] = struct{}{}
	t.mu.Unlock()
}

func (t *connTracker) unmark(id session.ConnID) {
	t.mu.Lock()
	delete(t.live, id)
	t.mu.Unlock()
}

func (t *connTracker) isLive(id session.ConnID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.live[id]
	return ok
}

// StartJanitor runs the periodic session sweep: every interval, it
// drops session-store entries whose connection ServeConn is no longer
// tracking. It returns a stop function; call it to end the sweep (e.g.
// on graceful shutdown).
func (e *Engine) StartJanitor(interval time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				removed := e.store.Sweep(e.tracker.isLive)
				if removed > 0 {
					logger.Janitor().Warn().Int("removed", removed).Msg("janitor swept leaked sessions")
				}
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
