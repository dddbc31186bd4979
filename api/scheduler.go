/*
scheduler.go - Background refresh of monthly due notifications

PURPOSE:
  Periodically walks all live sessions and records a due notice for every
  entry whose debit lands in the current month. Handlers do the same refresh
  lazily on list; the scheduler covers users who stay logged in across a
  month boundary without touching the notification endpoints.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Only sessions hold payload keys, so only logged-in users can be
    refreshed; everyone else gets the lazy refresh at next login
  - The (entry, month, type) dedupe in the planner makes re-runs harmless

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewNotificationScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - planner/notify.go: MonthlyDueNotes and the dedupe rule
  - handlers.go: The lazy refresh in ListNotifications
*/
package api

import (
	"log"
	"sync"
	"time"

	"github.com/warp/reserve-engine/engine"
)

// NotificationScheduler refreshes due notices for live sessions.
type NotificationScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewNotificationScheduler creates a new scheduler.
func NewNotificationScheduler(handler *Handler) *NotificationScheduler {
	return &NotificationScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ns *NotificationScheduler) Start() {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if !ns.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ns.ticker = time.NewTicker(ns.CheckInterval)
	ns.wg.Add(1)

	go ns.run()

	log.Printf("[Scheduler] Started with check interval: %v", ns.CheckInterval)
}

// Stop stops the scheduler.
func (ns *NotificationScheduler) Stop() {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.ticker != nil {
		ns.ticker.Stop()
		close(ns.stop)
		ns.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ns *NotificationScheduler) run() {
	defer ns.wg.Done()

	// Run immediately on start
	ns.checkAndRefresh()

	for {
		select {
		case <-ns.ticker.C:
			ns.checkAndRefresh()
		case <-ns.stop:
			return
		}
	}
}

func (ns *NotificationScheduler) checkAndRefresh() {
	today := engine.MonthOf(ns.Handler.Now())

	refreshed := 0
	ns.Handler.Sessions.Each(func(s Session) {
		if _, err := ns.Handler.refreshDueNotes(s, today); err != nil {
			log.Printf("[Scheduler] Error refreshing notifications for %s: %v", s.Username, err)
			return
		}
		refreshed++
	})

	if refreshed > 0 {
		log.Printf("[Scheduler] Refreshed due notices for %d session(s)", refreshed)
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (ns *NotificationScheduler) RunNow() {
	ns.checkAndRefresh()
}
