package nudge

import (
	"context"
	"log"
	"time"

	"backend-tripline/internal/db"

	"github.com/google/uuid"
)

// Correlator writes a durable record when a tracked action lands shortly
// after a nudge was shown. Suppression prevents over-notifying; this
// measures whether notifying worked. Failures are logged, never surfaced.
type Correlator struct {
	db     db.Querier
	store  *Store
	window time.Duration
	now    func() time.Time
}

func NewCorrelator(q db.Querier, store *Store, window time.Duration) *Correlator {
	return &Correlator{db: q, store: store, window: window, now: time.Now}
}

// Observe checks whether the user's most recent nudge falls inside the
// correlation window and, if so, records the display-to-action latency.
// It never returns an error: this is best-effort telemetry.
func (c *Correlator) Observe(ctx context.Context, tripID, userID, actionType string) {
	ev, err := c.store.LastShown(ctx, tripID, userID)
	if err != nil {
		log.Printf("correlation lookup error: %v", err)
		return
	}
	if ev == nil {
		return
	}

	latency := c.now().Sub(ev.ShownAt)
	if latency < 0 || latency > c.window {
		return
	}

	_, err = c.db.Exec(ctx, `
		INSERT INTO nudge_correlations (id, trip_id, user_id, dedupe_key, action_type, latency_seconds)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, uuid.NewString(), tripID, userID, ev.DedupeKey, actionType, int(latency.Seconds()))
	if err != nil {
		log.Printf("correlation insert error: %v", err)
	}
}
