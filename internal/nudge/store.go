package nudge

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is what the suppression cache remembers about a surfaced nudge.
// It expires on its own; it is a cache, not a ledger.
type Event struct {
	DedupeKey string    `json:"dedupe_key"`
	Status    string    `json:"status"`
	ShownAt   time.Time `json:"shown_at"`
}

type Store struct {
	redis     *redis.Client
	retention time.Duration
	now       func() time.Time
}

func NewStore(redisClient *redis.Client, retention time.Duration) *Store {
	return &Store{redis: redisClient, retention: retention, now: time.Now}
}

func eventKey(tripID, userID, dedupeKey string) string {
	return "nudges:" + tripID + ":" + userID + ":" + dedupeKey
}

func recencyKey(tripID, userID string) string {
	return "nudges:" + tripID + ":" + userID + ":last"
}

// Record upserts the event for (trip, user, dedupeKey). Calling it twice for
// the same triple overwrites in place rather than duplicating. The recency
// key tracks the latest shown nudge for correlation lookups.
func (s *Store) Record(ctx context.Context, tripID, userID, dedupeKey, status string) error {
	ev := Event{DedupeKey: dedupeKey, Status: status, ShownAt: s.now().UTC()}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, eventKey(tripID, userID, dedupeKey), raw, s.retention).Err(); err != nil {
		return err
	}
	if status == StatusShown {
		return s.redis.Set(ctx, recencyKey(tripID, userID), raw, s.retention).Err()
	}
	return nil
}

// Lookup returns the recorded event for the triple, or nil if none survives.
func (s *Store) Lookup(ctx context.Context, tripID, userID, dedupeKey string) (*Event, error) {
	return s.get(ctx, eventKey(tripID, userID, dedupeKey))
}

// LastShown returns the most recent nudge shown to the user in the trip.
func (s *Store) LastShown(ctx context.Context, tripID, userID string) (*Event, error) {
	return s.get(ctx, recencyKey(tripID, userID))
}

func (s *Store) get(ctx context.Context, key string) (*Event, error) {
	raw, err := s.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Filter drops every candidate whose dedupe key was shown or dismissed to
// this user within that candidate's own cooldown. Each candidate is checked
// on its own; types have independent cooldowns.
func (s *Store) Filter(ctx context.Context, tripID, userID string, candidates []Nudge) ([]Nudge, error) {
	var surviving []Nudge
	for _, n := range candidates {
		ev, err := s.Lookup(ctx, tripID, userID, n.DedupeKey)
		if err != nil {
			return nil, err
		}
		if ev != nil && (ev.Status == StatusShown || ev.Status == StatusDismissed) &&
			s.now().Sub(ev.ShownAt) < n.Cooldown {
			continue
		}
		surviving = append(surviving, n)
	}
	return surviving, nil
}
