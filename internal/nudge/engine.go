// Package nudge decides when to interrupt which traveler about scheduling
// progress. Computation is pure; suppression lives in a redis cache;
// correlation records are durable telemetry and never fail the caller.
package nudge

import (
	"time"

	"backend-tripline/internal/trip"
)

const (
	ChannelMessage = "message"
	ChannelPush    = "push"

	AudienceLeader = "leader"
	AudienceAll    = "all"

	StatusShown     = "shown"
	StatusDismissed = "dismissed"

	TypeFirstWindow       = "first_window"
	TypeThresholdReached  = "threshold_reached"
	TypeDatesLocked       = "dates_locked"
	TypeAwaitingWindows   = "awaiting_windows"
	TypeAwaitingReactions = "awaiting_reactions"
)

// Cooldowns per type. One-shot nudges use a cooldown far beyond the life of
// any trip rather than a special case in the filter.
const (
	CooldownOnce              = 10 * 365 * 24 * time.Hour
	CooldownAwaitingWindows   = 24 * time.Hour
	CooldownThresholdReached  = 24 * time.Hour
	CooldownAwaitingReactions = 12 * time.Hour
)

type Nudge struct {
	Type      string        `json:"type"`
	Channel   string        `json:"channel"`
	Audience  string        `json:"audience"`
	Priority  int           `json:"priority"`
	Title     string        `json:"title"`
	Body      string        `json:"body"`
	DedupeKey string        `json:"dedupe_key"`
	Cooldown  time.Duration `json:"-"`
}

// Metrics is the snapshot the engine reasons over. It is derived from live
// rows by the caller on every evaluation, never persisted.
type Metrics struct {
	TravelerCount   int
	WindowCount     int
	RespondentCount int
	ProposalActive  bool
	ReactionCount   int
	WorksCount      int
	Threshold       int
	Locked          bool
}

// Key builds the stable dedupe key for a nudge type on a trip. No timestamp
// goes in; the cooldown store decides when the same key may fire again.
func Key(tripID, nudgeType string) string {
	return tripID + ":" + nudgeType
}

// Compute returns every nudge the current metrics justify, unsuppressed.
// Callers run the result through a Store filter before anything is shown.
func Compute(tripID string, m Metrics) []Nudge {
	if m.Locked {
		return []Nudge{{
			Type:      TypeDatesLocked,
			Channel:   ChannelMessage,
			Audience:  AudienceAll,
			Priority:  1,
			Title:     "Trip dates are locked",
			Body:      "The leader locked the trip dates. Scheduling is closed.",
			DedupeKey: Key(tripID, TypeDatesLocked),
			Cooldown:  CooldownOnce,
		}}
	}

	var out []Nudge

	if m.WindowCount >= 1 {
		out = append(out, Nudge{
			Type:      TypeFirstWindow,
			Channel:   ChannelMessage,
			Audience:  AudienceAll,
			Priority:  2,
			Title:     "Availability is rolling in",
			Body:      "The first availability window was shared. Add yours so the group can find overlap.",
			DedupeKey: Key(tripID, TypeFirstWindow),
			Cooldown:  CooldownOnce,
		})
	}

	if m.ProposalActive && m.WorksCount >= m.Threshold && m.Threshold > 0 {
		out = append(out, Nudge{
			Type:      TypeThresholdReached,
			Channel:   ChannelPush,
			Audience:  AudienceLeader,
			Priority:  1,
			Title:     "Ready to lock",
			Body:      "Enough travelers said the proposed dates work. You can lock them in.",
			DedupeKey: Key(tripID, TypeThresholdReached),
			Cooldown:  CooldownThresholdReached,
		})
	}

	if m.ProposalActive && m.ReactionCount < m.TravelerCount {
		out = append(out, Nudge{
			Type:      TypeAwaitingReactions,
			Channel:   ChannelPush,
			Audience:  AudienceAll,
			Priority:  3,
			Title:     "Dates proposed",
			Body:      "A date range is on the table. Say whether it works for you.",
			DedupeKey: Key(tripID, TypeAwaitingReactions),
			Cooldown:  CooldownAwaitingReactions,
		})
	}

	if !m.ProposalActive && m.WindowCount >= 1 && m.RespondentCount < m.TravelerCount {
		out = append(out, Nudge{
			Type:      TypeAwaitingWindows,
			Channel:   ChannelPush,
			Audience:  AudienceLeader,
			Priority:  3,
			Title:     "Still waiting on availability",
			Body:      "Some travelers haven't shared windows yet. A reminder from you usually helps.",
			DedupeKey: Key(tripID, TypeAwaitingWindows),
			Cooldown:  CooldownAwaitingWindows,
		})
	}

	return out
}

// Recipients resolves the audience selector against the live roster.
func (n Nudge) Recipients(roster trip.Roster) []string {
	if n.Audience == AudienceLeader {
		if roster.LeaderID == "" {
			return nil
		}
		return []string{roster.LeaderID}
	}
	return roster.ActiveIDs
}

// VisibleTo reports whether the nudge's audience includes the given user.
func (n Nudge) VisibleTo(roster trip.Roster, userID string) bool {
	if n.Audience == AudienceLeader {
		return roster.LeaderID == userID
	}
	return roster.IsActive(userID)
}
