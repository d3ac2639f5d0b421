// Package schedule drives a trip from free-form availability to locked
// dates. The funnel stage is derived from the live rows on every call;
// nothing stores it, so nothing can drift from it.
package schedule

import (
	"time"

	"backend-tripline/internal/overlap"
)

const (
	StanceWorks = "works"
	StanceMaybe = "maybe"
	StanceNo    = "no"

	ReactionWorks  = "works"
	ReactionCaveat = "caveat"
	ReactionCant   = "cant"
)

// WindowProposal is one participant's candidate availability range,
// normalized from their free text. Archived windows are kept, never deleted.
type WindowProposal struct {
	ID         string    `json:"id"`
	TripID     string    `json:"trip_id"`
	UserID     string    `json:"user_id"`
	SourceText string    `json:"source_text"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	Precision  string    `json:"precision"`
	Archived   bool      `json:"archived"`
	CreatedAt  time.Time `json:"created_at"`
}

type WindowPreference struct {
	WindowID  string    `json:"window_id"`
	UserID    string    `json:"user_id"`
	Stance    string    `json:"stance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DateProposal is the leader's concrete candidate range. At most one is
// active per trip; issuing a new one retires the old and its reactions.
type DateProposal struct {
	ID         string    `json:"id"`
	TripID     string    `json:"trip_id"`
	ProposedBy string    `json:"proposed_by"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

type DateReaction struct {
	ProposalID string    `json:"proposal_id"`
	UserID     string    `json:"user_id"`
	Stance     string    `json:"stance"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Snapshot is the trip's scheduling state recomputed from live records.
// It is never persisted as its own entity.
type Snapshot struct {
	Stage           Stage                `json:"stage"`
	TravelerCount   int                  `json:"traveler_count"`
	RespondentCount int                  `json:"respondent_count"`
	Windows         []WindowProposal     `json:"windows"`
	BestRange       *overlap.BestOverlap `json:"best_range,omitempty"`
	Proposal        *DateProposal        `json:"proposal,omitempty"`
	Reactions       []DateReaction       `json:"reactions,omitempty"`
	WorksCount      int                  `json:"works_count"`
	Threshold       int                  `json:"threshold"`
}
