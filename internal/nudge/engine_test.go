package nudge

import (
	"testing"

	"backend-tripline/internal/trip"
)

func findType(t *testing.T, nudges []Nudge, nudgeType string) Nudge {
	t.Helper()
	for _, n := range nudges {
		if n.Type == nudgeType {
			return n
		}
	}
	t.Fatalf("expected nudge %q in %+v", nudgeType, nudges)
	return Nudge{}
}

func hasType(nudges []Nudge, nudgeType string) bool {
	for _, n := range nudges {
		if n.Type == nudgeType {
			return true
		}
	}
	return false
}

func TestComputeLockedIsTerminal(t *testing.T) {
	nudges := Compute("trip-1", Metrics{Locked: true, WindowCount: 3, TravelerCount: 4, ProposalActive: true})
	if len(nudges) != 1 {
		t.Fatalf("locked trip should produce only the locked nudge, got %+v", nudges)
	}
	n := nudges[0]
	if n.Type != TypeDatesLocked || n.Channel != ChannelMessage || n.Audience != AudienceAll {
		t.Fatalf("unexpected locked nudge: %+v", n)
	}
	if n.DedupeKey != "trip-1:dates_locked" {
		t.Fatalf("dedupe key must be trip id + type, got %q", n.DedupeKey)
	}
	if n.Cooldown != CooldownOnce {
		t.Fatalf("locked nudge fires once")
	}
}

func TestComputeFirstWindow(t *testing.T) {
	nudges := Compute("trip-1", Metrics{WindowCount: 1, TravelerCount: 3, RespondentCount: 3})
	n := findType(t, nudges, TypeFirstWindow)
	if n.Channel != ChannelMessage || n.Audience != AudienceAll || n.Cooldown != CooldownOnce {
		t.Fatalf("unexpected first-window nudge: %+v", n)
	}

	if hasType(Compute("trip-1", Metrics{WindowCount: 0, TravelerCount: 3}), TypeFirstWindow) {
		t.Fatalf("no windows means no first-window nudge")
	}
}

func TestComputeThresholdReached(t *testing.T) {
	m := Metrics{
		WindowCount: 2, TravelerCount: 4, RespondentCount: 4,
		ProposalActive: true, ReactionCount: 2, WorksCount: 2, Threshold: 2,
	}
	n := findType(t, Compute("trip-1", m), TypeThresholdReached)
	if n.Channel != ChannelPush || n.Audience != AudienceLeader {
		t.Fatalf("threshold nudge goes to the leader as push: %+v", n)
	}

	m.WorksCount = 1
	if hasType(Compute("trip-1", m), TypeThresholdReached) {
		t.Fatalf("below threshold must not fire")
	}
}

func TestComputeAwaiting(t *testing.T) {
	open := Metrics{WindowCount: 1, TravelerCount: 3, RespondentCount: 1}
	n := findType(t, Compute("trip-1", open), TypeAwaitingWindows)
	if n.Audience != AudienceLeader || n.Cooldown != CooldownAwaitingWindows {
		t.Fatalf("unexpected awaiting-windows nudge: %+v", n)
	}

	proposed := Metrics{WindowCount: 2, TravelerCount: 3, RespondentCount: 3, ProposalActive: true, ReactionCount: 1, Threshold: 2}
	r := findType(t, Compute("trip-1", proposed), TypeAwaitingReactions)
	if r.Audience != AudienceAll || r.Cooldown != CooldownAwaitingReactions {
		t.Fatalf("unexpected awaiting-reactions nudge: %+v", r)
	}
	if hasType(Compute("trip-1", proposed), TypeAwaitingWindows) {
		t.Fatalf("awaiting-windows is a pre-proposal nudge")
	}

	proposed.ReactionCount = 3
	if hasType(Compute("trip-1", proposed), TypeAwaitingReactions) {
		t.Fatalf("everyone reacted; nothing to chase")
	}
}

func TestRecipientsAndVisibility(t *testing.T) {
	roster := trip.Roster{LeaderID: "u1", ActiveIDs: []string{"u1", "u2", "u3"}}

	leaderOnly := Nudge{Audience: AudienceLeader}
	if got := leaderOnly.Recipients(roster); len(got) != 1 || got[0] != "u1" {
		t.Fatalf("leader audience resolves to the leader, got %v", got)
	}
	if leaderOnly.VisibleTo(roster, "u2") {
		t.Fatalf("leader nudge invisible to travelers")
	}

	everyone := Nudge{Audience: AudienceAll}
	if got := everyone.Recipients(roster); len(got) != 3 {
		t.Fatalf("all audience resolves to active roster, got %v", got)
	}
	if everyone.VisibleTo(roster, "outsider") {
		t.Fatalf("non-members see nothing")
	}

	if got := leaderOnly.Recipients(trip.Roster{}); got != nil {
		t.Fatalf("empty roster has no leader to notify")
	}
}
