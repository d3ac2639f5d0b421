package schedule

import "backend-tripline/internal/trip"

type Stage string

const (
	StageNoDates      Stage = "NO_DATES"
	StageWindowsOpen  Stage = "WINDOWS_OPEN"
	StageDateProposed Stage = "DATE_PROPOSED"
	StageReadyToLock  Stage = "READY_TO_LOCK"
	StageDatesLocked  Stage = "DATES_LOCKED"
	StageHostedLocked Stage = "HOSTED_LOCKED"
)

func (s Stage) Locked() bool {
	return s == StageDatesLocked || s == StageHostedLocked
}

// Threshold is the number of "works" reactions needed before the trip is
// considered ready to lock: ceil(activeTravelers / 2).
func Threshold(travelerCount int) int {
	return (travelerCount + 1) / 2
}

// DeriveStage computes the funnel stage from current records. Pure: the
// same inputs always give the same stage, and no handler ever stores one.
func DeriveStage(t trip.Trip, activeWindows int, proposal *DateProposal, worksCount, travelerCount int) Stage {
	if t.Locked() {
		if t.Mode == trip.ModeHosted {
			return StageHostedLocked
		}
		return StageDatesLocked
	}
	if proposal != nil {
		if worksCount >= Threshold(travelerCount) && travelerCount > 0 {
			return StageReadyToLock
		}
		return StageDateProposed
	}
	if activeWindows >= 1 {
		return StageWindowsOpen
	}
	return StageNoDates
}
