package schedule

const (
	CodeStageBlocked  = "STAGE_BLOCKED"
	CodeLeaderOnly    = "LEADER_ONLY"
	CodeMemberOnly    = "MEMBER_ONLY"
	CodeUnknownAction = "UNKNOWN_ACTION"
	CodeTripNotFound  = "TRIP_NOT_FOUND"
	CodeValidation    = "VALIDATION"
)

// Blocked-action reasons. Callers and tests match on these strings, so
// they are fixed here rather than composed inline.
const (
	ReasonAlreadyLocked     = "Trip is already locked"
	ReasonSchedulingClosed  = "Dates are locked; scheduling is closed"
	ReasonAvailabilityFroze = "Availability is frozen while voting is open"
	ReasonNoWindowsYet      = "No availability windows yet"
	ReasonNoActiveProposal  = "No active date proposal to react to"
	ReasonProposalRace      = "Another date proposal is already active"
)

// Error is the stable rejection every blocked action returns. The code is
// machine-matched; the message tells the user why, specifically.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func stageBlocked(reason string) *Error {
	return &Error{Code: CodeStageBlocked, Message: reason}
}

func leaderOnly(action string) *Error {
	return &Error{Code: CodeLeaderOnly, Message: "only the trip leader can " + action}
}

func memberOnly() *Error {
	return &Error{Code: CodeMemberOnly, Message: "you are not an active member of this trip"}
}

func validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

func tripNotFound() *Error {
	return &Error{Code: CodeTripNotFound, Message: "trip not found"}
}

func unknownAction(kind string) *Error {
	return &Error{Code: CodeUnknownAction, Message: "unknown action type: " + kind}
}
