package trip

import "time"

const (
	ModeCollaborative = "collaborative"
	ModeHosted        = "hosted"

	RoleLeader   = "leader"
	RoleTraveler = "traveler"
)

// Trip is the coordination root. Locked dates are set exactly once, either
// at creation (hosted mode) or by the lock action; nothing else writes them.
type Trip struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Mode        string     `json:"mode"`
	CreatedBy   string     `json:"created_by"`
	LockedStart *time.Time `json:"locked_start_date,omitempty"`
	LockedEnd   *time.Time `json:"locked_end_date,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (t Trip) Locked() bool    { return t.LockedStart != nil && t.LockedEnd != nil }
func (t Trip) Cancelled() bool { return t.CancelledAt != nil }

type Member struct {
	TripID   string    `json:"trip_id"`
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	Status   string    `json:"status"`
	JoinedAt time.Time `json:"joined_at"`
}

// Roster is the authoritative view of who is currently in a trip. It is
// recomputed from the live rows on every call, never cached.
type Roster struct {
	LeaderID  string   `json:"leader_id"`
	ActiveIDs []string `json:"active_ids"`
}

func (r Roster) IsActive(userID string) bool {
	for _, id := range r.ActiveIDs {
		if id == userID {
			return true
		}
	}
	return false
}
