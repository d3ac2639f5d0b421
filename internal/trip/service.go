package trip

import (
	"context"
	"errors"
	"time"

	"backend-tripline/internal/db"

	"github.com/google/uuid"
)

type Service struct {
	db  db.Querier
	now func() time.Time
}

func NewService(q db.Querier) *Service {
	return &Service{db: q, now: time.Now}
}

func (s *Service) CreateTrip(ctx context.Context, input Trip) (Trip, error) {
	if input.Name == "" || input.CreatedBy == "" {
		return Trip{}, errors.New("name and created_by required")
	}
	if input.Mode == "" {
		input.Mode = ModeCollaborative
	}
	if input.Mode != ModeCollaborative && input.Mode != ModeHosted {
		return Trip{}, errors.New("mode must be collaborative or hosted")
	}
	// Hosted trips are born with fixed dates and skip the funnel entirely.
	if input.Mode == ModeHosted && (input.LockedStart == nil || input.LockedEnd == nil) {
		return Trip{}, errors.New("hosted trips require start and end dates")
	}
	if input.Mode == ModeCollaborative {
		input.LockedStart, input.LockedEnd = nil, nil
	}

	input.ID = uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO trips (id, name, mode, created_by, locked_start_date, locked_end_date)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, input.ID, input.Name, input.Mode, input.CreatedBy, input.LockedStart, input.LockedEnd)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Trip{}, err
	}

	if _, err := s.AddMember(ctx, input.ID, input.CreatedBy, RoleLeader); err != nil {
		return Trip{}, err
	}
	return input, nil
}

func (s *Service) GetTrip(ctx context.Context, id string) (Trip, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, mode, created_by, locked_start_date, locked_end_date, cancelled_at, created_at
		FROM trips WHERE id=$1
	`, id)
	var t Trip
	if err := row.Scan(&t.ID, &t.Name, &t.Mode, &t.CreatedBy, &t.LockedStart, &t.LockedEnd, &t.CancelledAt, &t.CreatedAt); err != nil {
		return Trip{}, err
	}
	return t, nil
}

// CancelTrip is terminal: records stay, nothing is deleted.
func (s *Service) CancelTrip(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE trips SET cancelled_at=$2 WHERE id=$1 AND cancelled_at IS NULL
	`, id, s.now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("trip missing or already cancelled")
	}
	return nil
}

func (s *Service) AddMember(ctx context.Context, tripID, userID, role string) (Member, error) {
	if role == "" {
		role = RoleTraveler
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO trip_members (trip_id, user_id, role, status)
		VALUES ($1,$2,$3,'active')
		ON CONFLICT (trip_id, user_id) DO UPDATE SET role=EXCLUDED.role, status='active'
		RETURNING joined_at
	`, tripID, userID, role)
	member := Member{TripID: tripID, UserID: userID, Role: role, Status: "active"}
	if err := row.Scan(&member.JoinedAt); err != nil {
		return Member{}, err
	}
	return member, nil
}

func (s *Service) Members(ctx context.Context, tripID string) ([]Member, error) {
	rows, err := s.db.Query(ctx, `
		SELECT trip_id, user_id, role, status, joined_at
		FROM trip_members WHERE trip_id=$1 AND status='active'
		ORDER BY joined_at
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.TripID, &m.UserID, &m.Role, &m.Status, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

// Roster resolves the current active participants and the leader among
// them. Coverage and approval thresholds are always recomputed from this.
func (s *Service) Roster(ctx context.Context, tripID string) (Roster, error) {
	members, err := s.Members(ctx, tripID)
	if err != nil {
		return Roster{}, err
	}
	var roster Roster
	for _, m := range members {
		roster.ActiveIDs = append(roster.ActiveIDs, m.UserID)
		if m.Role == RoleLeader {
			roster.LeaderID = m.UserID
		}
	}
	return roster, nil
}
