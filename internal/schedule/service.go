package schedule

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"backend-tripline/internal/db"
	"backend-tripline/internal/nudge"
	"backend-tripline/internal/overlap"
	"backend-tripline/internal/trip"
	"backend-tripline/internal/window"
)

// Tunables are the calibrated scheduling rules, surfaced from config.
type Tunables struct {
	MaxWindowDays  int
	WindowQuota    int
	MinOverlapDays int
}

type Service struct {
	db     db.TxQuerier
	trips  *trip.Service
	nudges *nudge.Service
	tun    Tunables
	now    func() time.Time
}

func NewService(q db.TxQuerier, trips *trip.Service, nudges *nudge.Service, tun Tunables) *Service {
	if tun.MaxWindowDays == 0 {
		tun.MaxWindowDays = 14
	}
	if tun.WindowQuota == 0 {
		tun.WindowQuota = 2
	}
	if tun.MinOverlapDays == 0 {
		tun.MinOverlapDays = 2
	}
	return &Service{db: q, trips: trips, nudges: nudges, tun: tun, now: time.Now}
}

// SuggestWindow normalizes the free text and records it as an active
// window. The quota check rides inside the insert so two concurrent
// suggestions by the same user cannot both slip under the limit.
func (s *Service) SuggestWindow(ctx context.Context, tripID, userID, text string) (WindowProposal, error) {
	t, roster, err := s.loadTrip(ctx, tripID)
	if err != nil {
		return WindowProposal{}, err
	}
	if !roster.IsActive(userID) {
		return WindowProposal{}, memberOnly()
	}

	snap, err := s.snapshot(ctx, t, roster)
	if err != nil {
		return WindowProposal{}, err
	}
	switch {
	case snap.Stage.Locked():
		return WindowProposal{}, stageBlocked(ReasonSchedulingClosed)
	case snap.Stage == StageDateProposed || snap.Stage == StageReadyToLock:
		return WindowProposal{}, stageBlocked(ReasonAvailabilityFroze)
	}

	rng, err := window.Normalize(text, window.Context{Now: s.now(), MaxDays: s.tun.MaxWindowDays})
	if err != nil {
		return WindowProposal{}, validation(err.Error())
	}

	w := WindowProposal{
		ID:         uuid.NewString(),
		TripID:     tripID,
		UserID:     userID,
		SourceText: text,
		StartDate:  rng.Start,
		EndDate:    rng.End,
		Precision:  rng.Precision,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO window_proposals (id, trip_id, user_id, source_text, start_date, end_date, precision)
		SELECT $1,$2,$3,$4,$5,$6,$7
		WHERE (SELECT COUNT(*) FROM window_proposals WHERE trip_id=$2 AND user_id=$3 AND archived=false) < $8
		RETURNING created_at
	`, w.ID, tripID, userID, text, w.StartDate, w.EndDate, w.Precision, s.tun.WindowQuota)
	if err := row.Scan(&w.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WindowProposal{}, validation("active window quota reached; archive happens automatically when dates are proposed")
		}
		return WindowProposal{}, err
	}

	s.afterAction(ctx, tripID, userID, "suggest_window")
	return w, nil
}

// SetWindowPreference upserts the caller's stance on a window. Last write
// wins; counts are always recomputed from the live set, never maintained.
func (s *Service) SetWindowPreference(ctx context.Context, tripID, userID, windowID, stance string) error {
	if stance != StanceWorks && stance != StanceMaybe && stance != StanceNo {
		return validation("stance must be works, maybe or no")
	}
	t, roster, err := s.loadTrip(ctx, tripID)
	if err != nil {
		return err
	}
	if !roster.IsActive(userID) {
		return memberOnly()
	}

	snap, err := s.snapshot(ctx, t, roster)
	if err != nil {
		return err
	}
	switch snap.Stage {
	case StageWindowsOpen:
	case StageNoDates:
		return stageBlocked(ReasonNoWindowsYet)
	case StageDateProposed, StageReadyToLock:
		return stageBlocked(ReasonAvailabilityFroze)
	default:
		return stageBlocked(ReasonSchedulingClosed)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO window_preferences (window_id, user_id, stance)
		VALUES ($1,$2,$3)
		ON CONFLICT (window_id, user_id) DO UPDATE SET stance=EXCLUDED.stance, updated_at=now()
	`, windowID, userID, stance)
	if err != nil {
		return err
	}

	s.afterAction(ctx, tripID, userID, "set_window_preference")
	return nil
}

// ProposeDates archives the open windows and puts a concrete range up for
// reactions. A partial unique index keeps one proposal active; when two
// leaders' clicks race, the loser gets a stage conflict, not a second row.
func (s *Service) ProposeDates(ctx context.Context, tripID, userID string, start, end time.Time) (DateProposal, error) {
	t, roster, err := s.loadTrip(ctx, tripID)
	if err != nil {
		return DateProposal{}, err
	}
	if userID != roster.LeaderID {
		return DateProposal{}, leaderOnly("propose dates")
	}

	snap, err := s.snapshot(ctx, t, roster)
	if err != nil {
		return DateProposal{}, err
	}
	switch snap.Stage {
	case StageWindowsOpen, StageDateProposed, StageReadyToLock:
	case StageNoDates:
		return DateProposal{}, stageBlocked(ReasonNoWindowsYet)
	default:
		return DateProposal{}, stageBlocked(ReasonSchedulingClosed)
	}

	if end.Before(start) {
		return DateProposal{}, validation("end date precedes start date")
	}
	// Archived windows still state availability; a re-propose after the
	// open windows froze must validate against them too.
	allWindows, err := s.tripWindows(ctx, tripID)
	if err != nil {
		return DateProposal{}, err
	}
	count, _ := overlap.RangeCoverage(windowsFor(allWindows), start, end)
	if count == 0 {
		return DateProposal{}, validation("proposed dates fall outside everyone's stated availability")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return DateProposal{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		UPDATE window_proposals SET archived=true WHERE trip_id=$1 AND archived=false
	`, tripID); err != nil {
		return DateProposal{}, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE date_proposals SET active=false WHERE trip_id=$1 AND active=true
	`, tripID); err != nil {
		return DateProposal{}, err
	}

	p := DateProposal{
		ID:         uuid.NewString(),
		TripID:     tripID,
		ProposedBy: userID,
		StartDate:  start,
		EndDate:    end,
		Active:     true,
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO date_proposals (id, trip_id, proposed_by, start_date, end_date, active)
		VALUES ($1,$2,$3,$4,$5,true)
		RETURNING created_at
	`, p.ID, tripID, userID, start, end)
	if err := row.Scan(&p.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return DateProposal{}, stageBlocked(ReasonProposalRace)
		}
		return DateProposal{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return DateProposal{}, err
	}

	s.afterAction(ctx, tripID, userID, "propose_dates")
	return p, nil
}

// React upserts the caller's reaction to the active proposal. Reactions are
// keyed by proposal, so a re-propose orphans the old ones automatically.
func (s *Service) React(ctx context.Context, tripID, userID, stance string) error {
	if stance != ReactionWorks && stance != ReactionCaveat && stance != ReactionCant {
		return validation("reaction must be works, caveat or cant")
	}
	t, roster, err := s.loadTrip(ctx, tripID)
	if err != nil {
		return err
	}
	if !roster.IsActive(userID) {
		return memberOnly()
	}

	snap, err := s.snapshot(ctx, t, roster)
	if err != nil {
		return err
	}
	switch snap.Stage {
	case StageDateProposed, StageReadyToLock:
	case StageDatesLocked, StageHostedLocked:
		return stageBlocked(ReasonSchedulingClosed)
	default:
		return stageBlocked(ReasonNoActiveProposal)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO date_reactions (proposal_id, user_id, stance)
		VALUES ($1,$2,$3)
		ON CONFLICT (proposal_id, user_id) DO UPDATE SET stance=EXCLUDED.stance, updated_at=now()
	`, snap.Proposal.ID, userID, stance)
	if err != nil {
		return err
	}

	s.afterAction(ctx, tripID, userID, "react")
	return nil
}

// LockDates commits the active proposal's range onto the trip. The guarded
// update makes the lock at-most-once: whichever caller loses the race sees
// the trip already locked, and the first committed range never changes.
func (s *Service) LockDates(ctx context.Context, tripID, userID string) (trip.Trip, error) {
	t, roster, err := s.loadTrip(ctx, tripID)
	if err != nil {
		return trip.Trip{}, err
	}
	if userID != roster.LeaderID {
		return trip.Trip{}, leaderOnly("lock dates")
	}

	snap, err := s.snapshot(ctx, t, roster)
	if err != nil {
		return trip.Trip{}, err
	}
	switch snap.Stage {
	case StageReadyToLock:
	case StageDateProposed:
		// Leader override: locking before the threshold is the leader's call.
	case StageDatesLocked, StageHostedLocked:
		return trip.Trip{}, stageBlocked(ReasonAlreadyLocked)
	default:
		return trip.Trip{}, stageBlocked(ReasonNoActiveProposal)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE trips SET locked_start_date=$2, locked_end_date=$3
		WHERE id=$1 AND locked_start_date IS NULL AND cancelled_at IS NULL
	`, tripID, snap.Proposal.StartDate, snap.Proposal.EndDate)
	if err != nil {
		return trip.Trip{}, err
	}
	if tag.RowsAffected() == 0 {
		return trip.Trip{}, stageBlocked(ReasonAlreadyLocked)
	}

	t.LockedStart, t.LockedEnd = &snap.Proposal.StartDate, &snap.Proposal.EndDate
	s.afterAction(ctx, tripID, userID, "lock")
	return t, nil
}

// TripSnapshot recomputes the full scheduling picture for a trip.
func (s *Service) TripSnapshot(ctx context.Context, tripID string) (Snapshot, error) {
	t, roster, err := s.loadTrip(ctx, tripID)
	if err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(ctx, t, roster)
}

// Metrics resolves the nudge engine's view of a trip.
func (s *Service) Metrics(ctx context.Context, tripID string) (nudge.Metrics, trip.Roster, error) {
	t, roster, err := s.loadTrip(ctx, tripID)
	if err != nil {
		return nudge.Metrics{}, trip.Roster{}, err
	}
	snap, err := s.snapshot(ctx, t, roster)
	if err != nil {
		return nudge.Metrics{}, trip.Roster{}, err
	}
	return metricsFrom(snap), roster, nil
}

func (s *Service) loadTrip(ctx context.Context, tripID string) (trip.Trip, trip.Roster, error) {
	t, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return trip.Trip{}, trip.Roster{}, tripNotFound()
		}
		return trip.Trip{}, trip.Roster{}, err
	}
	roster, err := s.trips.Roster(ctx, tripID)
	if err != nil {
		return trip.Trip{}, trip.Roster{}, err
	}
	return t, roster, nil
}

func (s *Service) snapshot(ctx context.Context, t trip.Trip, roster trip.Roster) (Snapshot, error) {
	windows, err := s.activeWindows(ctx, t.ID)
	if err != nil {
		return Snapshot{}, err
	}
	proposal, err := s.activeProposal(ctx, t.ID)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		TravelerCount: len(roster.ActiveIDs),
		Windows:       windows,
		Proposal:      proposal,
		Threshold:     Threshold(len(roster.ActiveIDs)),
	}

	respondents := map[string]struct{}{}
	for _, w := range windows {
		respondents[w.UserID] = struct{}{}
	}
	snap.RespondentCount = len(respondents)
	snap.BestRange = overlap.BestRange(windowsFor(windows), s.tun.MinOverlapDays)

	if proposal != nil {
		snap.Reactions, err = s.proposalReactions(ctx, proposal.ID)
		if err != nil {
			return Snapshot{}, err
		}
		for _, r := range snap.Reactions {
			if r.Stance == ReactionWorks {
				snap.WorksCount++
			}
		}
	}

	snap.Stage = DeriveStage(t, len(windows), proposal, snap.WorksCount, snap.TravelerCount)
	return snap, nil
}

func (s *Service) activeWindows(ctx context.Context, tripID string) ([]WindowProposal, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, trip_id, user_id, source_text, start_date, end_date, precision, archived, created_at
		FROM window_proposals WHERE trip_id=$1 AND archived=false
		ORDER BY created_at
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var windows []WindowProposal
	for rows.Next() {
		var w WindowProposal
		if err := rows.Scan(&w.ID, &w.TripID, &w.UserID, &w.SourceText, &w.StartDate, &w.EndDate, &w.Precision, &w.Archived, &w.CreatedAt); err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, nil
}

// tripWindows returns every window ever stated for the trip, archived or
// not. Only the proposal coverage check wants this view.
func (s *Service) tripWindows(ctx context.Context, tripID string) ([]WindowProposal, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, trip_id, user_id, source_text, start_date, end_date, precision, archived, created_at
		FROM window_proposals WHERE trip_id=$1
		ORDER BY created_at
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var windows []WindowProposal
	for rows.Next() {
		var w WindowProposal
		if err := rows.Scan(&w.ID, &w.TripID, &w.UserID, &w.SourceText, &w.StartDate, &w.EndDate, &w.Precision, &w.Archived, &w.CreatedAt); err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, nil
}

func (s *Service) activeProposal(ctx context.Context, tripID string) (*DateProposal, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, trip_id, proposed_by, start_date, end_date, active, created_at
		FROM date_proposals WHERE trip_id=$1 AND active=true
	`, tripID)
	var p DateProposal
	err := row.Scan(&p.ID, &p.TripID, &p.ProposedBy, &p.StartDate, &p.EndDate, &p.Active, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) proposalReactions(ctx context.Context, proposalID string) ([]DateReaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT proposal_id, user_id, stance, updated_at
		FROM date_reactions WHERE proposal_id=$1
		ORDER BY updated_at
	`, proposalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reactions []DateReaction
	for rows.Next() {
		var r DateReaction
		if err := rows.Scan(&r.ProposalID, &r.UserID, &r.Stance, &r.UpdatedAt); err != nil {
			return nil, err
		}
		reactions = append(reactions, r)
	}
	return reactions, nil
}

// afterAction refreshes the metrics and hands them to the nudge pipeline.
// Everything downstream of a committed action is best-effort.
func (s *Service) afterAction(ctx context.Context, tripID, userID, actionType string) {
	if s.nudges == nil {
		return
	}
	s.nudges.Observe(ctx, tripID, userID, actionType)

	m, roster, err := s.Metrics(ctx, tripID)
	if err != nil {
		log.Printf("nudge evaluation skipped: %v", err)
		return
	}
	s.nudges.Evaluate(ctx, tripID, roster, m)
}

func windowsFor(windows []WindowProposal) []overlap.Window {
	out := make([]overlap.Window, 0, len(windows))
	for _, w := range windows {
		out = append(out, overlap.Window{UserID: w.UserID, Start: w.StartDate, End: w.EndDate})
	}
	return out
}

func metricsFrom(snap Snapshot) nudge.Metrics {
	return nudge.Metrics{
		TravelerCount:   snap.TravelerCount,
		WindowCount:     len(snap.Windows),
		RespondentCount: snap.RespondentCount,
		ProposalActive:  snap.Proposal != nil,
		ReactionCount:   len(snap.Reactions),
		WorksCount:      snap.WorksCount,
		Threshold:       snap.Threshold,
		Locked:          snap.Stage.Locked(),
	}
}
