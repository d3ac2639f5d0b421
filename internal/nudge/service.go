package nudge

import (
	"context"
	"log"

	"backend-tripline/internal/chat"
	"backend-tripline/internal/notify"
	"backend-tripline/internal/trip"
)

type Service struct {
	store      *Store
	chat       *chat.Service
	hub        *notify.Hub
	correlator *Correlator
}

func NewService(store *Store, chatSvc *chat.Service, hub *notify.Hub, correlator *Correlator) *Service {
	return &Service{store: store, chat: chatSvc, hub: hub, correlator: correlator}
}

func (s *Service) Store() *Store { return s.store }

// Deliver pushes the candidates out to their audiences. Message-channel
// nudges write once per trip through the chat sink; the sink's unique index
// and the cooldown cache guard against different failure modes, so both
// checks run. Push-channel nudges go to the hub per surviving recipient.
// Every failure here is logged and swallowed; delivery never fails the
// action that triggered it.
func (s *Service) Deliver(ctx context.Context, tripID string, roster trip.Roster, candidates []Nudge) {
	for _, n := range candidates {
		recipients := n.Recipients(roster)
		if len(recipients) == 0 {
			continue
		}

		var surviving []string
		for _, userID := range recipients {
			ok, err := s.store.Filter(ctx, tripID, userID, []Nudge{n})
			if err != nil {
				log.Printf("nudge filter error: %v", err)
				continue
			}
			if len(ok) > 0 {
				surviving = append(surviving, userID)
			}
		}
		if len(surviving) == 0 {
			continue
		}

		switch n.Channel {
		case ChannelMessage:
			exists, err := s.chat.MessageExists(ctx, tripID, n.DedupeKey)
			if err != nil {
				log.Printf("nudge message check error: %v", err)
				continue
			}
			if exists {
				continue
			}
			created, err := s.chat.EnsureSystemMessage(ctx, tripID, n.DedupeKey, n.Body)
			if err != nil {
				log.Printf("nudge message insert error: %v", err)
				continue
			}
			if !created {
				continue
			}
		case ChannelPush:
			if s.hub != nil {
				s.hub.Push(tripID, notify.Payload{
					Type:     n.Type,
					Title:    n.Title,
					Body:     n.Body,
					Audience: surviving,
				})
			}
		}

		for _, userID := range surviving {
			if err := s.store.Record(ctx, tripID, userID, n.DedupeKey, StatusShown); err != nil {
				log.Printf("nudge record error: %v", err)
			}
		}
	}
}

// Evaluate computes candidates from the metrics and delivers them. This is
// the fire-and-forget hook mutating actions call after they commit.
func (s *Service) Evaluate(ctx context.Context, tripID string, roster trip.Roster, m Metrics) {
	s.Deliver(ctx, tripID, roster, Compute(tripID, m))
}

// Observe forwards to the correlator when one is wired.
func (s *Service) Observe(ctx context.Context, tripID, userID, actionType string) {
	if s.correlator != nil {
		s.correlator.Observe(ctx, tripID, userID, actionType)
	}
}
