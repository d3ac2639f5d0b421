package schedule

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"backend-tripline/internal/nudge"
	"backend-tripline/internal/shared/dates"
	"backend-tripline/internal/trip"
)

const (
	ActionSuggestWindow = "suggest_window"
	ActionSetPreference = "set_window_preference"
	ActionProposeDates  = "propose_dates"
	ActionReact         = "react"
	ActionLock          = "lock"
)

type actionRequest struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	WindowID  string `json:"window_id"`
	Stance    string `json:"stance"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/:id/actions", authMiddleware, func(c *fiber.Ctx) error {
		var body actionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		tripID := c.Params("id")
		userID, _ := c.Locals("user_id").(string)

		switch body.Type {
		case ActionSuggestWindow:
			w, err := svc.SuggestWindow(c.Context(), tripID, userID, body.Text)
			if err != nil {
				return asFiberError(err)
			}
			return c.Status(fiber.StatusCreated).JSON(w)

		case ActionSetPreference:
			if err := svc.SetWindowPreference(c.Context(), tripID, userID, body.WindowID, body.Stance); err != nil {
				return asFiberError(err)
			}
			return c.SendStatus(fiber.StatusNoContent)

		case ActionProposeDates:
			start, err1 := time.Parse(dates.ISOFormat, body.StartDate)
			end, err2 := time.Parse(dates.ISOFormat, body.EndDate)
			if err1 != nil || err2 != nil {
				return fiber.NewError(fiber.StatusBadRequest, "start_date and end_date must be YYYY-MM-DD")
			}
			p, err := svc.ProposeDates(c.Context(), tripID, userID, start, end)
			if err != nil {
				return asFiberError(err)
			}
			return c.Status(fiber.StatusCreated).JSON(p)

		case ActionReact:
			if err := svc.React(c.Context(), tripID, userID, body.Stance); err != nil {
				return asFiberError(err)
			}
			return c.SendStatus(fiber.StatusNoContent)

		case ActionLock:
			t, err := svc.LockDates(c.Context(), tripID, userID)
			if err != nil {
				return asFiberError(err)
			}
			return c.JSON(t)

		default:
			return asFiberError(unknownAction(body.Type))
		}
	})

	r.Get("/:id/schedule", authMiddleware, func(c *fiber.Ctx) error {
		snap, err := svc.TripSnapshot(c.Context(), c.Params("id"))
		if err != nil {
			return asFiberError(err)
		}
		return c.JSON(snap)
	})
}

// NudgeMetrics adapts the service for the nudge feed routes.
func NudgeMetrics(svc *Service) nudge.MetricsFunc {
	return func(c *fiber.Ctx, tripID string) (nudge.Metrics, trip.Roster, error) {
		m, roster, err := svc.Metrics(c.Context(), tripID)
		var schedErr *Error
		if errors.As(err, &schedErr) && schedErr.Code == CodeTripNotFound {
			return m, roster, nudge.ErrTripNotFound
		}
		return m, roster, err
	}
}

func asFiberError(err error) error {
	var schedErr *Error
	if !errors.As(err, &schedErr) {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	// The code rides in the message so callers can match on it.
	switch schedErr.Code {
	case CodeStageBlocked:
		return fiber.NewError(fiber.StatusConflict, schedErr.Error())
	case CodeLeaderOnly, CodeMemberOnly:
		return fiber.NewError(fiber.StatusForbidden, schedErr.Error())
	case CodeTripNotFound:
		return fiber.NewError(fiber.StatusNotFound, schedErr.Error())
	default:
		return fiber.NewError(fiber.StatusBadRequest, schedErr.Error())
	}
}
