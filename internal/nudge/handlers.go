package nudge

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"backend-tripline/internal/trip"
)

// MetricsFunc resolves the live metrics snapshot and roster for a trip.
// Wired from the scheduling layer so this package stays a leaf.
type MetricsFunc func(c *fiber.Ctx, tripID string) (Metrics, trip.Roster, error)

// ErrTripNotFound is returned by a MetricsFunc when the trip does not exist.
var ErrTripNotFound = errors.New("trip not found")

func RegisterRoutes(r fiber.Router, svc *Service, metricsFn MetricsFunc, authMiddleware fiber.Handler) {
	r.Get("/:tripID/nudges", authMiddleware, func(c *fiber.Ctx) error {
		tripID := c.Params("tripID")
		userID, _ := c.Locals("user_id").(string)

		m, roster, err := metricsFn(c, tripID)
		if err != nil {
			if errors.Is(err, ErrTripNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "trip not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if !roster.IsActive(userID) {
			return fiber.NewError(fiber.StatusForbidden, "not an active member of this trip")
		}

		var visible []Nudge
		for _, n := range Compute(tripID, m) {
			if n.VisibleTo(roster, userID) {
				visible = append(visible, n)
			}
		}

		surviving, err := svc.store.Filter(c.Context(), tripID, userID, visible)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		for _, n := range surviving {
			if err := svc.store.Record(c.Context(), tripID, userID, n.DedupeKey, StatusShown); err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, err.Error())
			}
		}
		return c.JSON(fiber.Map{"nudges": surviving})
	})

	r.Post("/:tripID/nudges/dismiss", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			DedupeKey string `json:"dedupe_key"`
		}
		if err := c.BodyParser(&body); err != nil || body.DedupeKey == "" {
			return fiber.NewError(fiber.StatusBadRequest, "dedupe_key required")
		}
		userID, _ := c.Locals("user_id").(string)
		err := svc.store.Record(c.Context(), c.Params("tripID"), userID, body.DedupeKey, StatusDismissed)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
