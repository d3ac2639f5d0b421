package nudge

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"

	"backend-tripline/internal/chat"
	"backend-tripline/internal/notify"
	"backend-tripline/internal/trip"
)

func asUser(userID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		return c.Next()
	}
}

func handlerApp(t *testing.T, userID string, metricsFn MetricsFunc) (*fiber.App, *Service) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)

	store := NewStore(client, 72*time.Hour)
	svc := NewService(store, chat.NewService(mock), notify.NewHub(nil), nil)

	app := fiber.New()
	RegisterRoutes(app.Group("/trips"), svc, metricsFn, asUser(userID))
	return app, svc
}

func getNudges(t *testing.T, app *fiber.App, tripID string) (int, []Nudge) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/trips/"+tripID+"/nudges", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var body struct {
		Nudges []Nudge `json:"nudges"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body.Nudges
}

func TestGetNudgesMarksShown(t *testing.T) {
	roster := trip.Roster{LeaderID: "u1", ActiveIDs: []string{"u1", "u2"}}
	metricsFn := func(c *fiber.Ctx, tripID string) (Metrics, trip.Roster, error) {
		return Metrics{WindowCount: 1, TravelerCount: 2, RespondentCount: 1}, roster, nil
	}
	app, _ := handlerApp(t, "u1", metricsFn)

	status, nudges := getNudges(t, app, "trip-1")
	if status != http.StatusOK {
		t.Fatalf("status %d", status)
	}
	// Leader sees both the first-window card and the awaiting-windows chase.
	if len(nudges) != 2 {
		t.Fatalf("expected 2 nudges, got %+v", nudges)
	}

	// The fetch recorded them, so a repeat inside the cooldowns is empty.
	status, nudges = getNudges(t, app, "trip-1")
	if status != http.StatusOK || len(nudges) != 0 {
		t.Fatalf("repeat fetch should be suppressed, got %d %+v", status, nudges)
	}
}

func TestGetNudgesAudienceFiltered(t *testing.T) {
	roster := trip.Roster{LeaderID: "u1", ActiveIDs: []string{"u1", "u2"}}
	metricsFn := func(c *fiber.Ctx, tripID string) (Metrics, trip.Roster, error) {
		return Metrics{WindowCount: 1, TravelerCount: 2, RespondentCount: 1}, roster, nil
	}
	app, _ := handlerApp(t, "u2", metricsFn)

	// A traveler sees the all-audience nudge but not the leader chase.
	status, nudges := getNudges(t, app, "trip-1")
	if status != http.StatusOK || len(nudges) != 1 || nudges[0].Type != TypeFirstWindow {
		t.Fatalf("unexpected traveler view: %d %+v", status, nudges)
	}
}

func TestGetNudgesNonMember(t *testing.T) {
	metricsFn := func(c *fiber.Ctx, tripID string) (Metrics, trip.Roster, error) {
		return Metrics{}, trip.Roster{LeaderID: "u1", ActiveIDs: []string{"u1"}}, nil
	}
	app, _ := handlerApp(t, "outsider", metricsFn)
	status, _ := getNudges(t, app, "trip-1")
	if status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
}

func TestGetNudgesTripNotFound(t *testing.T) {
	metricsFn := func(c *fiber.Ctx, tripID string) (Metrics, trip.Roster, error) {
		return Metrics{}, trip.Roster{}, ErrTripNotFound
	}
	app, _ := handlerApp(t, "u1", metricsFn)
	status, _ := getNudges(t, app, "missing")
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestGetNudgesMetricsFailure(t *testing.T) {
	// A broken metrics source is a server fault, not a missing trip.
	metricsFn := func(c *fiber.Ctx, tripID string) (Metrics, trip.Roster, error) {
		return Metrics{}, trip.Roster{}, errors.New("connection refused")
	}
	app, _ := handlerApp(t, "u1", metricsFn)
	status, _ := getNudges(t, app, "trip-1")
	if status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
}

func TestDismissSuppresses(t *testing.T) {
	roster := trip.Roster{LeaderID: "u1", ActiveIDs: []string{"u1"}}
	metricsFn := func(c *fiber.Ctx, tripID string) (Metrics, trip.Roster, error) {
		return Metrics{WindowCount: 1, TravelerCount: 2, RespondentCount: 1}, roster, nil
	}
	app, _ := handlerApp(t, "u1", metricsFn)

	payload, _ := json.Marshal(fiber.Map{"dedupe_key": "trip-1:awaiting_windows"})
	req := httptest.NewRequest(http.MethodPost, "/trips/trip-1/nudges/dismiss", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status %d", resp.StatusCode)
	}

	status, nudges := getNudges(t, app, "trip-1")
	if status != http.StatusOK {
		t.Fatalf("status %d", status)
	}
	for _, n := range nudges {
		if n.Type == TypeAwaitingWindows {
			t.Fatalf("dismissed nudge came back: %+v", nudges)
		}
	}
}

func TestDismissValidation(t *testing.T) {
	metricsFn := func(c *fiber.Ctx, tripID string) (Metrics, trip.Roster, error) {
		return Metrics{}, trip.Roster{}, nil
	}
	app, _ := handlerApp(t, "u1", metricsFn)

	req := httptest.NewRequest(http.MethodPost, "/trips/trip-1/nudges/dismiss", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
