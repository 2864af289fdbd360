package donation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func postJSON(e *echo.Echo, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRecordDonationHandler(t *testing.T) {
	fx := newFixture()
	e := echo.New()
	NewHandler(fx.svc).RegisterRoutes(e.Group("/api/v1"))

	body := fmt.Sprintf(`{"donor_id":%q,"staff_id":%q,"units":2,"donated_at":"2024-01-01"}`,
		fx.donorID, fx.staffID)
	rec := postJSON(e, "/api/v1/donations", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Units     int            `json:"units"`
		Donations []*Transaction `json:"donations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Units != 2 || len(got.Donations) != 2 {
		t.Errorf("expected 2 recorded units, got %d", got.Units)
	}
}

func TestRecordDonationHandler_UnknownDonor(t *testing.T) {
	fx := newFixture()
	e := echo.New()
	NewHandler(fx.svc).RegisterRoutes(e.Group("/api/v1"))

	body := fmt.Sprintf(`{"donor_id":%q,"staff_id":%q}`, uuid.New(), fx.staffID)
	rec := postJSON(e, "/api/v1/donations", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRecordDonationHandler_DuplicateBag(t *testing.T) {
	fx := newFixture()
	e := echo.New()
	NewHandler(fx.svc).RegisterRoutes(e.Group("/api/v1"))

	body := fmt.Sprintf(`{"donor_id":%q,"staff_id":%q,"bag_id":"BAG-DUP","donated_at":"2024-01-01"}`,
		fx.donorID, fx.staffID)
	if rec := postJSON(e, "/api/v1/donations", body); rec.Code != http.StatusCreated {
		t.Fatalf("first record: expected 201, got %d", rec.Code)
	}
	rec := postJSON(e, "/api/v1/donations", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate bag, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRecordDonationHandler_BadIDs(t *testing.T) {
	fx := newFixture()
	e := echo.New()
	NewHandler(fx.svc).RegisterRoutes(e.Group("/api/v1"))

	rec := postJSON(e, "/api/v1/donations", `{"donor_id":"nope","staff_id":"nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
