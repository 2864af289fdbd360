package bag

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bloodbank/bloodbank/pkg/blood"
	"github.com/bloodbank/bloodbank/pkg/pagination"
)

const dateLayout = "2006-01-02"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/bags", h.CreateBag)
	api.GET("/bags", h.ListBags)
	api.GET("/bags/availability", h.Availability)
	api.GET("/bags/:id", h.GetBag)
	api.GET("/bags/:id/status", h.GetBagStatus)
	api.POST("/bags/:id/transition", h.TransitionBag)
	api.POST("/admin/sweep", h.Sweep)
}

type createBagRequest struct {
	BagID        string     `json:"bag_id"`
	BloodGroup   string     `json:"blood_group"`
	DonationDate string     `json:"donation_date"`
	ExpiryDate   string     `json:"expiry_date"`
	DonorID      *uuid.UUID `json:"donor_id,omitempty"`
}

func (h *Handler) CreateBag(c echo.Context) error {
	var req createBagRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	donation, err := time.Parse(dateLayout, req.DonationDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "donation_date must be YYYY-MM-DD")
	}
	expiry, err := time.Parse(dateLayout, req.ExpiryDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "expiry_date must be YYYY-MM-DD")
	}

	b := &Bag{
		ID:           req.BagID,
		BloodGroup:   blood.Group(req.BloodGroup),
		DonationDate: donation,
		ExpiryDate:   expiry,
		DonorID:      req.DonorID,
	}
	created, err := h.svc.Create(c.Request().Context(), b)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetBag(c echo.Context) error {
	b, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) GetBagStatus(c echo.Context) error {
	status, err := h.svc.GetStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]Status{"status": status})
}

func (h *Handler) ListBags(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		Status:     Status(c.QueryParam("status")),
		BloodGroup: blood.Group(c.QueryParam("blood_group")),
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

type transitionRequest struct {
	Status string `json:"status"`
}

// TransitionBag is the external dispensing edge; the donation recorder and
// the sweeper drive the other transitions internally.
func (h *Handler) TransitionBag(c echo.Context) error {
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Transition(c.Request().Context(), c.Param("id"), Status(req.Status)); err != nil {
		return httpError(err)
	}
	status, err := h.svc.GetStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]Status{"status": status})
}

func (h *Handler) Availability(c echo.Context) error {
	group, err := blood.Parse(c.QueryParam("blood_group"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	asOf, err := asOfParam(c.QueryParam("as_of"))
	if err != nil {
		return err
	}

	count, err := h.svc.CountAvailable(c.Request().Context(), group, asOf)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"blood_group": group,
		"as_of":       asOf.Format(dateLayout),
		"available":   count,
	})
}

type sweepRequest struct {
	AsOf string `json:"as_of"`
}

// Sweep is the scheduler-facing trigger for the expiry sweep.
func (h *Handler) Sweep(c echo.Context) error {
	var req sweepRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	asOf, err := asOfParam(req.AsOf)
	if err != nil {
		return err
	}

	count, err := h.svc.SweepExpired(c.Request().Context(), asOf)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"as_of":   asOf.Format(dateLayout),
		"expired": count,
	})
}

func asOfParam(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	asOf, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "as_of must be YYYY-MM-DD")
	}
	return asOf, nil
}

// httpError translates registry errors into HTTP responses.
func httpError(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	}
	var te *IllegalTransitionError
	if errors.As(err, &te) {
		return echo.NewHTTPError(http.StatusConflict, te.Error())
	}
	if errors.Is(err, ErrDuplicateID) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "bag not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
