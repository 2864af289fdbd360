package donation

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	api.POST("/donations", h.RecordDonation)
	api.GET("/donations", h.ListDonations)
	api.GET("/donations/:id", h.GetDonation)
	api.GET("/donors/:id/donations", h.ListDonorDonations)
}

type recordRequest struct {
	DonorID   string `json:"donor_id"`
	StaffID   string `json:"staff_id"`
	BagID     string `json:"bag_id,omitempty"`
	Units     int    `json:"units,omitempty"`
	DonatedAt string `json:"donated_at,omitempty"`
	ExpiryAt  string `json:"expiry_date,omitempty"`
}

func (h *Handler) RecordDonation(c echo.Context) error {
	var req recordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	donorID, err := uuid.Parse(req.DonorID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "donor_id must be a UUID")
	}
	staffID, err := uuid.Parse(req.StaffID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "staff_id must be a UUID")
	}

	in := RecordInput{
		DonorID: donorID,
		StaffID: staffID,
		BagID:   req.BagID,
		Units:   req.Units,
	}
	if req.DonatedAt != "" {
		in.DonatedAt, err = time.Parse(dateLayout, req.DonatedAt)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "donated_at must be YYYY-MM-DD")
		}
	}
	if req.ExpiryAt != "" {
		in.ExpiryAt, err = time.Parse(dateLayout, req.ExpiryAt)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "expiry_date must be YYYY-MM-DD")
		}
	}

	recorded, err := h.svc.Record(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"units":     len(recorded),
		"donations": recorded,
	})
}

func (h *Handler) GetDonation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListDonations(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ListDonorDonations(c echo.Context) error {
	donorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid donor id")
	}
	items, err := h.svc.ListByDonor(c.Request().Context(), donorID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func httpError(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	}
	var re *ReferenceError
	if errors.As(err, &re) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, re.Error())
	}
	var de *DuplicateBagError
	if errors.As(err, &de) {
		return echo.NewHTTPError(http.StatusConflict, de.Error())
	}
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "donation not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
