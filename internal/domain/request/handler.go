package request

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
	api.POST("/requests", h.CreateRequest)
	api.GET("/requests", h.ListRequests)
	api.GET("/requests/:id", h.GetRequest)
	api.POST("/requests/:id/fulfill", h.FulfillRequest)
	api.GET("/recipients/:id", h.GetRecipient)
}

type createRequest struct {
	RecipientID  string `json:"recipient_id,omitempty"`
	Name         string `json:"name,omitempty"`
	HospitalName string `json:"hospital_name,omitempty"`
	BloodGroup   string `json:"blood_group"`
	Units        int    `json:"units"`
}

func (h *Handler) CreateRequest(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	in := CreateInput{
		Name:         req.Name,
		HospitalName: req.HospitalName,
		BloodGroup:   blood.Group(req.BloodGroup),
		Units:        req.Units,
	}
	if req.RecipientID != "" {
		id, err := uuid.Parse(req.RecipientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "recipient_id must be a UUID")
		}
		in.RecipientID = id
	}

	br, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, br)
}

func (h *Handler) GetRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	br, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, br)
}

func (h *Handler) GetRecipient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.GetRecipient(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListRequests(c echo.Context) error {
	pg := pagination.FromContext(c)
	status := Status(c.QueryParam("status"))
	items, total, err := h.svc.List(c.Request().Context(), status, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

type fulfillRequest struct {
	AsOf string `json:"as_of,omitempty"`
}

func (h *Handler) FulfillRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req fulfillRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	asOf := time.Now()
	if req.AsOf != "" {
		asOf, err = time.Parse(dateLayout, req.AsOf)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "as_of must be YYYY-MM-DD")
		}
	}

	result, err := h.svc.Fulfill(c.Request().Context(), id, asOf)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func httpError(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	}
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "blood request not found")
	}
	if errors.Is(err, ErrRecipientNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "recipient not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
