package donor

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
	svc          *Service
	cooldownDays int
}

func NewHandler(svc *Service, cooldownDays int) *Handler {
	return &Handler{svc: svc, cooldownDays: cooldownDays}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/donors", h.CreateDonor)
	api.GET("/donors", h.ListDonors)
	api.GET("/donors/eligible", h.ListEligible)
	api.GET("/donors/:id", h.GetDonor)
	api.PUT("/donors/:id", h.UpdateDonor)
}

type donorRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender"`
	PhoneNumber string `json:"phone_number"`
	BloodGroup  string `json:"blood_group"`
}

func (r *donorRequest) toDonor() (*Donor, error) {
	dob, err := time.Parse(dateLayout, r.DateOfBirth)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "date_of_birth must be YYYY-MM-DD")
	}
	return &Donor{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		DateOfBirth: dob,
		Gender:      r.Gender,
		PhoneNumber: r.PhoneNumber,
		BloodGroup:  blood.Group(r.BloodGroup),
	}, nil
}

func (h *Handler) CreateDonor(c echo.Context) error {
	var req donorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := req.toDonor()
	if err != nil {
		return err
	}
	if err := h.svc.Create(c.Request().Context(), d); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDonor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateDonor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req donorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := req.toDonor()
	if err != nil {
		return err
	}
	d.ID = id
	if err := h.svc.Update(c.Request().Context(), d); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDonors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ListEligible(c echo.Context) error {
	asOf := time.Now()
	if s := c.QueryParam("as_of"); s != "" {
		parsed, err := time.Parse(dateLayout, s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "as_of must be YYYY-MM-DD")
		}
		asOf = parsed
	}

	items, err := h.svc.ListEligible(c.Request().Context(), asOf, h.cooldownDays)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"as_of":  asOf.Format(dateLayout),
		"count":  len(items),
		"donors": items,
	})
}

func httpError(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	}
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "donor not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
