package report

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const dateLayout = "2006-01-02"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/reports/stock", h.GetStock)
	api.GET("/reports/dashboard", h.GetDashboard)
}

func (h *Handler) GetStock(c echo.Context) error {
	asOf := time.Now()
	if s := c.QueryParam("as_of"); s != "" {
		parsed, err := time.Parse(dateLayout, s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "as_of must be YYYY-MM-DD")
		}
		asOf = parsed
	}

	stock, err := h.svc.Stock(c.Request().Context(), asOf)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"as_of": asOf.Format(dateLayout),
		"stock": stock,
	})
}

func (h *Handler) GetDashboard(c echo.Context) error {
	d, err := h.svc.Summary(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}
