package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/symptoms", h.ListSymptoms)
	api.GET("/diseases", h.ListDiseases)
	api.GET("/diseases/:id", h.GetDisease)
}

func (h *Handler) ListSymptoms(c echo.Context) error {
	items, err := h.svc.ListSymptoms(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load symptoms").SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  items,
		"total": len(items),
	})
}

func (h *Handler) ListDiseases(c echo.Context) error {
	items, err := h.svc.ListDiseases(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load diseases").SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  items,
		"total": len(items),
	})
}

// GetDisease accepts a numeric id or a disease code such as P001.
func (h *Handler) GetDisease(c echo.Context) error {
	ctx := c.Request().Context()
	param := c.Param("id")

	var (
		d   *Disease
		err error
	)
	if id, convErr := strconv.ParseInt(param, 10, 64); convErr == nil {
		d, err = h.svc.GetDisease(ctx, id)
	} else {
		d, err = h.svc.GetDiseaseByCode(ctx, param)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "disease not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load disease").SetInternal(err)
	}
	return c.JSON(http.StatusOK, d)
}
