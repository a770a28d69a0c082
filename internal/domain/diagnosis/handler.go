package diagnosis

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/diagnoses", h.Diagnose)
}

type DiagnoseRequest struct {
	SymptomIDs []int64 `json:"symptom_ids"`
}

func (h *Handler) Diagnose(c echo.Context) error {
	var req DiagnoseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	result, err := h.svc.Diagnose(c.Request().Context(), req.SymptomIDs)
	if err != nil {
		return HTTPError(err)
	}
	if result == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no rule matches the selected symptoms")
	}
	return c.JSON(http.StatusOK, result)
}

// HTTPError maps Diagnose errors onto HTTP status codes.
func HTTPError(err error) error {
	if errors.Is(err, ErrEmptySelection) || errors.Is(err, ErrInvalidSelection) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "diagnosis failed").SetInternal(err)
}
