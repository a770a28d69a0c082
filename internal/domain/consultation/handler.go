package consultation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/gastrodx/gastrodx/internal/domain/diagnosis"
	"github.com/gastrodx/gastrodx/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, admin *echo.Group) {
	api.POST("/consultations", h.Consult)
	api.GET("/consultations", h.History)
	api.GET("/consultations/statistics", h.Statistics)
	api.GET("/consultations/:id", h.Detail)

	admin.DELETE("/consultations/:id", h.Delete, auth.RequireRole(auth.RoleAdmin))
}

type ConsultRequest struct {
	User       string  `json:"user"`
	SymptomIDs []int64 `json:"symptom_ids"`
}

type ConsultResponse struct {
	Result       *diagnosis.MatchResult `json:"result"`
	Consultation *Record                `json:"consultation"`
}

// Consult diagnoses the selection and logs the match.
func (h *Handler) Consult(c echo.Context) error {
	var req ConsultRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	result, rec, err := h.svc.Consult(c.Request().Context(), req.User, req.SymptomIDs)
	if err != nil {
		if errors.Is(err, diagnosis.ErrEmptySelection) || errors.Is(err, diagnosis.ErrInvalidSelection) {
			return diagnosis.HTTPError(err)
		}
		if errors.Is(err, ErrInvalidRecord) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "consultation failed").SetInternal(err)
	}
	if result == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no rule matches the selected symptoms")
	}
	return c.JSON(http.StatusCreated, ConsultResponse{Result: result, Consultation: rec})
}

func (h *Handler) History(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	items, err := h.svc.History(c.Request().Context(), c.QueryParam("user"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load history").SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  items,
		"total": len(items),
	})
}

func (h *Handler) Detail(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	detail, err := h.svc.Detail(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "consultation not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load consultation").SetInternal(err)
	}
	return c.JSON(http.StatusOK, detail)
}

func (h *Handler) Statistics(c echo.Context) error {
	stats, err := h.svc.Statistics(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute statistics").SetInternal(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	deleted, err := h.svc.Delete(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete consultation").SetInternal(err)
	}
	if !deleted {
		return echo.NewHTTPError(http.StatusNotFound, "consultation not found")
	}
	return c.NoContent(http.StatusNoContent)
}
