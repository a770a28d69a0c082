package rules

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/gastrodx/gastrodx/internal/platform/auth"
	"github.com/gastrodx/gastrodx/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the read endpoints on api and the mutating ones on admin.
func (h *Handler) RegisterRoutes(api *echo.Group, admin *echo.Group) {
	api.GET("/rules", h.ListRules)
	api.GET("/rules/next-code", h.NextCode)
	api.GET("/rules/:code", h.GetRule)

	write := admin.Group("", auth.RequireRole(auth.RoleRuleAdmin))
	write.POST("/rules", h.CreateRule)
	write.DELETE("/rules/:id", h.DeleteRule)
	write.DELETE("/rule-symptoms/:id", h.DeleteSymptomLink)
}

type CreateRuleRequest struct {
	Code       string  `json:"code"`
	DiseaseID  int64   `json:"disease_id"`
	Name       string  `json:"name"`
	SymptomIDs []int64 `json:"symptom_ids"`
	Citation   *string `json:"citation,omitempty"`
}

func (h *Handler) CreateRule(c echo.Context) error {
	var req CreateRuleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rule, err := h.svc.CreateRule(c.Request().Context(), req.Code, req.DiseaseID, req.Name, req.SymptomIDs, req.Citation)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rule)
}

func (h *Handler) ListRules(c echo.Context) error {
	p := pagination.FromContextWithDefault(c, pagination.MaxLimit)
	items, err := h.svc.ListRules(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(items, p), len(items), p.Limit, p.Offset))
}

// GetRule looks a rule up by code, or by id when the parameter is numeric.
func (h *Handler) GetRule(c echo.Context) error {
	ctx := c.Request().Context()
	param := c.Param("code")

	var (
		detail *RuleDetail
		err    error
	)
	if id, convErr := strconv.ParseInt(param, 10, 64); convErr == nil {
		detail, err = h.svc.GetRule(ctx, id)
	} else {
		detail, err = h.svc.GetRuleByCode(ctx, param)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, detail)
}

func (h *Handler) NextCode(c echo.Context) error {
	code, err := h.svc.NextCode(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"code": code})
}

func (h *Handler) DeleteRule(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	deleted, err := h.svc.DeleteRule(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if !deleted {
		return echo.NewHTTPError(http.StatusNotFound, "rule not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteSymptomLink(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	deleted, err := h.svc.DeleteSymptomLink(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if !deleted {
		return echo.NewHTTPError(http.StatusNotFound, "rule symptom link not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidRule),
		errors.Is(err, ErrDiseaseNotFound),
		errors.Is(err, ErrSymptomNotFound):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDuplicateCode):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "rule not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "rule store unavailable").SetInternal(err)
	}
}
