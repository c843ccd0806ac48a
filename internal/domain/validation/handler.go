package validation

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medcard/medcard/internal/domain/registry"
	"github.com/medcard/medcard/internal/platform/auth"
)

// Handler exposes the registry and the validation engine to operators.
// Access decisions never go through these routes.
type Handler struct {
	engine *Engine
	store  *registry.Store
}

func NewHandler(engine *Engine, store *registry.Store) *Handler {
	return &Handler{engine: engine, store: store}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("/registry", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/validate", h.Validate)
	admin.POST("/reload", h.Reload)

	read := api.Group("/registry", auth.RequireRole(auth.RolePractitioner))
	read.GET("/stats", h.Stats)
	read.GET("/practitioners/:number", h.Lookup)
}

type validateResponse struct {
	Outcome   Outcome                      `json:"outcome"`
	MatchedOn MatchField                   `json:"matched_on,omitempty"`
	Record    *registry.PractitionerRecord `json:"practitioner,omitempty"`
}

func (h *Handler) Validate(c echo.Context) error {
	reg, council := c.QueryParam("reg"), c.QueryParam("council")
	if reg == "" && council == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reg or council is required")
	}
	res := h.engine.Validate(reg, council)
	return c.JSON(http.StatusOK, validateResponse{Outcome: res.Outcome, MatchedOn: res.MatchedOn, Record: res.Record})
}

type statsResponse struct {
	registry.Stats
	LastLoad *registry.LoadReport `json:"last_load,omitempty"`
}

func (h *Handler) Stats(c echo.Context) error {
	resp := statsResponse{Stats: h.store.Current().Stats()}
	if rep, ok := h.store.LastReport(); ok {
		resp.LastLoad = &rep
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Lookup(c echo.Context) error {
	d, ok := h.store.Current().Lookup(c.Param("number"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "registration number not found in either registry")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Reload(c echo.Context) error {
	rep := h.store.Reload(c.Request().Context())
	if rep.Degraded() {
		return c.JSON(http.StatusAccepted, rep)
	}
	return c.JSON(http.StatusOK, rep)
}
