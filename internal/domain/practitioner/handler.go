package practitioner

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medcard/medcard/internal/platform/auth"
	"github.com/medcard/medcard/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/practitioners", h.Create)
	admin.GET("/practitioners", h.List)
	admin.POST("/practitioners/:id/verify", h.Verify)

	read := api.Group("", auth.RequireRole(auth.RolePractitioner))
	read.GET("/practitioners/:id", h.Get)
}

func (h *Handler) Create(c echo.Context) error {
	var p Practitioner
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if caller, ok := auth.IdentityFromContext(c.Request().Context()).(auth.PractitionerIdentity); ok && caller.PractitionerID != id {
		return echo.NewHTTPError(http.StatusForbidden, "cannot view another practitioner")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "practitioner not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	var verified *bool
	if v := c.QueryParam("verified"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "verified must be true or false")
		}
		verified = &b
	}
	items, total, err := h.svc.List(c.Request().Context(), verified, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}

func (h *Handler) Verify(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	admin, ok := auth.IdentityFromContext(c.Request().Context()).(auth.AdminIdentity)
	if !ok {
		return echo.NewHTTPError(http.StatusForbidden, "only administrators can verify practitioners")
	}
	p, err := h.svc.Verify(c.Request().Context(), id, admin.User)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "practitioner not found")
	case errors.Is(err, ErrAlreadyVerified):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}
