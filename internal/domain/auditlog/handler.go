package auditlog

import (
	"errors"
	"net/http"

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
	admin.GET("/access-logs", h.List)
	admin.GET("/access-logs/stats", h.Statistics)

	practitioners := api.Group("", auth.RequireRole(auth.RolePractitioner))
	practitioners.GET("/access-logs/:id", h.Get)
	practitioners.POST("/access-logs/:id/records-viewed", h.UpdateRecordsViewed)
	practitioners.GET("/practitioners/:id/access-logs", h.ListByPractitioner)
	practitioners.GET("/practitioners/:id/access-stats", h.PractitionerStatistics)

	patients := api.Group("", auth.RequireRole(auth.RolePatient))
	patients.GET("/patients/:id/access-logs", h.ListByPatient)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// canSeePractitioner reports whether the caller may read practitionerID's
// history: admins and the practitioner themselves.
func canSeePractitioner(c echo.Context, practitionerID uuid.UUID) bool {
	switch id := auth.IdentityFromContext(c.Request().Context()).(type) {
	case auth.AdminIdentity:
		return true
	case auth.PractitionerIdentity:
		return id.PractitionerID == practitionerID
	}
	return false
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}

func (h *Handler) Statistics(c echo.Context) error {
	stats, err := h.svc.Statistics(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.GetEntry(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "access log entry not found")
	}
	if !canSeePractitioner(c, e.PractitionerID) {
		return echo.NewHTTPError(http.StatusForbidden, "not your access log entry")
	}
	return c.JSON(http.StatusOK, e)
}

type recordsViewedRequest struct {
	RecordsViewed int `json:"records_viewed"`
}

func (h *Handler) UpdateRecordsViewed(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	caller, ok := auth.IdentityFromContext(c.Request().Context()).(auth.PractitionerIdentity)
	if !ok {
		return echo.NewHTTPError(http.StatusForbidden, "only the requesting practitioner can record viewed documents")
	}
	var req recordsViewedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	err = h.svc.UpdateRecordsViewed(c.Request().Context(), id, caller.PractitionerID, req.RecordsViewed)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "access log entry not found")
	case errors.Is(err, ErrNotOwner):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListByPractitioner(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if !canSeePractitioner(c, id) {
		return echo.NewHTTPError(http.StatusForbidden, "cannot view another practitioner's access history")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPractitioner(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}

func (h *Handler) PractitionerStatistics(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if !canSeePractitioner(c, id) {
		return echo.NewHTTPError(http.StatusForbidden, "cannot view another practitioner's access statistics")
	}
	stats, err := h.svc.PractitionerStatistics(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	switch caller := auth.IdentityFromContext(c.Request().Context()).(type) {
	case auth.AdminIdentity:
	case auth.PatientIdentity:
		if caller.PatientID != id {
			return echo.NewHTTPError(http.StatusForbidden, "cannot view another patient's access history")
		}
	default:
		return echo.NewHTTPError(http.StatusForbidden, "cannot view patient access history")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}
