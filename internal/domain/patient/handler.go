package patient

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

// RegisterRoutes exposes patient records to administrators and to the
// patient themselves. Practitioners read patients only through an access
// request.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/patients", h.Create)
	admin.GET("/patients", h.List)

	self := api.Group("", auth.RequireRole(auth.RolePatient))
	self.GET("/patients/:id", h.Get)
	self.GET("/patients/:id/documents", h.ListDocuments)
	self.POST("/patients/:id/documents", h.AddDocument)
}

// patientParam parses :id and checks a patient caller is asking about
// their own record.
func patientParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	switch caller := auth.IdentityFromContext(c.Request().Context()).(type) {
	case auth.AdminIdentity:
	case auth.PatientIdentity:
		if caller.PatientID != id {
			return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "cannot access another patient's record")
		}
	default:
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "cannot access patient records directly")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListDocuments(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	docs, err := h.svc.Documents(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *Handler) AddDocument(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	var d MedicalDocument
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.PatientID = id
	if err := h.svc.AddDocument(c.Request().Context(), &d); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}
