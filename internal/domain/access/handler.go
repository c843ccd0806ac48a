package access

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medcard/medcard/internal/domain/auditlog"
	"github.com/medcard/medcard/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	practitioners := api.Group("", auth.RequireRole(auth.RolePractitioner))
	practitioners.POST("/access-requests", h.RequestAccess)
}

type accessRequestBody struct {
	RegistrationNumber string `json:"registration_number"`
	Council            string `json:"state_medical_council"`
	PatientID          string `json:"patient_id"`
	AccessType         string `json:"access_type"`
	Reason             string `json:"reason"`
}

// RequestAccess answers 200 with the bundle on a grant and 403 with the
// decision on a denial. Both carry the id of the written audit entry.
func (h *Handler) RequestAccess(c echo.Context) error {
	caller, ok := auth.IdentityFromContext(c.Request().Context()).(auth.PractitionerIdentity)
	if !ok {
		return echo.NewHTTPError(http.StatusForbidden, "only practitioners can request access to a patient record")
	}
	var body accessRequestBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	d, err := h.svc.RequestAccess(c.Request().Context(), Request{
		PractitionerID:     caller.PractitionerID,
		RegistrationNumber: body.RegistrationNumber,
		Council:            body.Council,
		PatientRef:         body.PatientID,
		Category:           auditlog.AccessType(body.AccessType),
		Justification:      body.Reason,
		IPAddress:          c.RealIP(),
		UserAgent:          c.Request().UserAgent(),
	})
	if err != nil {
		return errorResponse(err)
	}
	if !d.Granted() {
		return c.JSON(http.StatusForbidden, d)
	}
	return c.JSON(http.StatusOK, d)
}

func errorResponse(err error) error {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		fields := make(map[string]string, len(reqErr.Fields))
		for k, v := range reqErr.Fields {
			fields[k] = fmt.Sprint(v)
		}
		return echo.NewHTTPError(http.StatusBadRequest, map[string]any{
			"message": ErrInvalidRequest.Error(),
			"fields":  fields,
		})
	case errors.Is(err, ErrUnknownPractitioner):
		return echo.NewHTTPError(http.StatusForbidden, "no practitioner profile for this account")
	case errors.Is(err, ErrAuditWriteFailed), errors.Is(err, ErrStorageUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "access cannot be decided right now, try again later")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
