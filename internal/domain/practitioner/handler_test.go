package practitioner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medcard/medcard/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo) {
	return NewHandler(newTestService()), echo.New()
}

func withIdentity(req *http.Request, id auth.Identity) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), id))
}

func TestHandler_Create(t *testing.T) {
	h, e := newTestHandler()

	body := `{"first_name":"Asha","last_name":"Rao","registration_number":"1001","state_medical_council":"Karnataka Medical Council","email":"asha@example.org"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/practitioners", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var p Practitioner
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.IsVerified || p.DoctorCode == "" {
		t.Errorf("unexpected practitioner %+v", p)
	}
}

func TestHandler_Create_BadRequest(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"first_name":"Asha"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	if err := h.Create(c); err == nil {
		t.Error("expected error for missing fields")
	}
}

func TestHandler_Verify(t *testing.T) {
	h, e := newTestHandler()
	p := newPractitioner()
	h.svc.Create(context.Background(), p)

	verify := func() (*httptest.ResponseRecorder, error) {
		req := withIdentity(httptest.NewRequest(http.MethodPost, "/", nil), auth.AdminIdentity{User: "ops"})
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues(p.ID.String())
		return rec, h.Verify(c)
	}

	rec, err := verify()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	_, err = verify()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusConflict {
		t.Errorf("expected 409 on second verification, got %v", err)
	}
}

func TestHandler_Get_OtherPractitionerForbidden(t *testing.T) {
	h, e := newTestHandler()
	p := newPractitioner()
	h.svc.Create(context.Background(), p)

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/", nil), auth.PractitionerIdentity{PractitionerID: uuid.New()})
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	err := h.Get(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}

	req = withIdentity(httptest.NewRequest(http.MethodGet, "/", nil), auth.PractitionerIdentity{PractitionerID: p.ID})
	rec := httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHandler_List_BadFilter(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?verified=maybe", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	if err := h.List(c); err == nil {
		t.Error("expected error for bad verified filter")
	}
}
