package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/denticare/denticare/internal/platform/auth"
)

func runAudited(t *testing.T, method, path string, identity *auth.Identity, recorder AuditRecorder) AuditEntry {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "req-123")

	var captured AuditEntry
	capture := AuditRecorderFunc(func(entry AuditEntry) error {
		captured = entry
		if recorder != nil {
			return recorder.RecordAccess(entry)
		}
		return nil
	})

	handler := Audit(zerolog.Nop(), capture)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return captured
}

func TestAudit_PatientRead(t *testing.T) {
	userID := uuid.New()
	clinicID := uuid.New()
	entry := runAudited(t, http.MethodGet, "/patient/john_smith_2405101530_a1b2",
		&auth.Identity{UserID: userID, ClinicID: clinicID}, nil)

	if entry.Action != "read" {
		t.Errorf("expected action read, got %q", entry.Action)
	}
	if entry.PatientID != "john_smith_2405101530_a1b2" {
		t.Errorf("expected patient id from path, got %q", entry.PatientID)
	}
	if entry.UserID != userID.String() {
		t.Errorf("expected user id %s, got %q", userID, entry.UserID)
	}
	if entry.ClinicID != clinicID.String() {
		t.Errorf("expected clinic id %s, got %q", clinicID, entry.ClinicID)
	}
	if entry.RequestID != "req-123" {
		t.Errorf("expected request id req-123, got %q", entry.RequestID)
	}
}

func TestAudit_ResourceExtraction(t *testing.T) {
	tests := []struct {
		path     string
		resource string
	}{
		{"/patient", "patient"},
		{"/patient/p1", "patient"},
		{"/patient/p1/visits", "visits"},
		{"/patient/p1/visits/v1/dental-records", "dental-records"},
		{"/patient/p1/chart", "chart"},
	}
	for _, tt := range tests {
		entry := runAudited(t, http.MethodGet, tt.path, nil, nil)
		if entry.Resource != tt.resource {
			t.Errorf("%s: expected resource %q, got %q", tt.path, tt.resource, entry.Resource)
		}
	}
}

func TestAudit_VisitCreateAction(t *testing.T) {
	entry := runAudited(t, http.MethodPost, "/patient/p1/visits", nil, nil)
	if entry.Action != "create" {
		t.Errorf("expected action create, got %q", entry.Action)
	}
}

func TestAudit_SkipsNonPatientPaths(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	recorded := false
	handler := Audit(zerolog.Nop(), AuditRecorderFunc(func(AuditEntry) error {
		recorded = true
		return nil
	}))(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recorded {
		t.Error("health endpoint must not produce audit entries")
	}
}

func TestAudit_RecorderFailureDoesNotBreakRequest(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/patient", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Audit(zerolog.Nop(), AuditRecorderFunc(func(AuditEntry) error {
		return errors.New("sink unavailable")
	}))(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	if err := handler(c); err != nil {
		t.Fatalf("audit failure must not fail the request: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
