package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/denticare/denticare/internal/platform/auth"
)

// AuditEntry captures who accessed which patient data, when, from where,
// and the action type.
type AuditEntry struct {
	UserID     string
	ClinicID   string
	Resource   string
	PatientID  string
	Action     string // read, create, update, delete
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder is the interface the audit middleware uses to persist audit
// entries. Tests provide a mock implementation.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit returns middleware that logs every access to patient data. It runs
// after authentication, extracts the authenticated user from the request
// context, and emits a structured access-log event. An optional AuditRecorder
// additionally persists the entry.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !isAuditablePath(path) {
				return next(c)
			}

			// Run the handler first so the response status can be captured.
			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: c.Response().Status,
				Action:     httpMethodToAction(req.Method),
				Resource:   extractResource(path),
				PatientID:  extractPatientID(path),
			}

			if id := auth.IdentityFromContext(req.Context()); id != nil {
				entry.UserID = id.UserID.String()
				entry.ClinicID = id.ClinicID.String()
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			if len(recorders) > 0 && recorders[0] != nil {
				if recErr := recorders[0].RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "access_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("clinic_id", entry.ClinicID).
				Str("resource", entry.Resource).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("patient_data_access")

			return err
		}
	}
}

// isAuditablePath returns true for routes that expose patient data.
func isAuditablePath(path string) bool {
	return path == "/patient" || strings.HasPrefix(path, "/patient/")
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResource names the innermost patient sub-resource being accessed:
// "patient" for /patient and /patient/<id>, "visits" for
// /patient/<id>/visits, "dental-records" for the nested record routes.
func extractResource(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(segments) >= 5 && segments[4] == "dental-records":
		return "dental-records"
	case len(segments) >= 3:
		return segments[2]
	default:
		return "patient"
	}
}

// extractPatientID pulls the public patient id out of /patient/<id>/... paths.
func extractPatientID(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) >= 2 && segments[0] == "patient" {
		return segments[1]
	}
	return ""
}
