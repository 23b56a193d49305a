package patient

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/denticare/denticare/internal/platform/auth"
	"github.com/denticare/denticare/pkg/pagination"
	"github.com/denticare/denticare/pkg/toothchart"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires the patient aggregate onto the authenticated group.
func (h *Handler) RegisterRoutes(protected *echo.Group) {
	protected.GET("/patient", h.List)
	protected.POST("/patient", h.Create)
	protected.GET("/patient/:id", h.Get)
	protected.GET("/patient/:id/chart", h.Chart)
	protected.POST("/patient/:id/visits", h.AddVisit)
	protected.POST("/patient/:id/visits/:visitId/dental-records", h.AddDentalRecord)
}

func caller(c echo.Context) (*auth.Identity, error) {
	id := auth.IdentityFromContext(c.Request().Context())
	if id == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "access token required")
	}
	return id, nil
}

func patientID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	return id, nil
}

type createRequest struct {
	Name         string `json:"name"`
	Age          int    `json:"age"`
	Gender       string `json:"gender"`
	MobileNumber string `json:"mobileNumber"`
	Email        string `json:"email"`
	Address      string `json:"address"`
}

func (h *Handler) Create(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	p, err := h.svc.Create(c.Request().Context(), id, CreateInput{
		Name:         req.Name,
		Age:          req.Age,
		Gender:       req.Gender,
		MobileNumber: req.MobileNumber,
		Email:        req.Email,
		Address:      req.Address,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id, pid)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, newDetail(p))
}

// listResponse annotates the two clinic views with the page window they cover.
type listResponse struct {
	*Listing
	Page pagination.Response `json:"page"`
}

func (h *Handler) List(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	params := pagination.FromContext(c)
	listing, err := h.svc.List(c.Request().Context(), id, c.QueryParam("search"), params.Limit, params.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, listResponse{
		Listing: listing,
		Page:    pagination.NewResponse(params, listing.AllTotal),
	})
}

type visitRequest struct {
	ChiefComplaint string `json:"chiefComplaint"`
	Notes          string `json:"notes"`
}

func (h *Handler) AddVisit(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	var req visitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	v, err := h.svc.AddVisit(c.Request().Context(), id, pid, VisitInput{
		ChiefComplaint: req.ChiefComplaint,
		Notes:          req.Notes,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

type recordRequest struct {
	ToothNumber string `json:"toothNumber"`
	Notes       string `json:"notes"`
	Treatment   string `json:"treatment"`
}

func (h *Handler) AddDentalRecord(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	vid, err := uuid.Parse(c.Param("visitId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	var req recordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rec, err := h.svc.AddDentalRecord(c.Request().Context(), id, pid, vid, RecordInput{
		ToothNumber: req.ToothNumber,
		Notes:       req.Notes,
		Treatment:   req.Treatment,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Chart(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	scheme, err := toothchart.ParseScheme(c.QueryParam("scheme"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	states, err := h.svc.Chart(c.Request().Context(), id, pid, scheme, c.QueryParam("selected"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"scheme": scheme,
		"teeth":  states,
	})
}

func mapError(err error) error {
	var ve ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrVisitNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "visit not found")
	case errors.Is(err, ErrAccessDenied):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "server error")
	}
}
