package identity

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/denticare/denticare/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires the public registration endpoints and the
// authenticated profile/clinic endpoints.
func (h *Handler) RegisterRoutes(public, protected *echo.Group) {
	public.POST("/auth/register", h.Register)
	public.POST("/auth/update-verification-status", h.UpdateVerificationStatus)
	public.POST("/auth/login-without-confirmation", h.LoginWithoutConfirmation)

	protected.GET("/auth/me", h.Me)
	protected.GET("/clinic/:id", h.GetClinic)
}

type registerRequest struct {
	ClinicName          string  `json:"clinicName"`
	Address             Address `json:"address"`
	ContactNumber       string  `json:"contactNumber"`
	ClinicLicenseNumber string  `json:"clinicLicenseNumber"`
	UserFullName        string  `json:"userFullName"`
	Role                string  `json:"role"`
	MobileNumber        string  `json:"mobileNumber"`
	Email               string  `json:"email"`
	ExternalUserID      string  `json:"externalUserId"`
}

func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := h.svc.Register(c.Request().Context(), RegisterInput{
		ClinicName:        req.ClinicName,
		Address:           req.Address,
		ContactNumber:     req.ContactNumber,
		LicenseNumber:     req.ClinicLicenseNumber,
		FullName:          req.UserFullName,
		Role:              req.Role,
		MobileNumber:      req.MobileNumber,
		Email:             req.Email,
		ExternalSubjectID: req.ExternalUserID,
	})
	if err != nil {
		return mapError(err)
	}

	message := "Registration successful. Please verify your contact information."
	if !result.IsNew {
		message = "Registration updated. Please verify your contact information."
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": message,
		"user": echo.Map{
			"id":             result.User.ID,
			"userId":         result.User.UserID,
			"externalUserId": result.User.ExternalSubjectID,
		},
	})
}

type verificationRequest struct {
	ExternalUserID string `json:"externalUserId"`
	EmailVerified  *bool  `json:"emailVerified"`
	PhoneVerified  *bool  `json:"phoneVerified"`
}

func (h *Handler) UpdateVerificationStatus(c echo.Context) error {
	var req verificationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	user, err := h.svc.UpdateVerificationStatus(c.Request().Context(), req.ExternalUserID, req.EmailVerified, req.PhoneVerified)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":       "Verification status updated",
		"emailVerified": user.EmailVerified,
		"phoneVerified": user.PhoneVerified,
	})
}

type loginRequest struct {
	Username string `json:"username"`
}

func (h *Handler) LoginWithoutConfirmation(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := h.svc.LoginWithoutConfirmation(c.Request().Context(), req.Username)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Me(c echo.Context) error {
	id := auth.IdentityFromContext(c.Request().Context())
	if id == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "access token required")
	}

	profile, err := h.svc.Me(c.Request().Context(), id.UserID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *Handler) GetClinic(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid clinic id")
	}

	clinic, err := h.svc.GetClinic(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, clinic)
}

func mapError(err error) error {
	var ve ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	case errors.Is(err, ErrUserExists):
		return echo.NewHTTPError(http.StatusBadRequest, "user already exists")
	case errors.Is(err, ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	case errors.Is(err, ErrClinicNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "clinic not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "server error")
	}
}
