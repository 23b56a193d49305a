package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/denticare/denticare/internal/platform/auth"
	"github.com/denticare/denticare/pkg/genid"
)

type Service struct {
	repo     Repository
	sessions *auth.SessionStore
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, sessions *auth.SessionStore, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		sessions: sessions,
		logger:   logger.With().Str("component", "identity").Logger(),
		now:      time.Now,
	}
}

// RegisterInput carries the combined clinic + user registration payload.
type RegisterInput struct {
	ClinicName        string
	Address           Address
	ContactNumber     string
	LicenseNumber     string
	FullName          string
	Role              string
	MobileNumber      string
	Email             string
	ExternalSubjectID string
}

// RegisterResult reports the created or updated account.
type RegisterResult struct {
	User  *User
	IsNew bool
}

// Register creates the clinic if its license number is unknown, then creates
// the user bound to the external subject id. An account already existing
// under a different subject id is taken over in place: the public userId is
// retained and verification state resets. The same subject registering twice
// is rejected.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if in.ClinicName == "" || in.ContactNumber == "" || in.LicenseNumber == "" ||
		in.Address.Street == "" || in.Address.City == "" || in.Address.State == "" || in.Address.Zip == "" {
		return nil, ValidationError("all clinic fields are required")
	}
	if in.FullName == "" || in.Role == "" || in.ExternalSubjectID == "" {
		return nil, ValidationError("all user fields are required")
	}
	if !validRoles[in.Role] {
		return nil, ValidationError("invalid role")
	}
	if in.Email == "" && in.MobileNumber == "" {
		return nil, ValidationError("at least email or mobile number is required")
	}

	clinic, err := s.repo.GetClinicByLicense(ctx, in.LicenseNumber)
	if errors.Is(err, ErrClinicNotFound) {
		clinic = &Clinic{
			Name:          in.ClinicName,
			Address:       in.Address,
			ContactNumber: in.ContactNumber,
			LicenseNumber: in.LicenseNumber,
		}
		if err := s.repo.CreateClinic(ctx, clinic); err != nil {
			return nil, err
		}
		s.logger.Info().Str("clinic_id", clinic.ID.String()).Str("license", clinic.LicenseNumber).
			Msg("clinic registered")
	} else if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindUserForRegistration(ctx, in.ExternalSubjectID, in.Email, in.MobileNumber)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	if existing != nil {
		if existing.ExternalSubjectID != nil && *existing.ExternalSubjectID == in.ExternalSubjectID {
			return nil, ErrUserExists
		}
		// The account was re-created at the identity provider under a new
		// subject id. Take over the local account, keep its public userId,
		// and require verification again.
		existing.ExternalSubjectID = strPtr(in.ExternalSubjectID)
		existing.FullName = in.FullName
		existing.Role = in.Role
		if in.MobileNumber != "" {
			existing.MobileNumber = strPtr(in.MobileNumber)
		}
		if in.Email != "" {
			existing.Email = strPtr(in.Email)
		}
		existing.ClinicID = clinic.ID
		existing.EmailVerified = false
		existing.PhoneVerified = false
		existing.InitialVerificationMethod = nil
		if err := s.repo.UpdateUser(ctx, existing); err != nil {
			return nil, err
		}
		s.logger.Info().Str("user_id", existing.UserID).Msg("user re-registered under new subject")
		return &RegisterResult{User: existing, IsNew: false}, nil
	}

	userID, err := s.generateUserID(ctx, in.FullName)
	if err != nil {
		return nil, err
	}

	user := &User{
		UserID:            userID,
		FullName:          in.FullName,
		Role:              in.Role,
		MobileNumber:      optStr(in.MobileNumber),
		Email:             optStr(in.Email),
		ClinicID:          clinic.ID,
		ExternalSubjectID: strPtr(in.ExternalSubjectID),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", user.UserID).Str("clinic_id", clinic.ID.String()).
		Msg("user registered")
	return &RegisterResult{User: user, IsNew: true}, nil
}

func (s *Service) generateUserID(ctx context.Context, name string) (string, error) {
	for attempt := 0; attempt < genid.MaxAttempts; attempt++ {
		id, err := genid.New(name, s.now())
		if err != nil {
			return "", err
		}
		taken, err := s.repo.UserIDExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", ErrIDGenerationExhausted
}

// UpdateVerificationStatus sets the verification flags for the user bound to
// the external subject id. The first channel to verify is recorded as the
// initial verification method. Note the flags come from the caller per
// channel: a payload naming only one channel leaves the other untouched.
func (s *Service) UpdateVerificationStatus(ctx context.Context, externalSubjectID string, emailVerified, phoneVerified *bool) (*User, error) {
	user, err := s.repo.GetUserBySubject(ctx, externalSubjectID)
	if err != nil {
		return nil, err
	}

	if emailVerified != nil {
		user.EmailVerified = *emailVerified
		if *emailVerified && user.InitialVerificationMethod == nil {
			user.InitialVerificationMethod = strPtr(VerificationEmail)
		}
	}
	if phoneVerified != nil {
		user.PhoneVerified = *phoneVerified
		if *phoneVerified && user.InitialVerificationMethod == nil {
			user.InitialVerificationMethod = strPtr(VerificationPhone)
		}
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// LoginResult is the fallback-login response: the profile plus a session token.
type LoginResult struct {
	*Profile
	SessionToken string `json:"sessionToken"`
}

// LoginWithoutConfirmation locates a user by email, mobile number, or public
// userId and issues a fallback session, letting the user proceed before
// completing out-of-band contact verification.
func (s *Service) LoginWithoutConfirmation(ctx context.Context, username string) (*LoginResult, error) {
	if username == "" {
		return nil, ValidationError("username is required")
	}

	user, err := s.repo.FindUserByLogin(ctx, username)
	if err != nil {
		return nil, err
	}
	clinic, err := s.repo.GetClinicByID(ctx, user.ClinicID)
	if err != nil {
		return nil, err
	}

	subject := ""
	if user.ExternalSubjectID != nil {
		subject = *user.ExternalSubjectID
	}
	token, err := s.sessions.Create(user.ID, subject, user.ClinicID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.UserID).Msg("fallback session issued")
	return &LoginResult{Profile: newProfile(user, clinic), SessionToken: token}, nil
}

// Me resolves the authenticated caller's full profile.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	clinic, err := s.repo.GetClinicByID(ctx, user.ClinicID)
	if err != nil {
		return nil, err
	}
	return newProfile(user, clinic), nil
}

func (s *Service) GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return s.repo.GetClinicByID(ctx, id)
}

// -- auth.UserResolver --

// Resolver adapts the identity repository to the authentication middleware.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

func (r *Resolver) ResolveBySubject(ctx context.Context, externalSubjectID string) (*auth.Identity, error) {
	user, err := r.repo.GetUserBySubject(ctx, externalSubjectID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}
	return toIdentity(user), nil
}

func (r *Resolver) ResolveByID(ctx context.Context, userID uuid.UUID) (*auth.Identity, error) {
	user, err := r.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}
	return toIdentity(user), nil
}

func toIdentity(u *User) *auth.Identity {
	id := &auth.Identity{
		UserID:   u.ID,
		ClinicID: u.ClinicID,
		Name:     u.FullName,
	}
	if u.ExternalSubjectID != nil {
		id.ExternalSubjectID = *u.ExternalSubjectID
	}
	if u.Email != nil {
		id.Email = *u.Email
	}
	if u.MobileNumber != nil {
		id.Phone = *u.MobileNumber
	}
	return id
}

func strPtr(s string) *string { return &s }

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
