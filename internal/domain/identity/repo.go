package identity

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateClinic(ctx context.Context, c *Clinic) error
	GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	GetClinicByLicense(ctx context.Context, license string) (*Clinic, error)

	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserBySubject(ctx context.Context, externalSubjectID string) (*User, error)

	// FindUserForRegistration matches an existing account by external subject
	// id, email, or mobile number (any non-empty criterion).
	FindUserForRegistration(ctx context.Context, externalSubjectID, email, mobile string) (*User, error)

	// FindUserByLogin matches by email, mobile number, or public user id.
	FindUserByLogin(ctx context.Context, username string) (*User, error)

	UserIDExists(ctx context.Context, userID string) (bool, error)
}
