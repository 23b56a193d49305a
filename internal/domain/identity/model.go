package identity

import (
	"time"

	"github.com/google/uuid"
)

// User roles.
const (
	RoleDoctor = "Doctor"
	RoleStaff  = "Staff"
	RoleAdmin  = "Admin"
)

var validRoles = map[string]bool{
	RoleDoctor: true,
	RoleStaff:  true,
	RoleAdmin:  true,
}

// Verification channels recorded as the first verified contact method.
const (
	VerificationEmail = "email"
	VerificationPhone = "phone"
)

// Address is the structured clinic address.
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// Clinic maps to the clinic table. Created at registration, immutable after.
type Clinic struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Name          string    `db:"name" json:"clinicName"`
	Address       Address   `json:"address"`
	ContactNumber string    `db:"contact_number" json:"contactNumber"`
	LicenseNumber string    `db:"license_number" json:"clinicLicenseNumber"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// User maps to the app_user table.
type User struct {
	ID                uuid.UUID `db:"id" json:"id"`
	UserID            string    `db:"user_id" json:"userId"`
	FullName          string    `db:"full_name" json:"userFullName"`
	Role              string    `db:"role" json:"role"`
	MobileNumber      *string   `db:"mobile_number" json:"mobileNumber,omitempty"`
	Email             *string   `db:"email" json:"email,omitempty"`
	PasswordHash      *string   `db:"password_hash" json:"-"`
	ClinicID          uuid.UUID `db:"clinic_id" json:"clinicId"`
	ExternalSubjectID *string   `db:"external_subject_id" json:"externalUserId,omitempty"`
	PartnerDoctorID   *string   `db:"partner_doctor_id" json:"partnerDoctorId,omitempty"`
	EmailVerified     bool      `db:"email_verified" json:"emailVerified"`
	PhoneVerified     bool      `db:"phone_verified" json:"phoneVerified"`

	// InitialVerificationMethod records which contact channel was verified
	// first; nil until either channel verifies.
	InitialVerificationMethod *string   `db:"initial_verification_method" json:"initialVerificationMethod,omitempty"`
	CreatedAt                 time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt                 time.Time `db:"updated_at" json:"updatedAt"`
}

// Profile is the caller-facing view of a user joined with their clinic.
type Profile struct {
	ID                uuid.UUID `json:"id"`
	UserID            string    `json:"userId"`
	Name              string    `json:"name"`
	Role              string    `json:"role"`
	Email             *string   `json:"email"`
	MobileNumber      *string   `json:"mobileNumber"`
	EmailVerified     bool      `json:"emailVerified"`
	PhoneVerified     bool      `json:"phoneVerified"`
	ClinicID          uuid.UUID `json:"clinicId"`
	ClinicName        string    `json:"clinicName"`
	ExternalSubjectID *string   `json:"externalUserId,omitempty"`
}

func newProfile(u *User, c *Clinic) *Profile {
	return &Profile{
		ID:                u.ID,
		UserID:            u.UserID,
		Name:              u.FullName,
		Role:              u.Role,
		Email:             u.Email,
		MobileNumber:      u.MobileNumber,
		EmailVerified:     u.EmailVerified,
		PhoneVerified:     u.PhoneVerified,
		ClinicID:          u.ClinicID,
		ClinicName:        c.Name,
		ExternalSubjectID: u.ExternalSubjectID,
	}
}
