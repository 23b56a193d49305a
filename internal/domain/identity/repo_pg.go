package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const clinicCols = `id, name, address_street, address_city, address_state, address_zip,
	contact_number, license_number, created_at, updated_at`

func (r *repoPG) CreateClinic(ctx context.Context, c *Clinic) error {
	c.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO clinic (
			id, name, address_street, address_city, address_state, address_zip,
			contact_number, license_number
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Address.Street, c.Address.City, c.Address.State, c.Address.Zip,
		c.ContactNumber, c.LicenseNumber,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *repoPG) GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return scanClinic(r.pool.QueryRow(ctx, `SELECT `+clinicCols+` FROM clinic WHERE id = $1`, id))
}

func (r *repoPG) GetClinicByLicense(ctx context.Context, license string) (*Clinic, error) {
	return scanClinic(r.pool.QueryRow(ctx, `SELECT `+clinicCols+` FROM clinic WHERE license_number = $1`, license))
}

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	err := row.Scan(
		&c.ID, &c.Name, &c.Address.Street, &c.Address.City, &c.Address.State, &c.Address.Zip,
		&c.ContactNumber, &c.LicenseNumber, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrClinicNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const userCols = `id, user_id, full_name, role, mobile_number, email, password_hash,
	clinic_id, external_subject_id, partner_doctor_id,
	email_verified, phone_verified, initial_verification_method,
	created_at, updated_at`

func (r *repoPG) CreateUser(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO app_user (
			id, user_id, full_name, role, mobile_number, email, password_hash,
			clinic_id, external_subject_id, partner_doctor_id,
			email_verified, phone_verified, initial_verification_method
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		u.ID, u.UserID, u.FullName, u.Role, u.MobileNumber, u.Email, u.PasswordHash,
		u.ClinicID, u.ExternalSubjectID, u.PartnerDoctorID,
		u.EmailVerified, u.PhoneVerified, u.InitialVerificationMethod,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *repoPG) UpdateUser(ctx context.Context, u *User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE app_user SET
			full_name=$2, role=$3, mobile_number=$4, email=$5, password_hash=$6,
			clinic_id=$7, external_subject_id=$8, partner_doctor_id=$9,
			email_verified=$10, phone_verified=$11, initial_verification_method=$12,
			updated_at=NOW()
		WHERE id = $1`,
		u.ID, u.FullName, u.Role, u.MobileNumber, u.Email, u.PasswordHash,
		u.ClinicID, u.ExternalSubjectID, u.PartnerDoctorID,
		u.EmailVerified, u.PhoneVerified, u.InitialVerificationMethod,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *repoPG) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM app_user WHERE id = $1`, id))
}

func (r *repoPG) GetUserBySubject(ctx context.Context, externalSubjectID string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM app_user WHERE external_subject_id = $1`, externalSubjectID))
}

func (r *repoPG) FindUserForRegistration(ctx context.Context, externalSubjectID, email, mobile string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userCols+` FROM app_user
		WHERE external_subject_id = $1
		   OR ($2 <> '' AND email = $2)
		   OR ($3 <> '' AND mobile_number = $3)
		ORDER BY (external_subject_id = $1) DESC
		LIMIT 1`,
		externalSubjectID, email, mobile))
}

func (r *repoPG) FindUserByLogin(ctx context.Context, username string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userCols+` FROM app_user
		WHERE email = $1 OR mobile_number = $1 OR user_id = $1
		LIMIT 1`,
		username))
}

func (r *repoPG) UserIDExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM app_user WHERE user_id = $1)`, userID).Scan(&exists)
	return exists, err
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.UserID, &u.FullName, &u.Role, &u.MobileNumber, &u.Email, &u.PasswordHash,
		&u.ClinicID, &u.ExternalSubjectID, &u.PartnerDoctorID,
		&u.EmailVerified, &u.PhoneVerified, &u.InitialVerificationMethod,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
