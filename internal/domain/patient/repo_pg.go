package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

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

const patientCols = `id, patient_id, name, age, gender, mobile_number, email, address,
	clinic_id, created_by, partner_patient_id, visits, version_id, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	if p.Visits == nil {
		p.Visits = []Visit{}
	}
	doc, err := json.Marshal(p.Visits)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO patient (
			id, patient_id, name, age, gender, mobile_number, email, address,
			clinic_id, created_by, partner_patient_id, visits
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING version_id, created_at, updated_at`,
		p.ID, p.PatientID, p.Name, p.Age, p.Gender, p.MobileNumber, p.Email, p.Address,
		p.ClinicID, p.CreatedBy, p.PartnerPatientID, doc,
	).Scan(&p.VersionID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) PatientIDExists(ctx context.Context, patientID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patient WHERE patient_id = $1)`, patientID,
	).Scan(&exists)
	return exists, err
}

func (r *repoPG) SetPartnerPatientID(ctx context.Context, id uuid.UUID, partnerPatientID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE patient SET partner_patient_id = $2, updated_at = NOW() WHERE id = $1`,
		id, partnerPatientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, clinicID uuid.UUID, createdBy *uuid.UUID, search string, limit, offset int) ([]*Patient, int, error) {
	where := `WHERE clinic_id = $1`
	args := []interface{}{clinicID}

	if createdBy != nil {
		args = append(args, *createdBy)
		where += fmt.Sprintf(` AND created_by = $%d`, len(args))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		where += fmt.Sprintf(` AND (name ILIKE $%d OR patient_id ILIKE $%d OR COALESCE(mobile_number, '') ILIKE $%d)`, n, n, n)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patient `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM patient %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		patientCols, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

// AppendVisit appends to the embedded visit document in one statement; the
// row-level write is atomic so concurrent appends cannot lose an element.
func (r *repoPG) AppendVisit(ctx context.Context, patientID uuid.UUID, v Visit) error {
	doc, err := json.Marshal([]Visit{v})
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE patient
		SET visits = visits || $2::jsonb, version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1`,
		patientID, doc)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

// AppendDentalRecord rewrites the visit document inside a transaction that
// locks the patient row, so concurrent appends to the same patient serialize
// instead of losing updates.
func (r *repoPG) AppendDentalRecord(ctx context.Context, patientID, visitID uuid.UUID, rec DentalRecord) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var raw []byte
		err := tx.QueryRow(ctx,
			`SELECT visits FROM patient WHERE id = $1 FOR UPDATE`, patientID,
		).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPatientNotFound
		}
		if err != nil {
			return err
		}

		var visits []Visit
		if err := json.Unmarshal(raw, &visits); err != nil {
			return err
		}

		found := false
		for i := range visits {
			if visits[i].ID == visitID {
				visits[i].DentalRecords = append(visits[i].DentalRecords, rec)
				found = true
				break
			}
		}
		if !found {
			return ErrVisitNotFound
		}

		doc, err := json.Marshal(visits)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE patient
			SET visits = $2, version_id = version_id + 1, updated_at = NOW()
			WHERE id = $1`,
			patientID, doc)
		return err
	})
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var raw []byte
	err := row.Scan(
		&p.ID, &p.PatientID, &p.Name, &p.Age, &p.Gender, &p.MobileNumber, &p.Email, &p.Address,
		&p.ClinicID, &p.CreatedBy, &p.PartnerPatientID, &raw, &p.VersionID, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &p.Visits); err != nil {
		return nil, err
	}
	if p.Visits == nil {
		p.Visits = []Visit{}
	}
	return &p, nil
}
