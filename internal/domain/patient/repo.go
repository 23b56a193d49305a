package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists the patient aggregate. Visit and dental-record appends
// are nested mutations of the aggregate's embedded document and must be
// atomic per patient: two concurrent appends may serialize in either order
// but neither may be lost.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	PatientIDExists(ctx context.Context, patientID string) (bool, error)
	SetPartnerPatientID(ctx context.Context, id uuid.UUID, partnerPatientID string) error

	// List returns clinic-scoped patients, newest first. A non-empty search
	// is matched case-insensitively as a substring of name, patientId and
	// mobile number. A non-nil createdBy restricts to that creator.
	List(ctx context.Context, clinicID uuid.UUID, createdBy *uuid.UUID, search string, limit, offset int) ([]*Patient, int, error)

	AppendVisit(ctx context.Context, patientID uuid.UUID, v Visit) error
	AppendDentalRecord(ctx context.Context, patientID, visitID uuid.UUID, rec DentalRecord) error
}
