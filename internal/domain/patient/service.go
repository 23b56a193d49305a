package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/denticare/denticare/internal/platform/auth"
	"github.com/denticare/denticare/internal/platform/partner"
	"github.com/denticare/denticare/pkg/genid"
	"github.com/denticare/denticare/pkg/toothchart"
)

// PartnerRegistrar is the outbound patient-registration call. The concrete
// client lives in platform/partner; the indirection exists for tests.
type PartnerRegistrar interface {
	RegisterPatient(ctx context.Context, req partner.RegisterRequest) (*partner.RegisterResult, error)
}

type Service struct {
	repo    Repository
	partner PartnerRegistrar
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService wires the patient aggregate. registrar may be nil when no
// partner integration is configured.
func NewService(repo Repository, registrar PartnerRegistrar, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		partner: registrar,
		logger:  logger.With().Str("component", "patient").Logger(),
		now:     time.Now,
	}
}

// CreateInput carries the patient-creation payload.
type CreateInput struct {
	Name         string
	Age          int
	Gender       string
	MobileNumber string
	Email        string
	Address      string
}

// Create validates the payload, generates a unique human-readable patientId
// and stores the patient in the caller's clinic. When a mobile number is
// present the partner registration API is called best-effort: its failure is
// logged and leaves partnerPatientId unset, never failing the local create.
func (s *Service) Create(ctx context.Context, caller *auth.Identity, in CreateInput) (*Patient, error) {
	if in.Name == "" {
		return nil, ValidationError("patient name is required")
	}
	if in.Age <= 0 {
		return nil, ValidationError("patient age is required")
	}
	if !validGenders[in.Gender] {
		return nil, ValidationError("gender must be one of Male, Female, Other")
	}

	patientID, err := s.generatePatientID(ctx, in.Name)
	if err != nil {
		return nil, err
	}

	p := &Patient{
		PatientID:    patientID,
		Name:         in.Name,
		Age:          in.Age,
		Gender:       in.Gender,
		MobileNumber: optStr(in.MobileNumber),
		Email:        optStr(in.Email),
		Address:      optStr(in.Address),
		ClinicID:     caller.ClinicID,
		CreatedBy:    caller.UserID,
		Visits:       []Visit{},
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().Str("patient_id", p.PatientID).Str("clinic_id", p.ClinicID.String()).
		Msg("patient created")

	if in.MobileNumber != "" && s.partner != nil {
		s.registerWithPartner(ctx, p, in)
	}
	return p, nil
}

// registerWithPartner is a best-effort side call: any failure is logged and
// the patient simply keeps a null partner id.
func (s *Service) registerWithPartner(ctx context.Context, p *Patient, in CreateInput) {
	result, err := s.partner.RegisterPatient(ctx, partner.RegisterRequest{
		Name:        in.Name,
		PhoneNumber: in.MobileNumber,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("patient_id", p.PatientID).
			Msg("partner registration failed")
		return
	}
	if result == nil || result.PatientID == "" {
		return
	}
	if err := s.repo.SetPartnerPatientID(ctx, p.ID, result.PatientID); err != nil {
		s.logger.Warn().Err(err).Str("patient_id", p.PatientID).
			Msg("storing partner patient id failed")
		return
	}
	p.PartnerPatientID = &result.PatientID
}

func (s *Service) generatePatientID(ctx context.Context, name string) (string, error) {
	for attempt := 0; attempt < genid.MaxAttempts; attempt++ {
		id, err := genid.New(name, s.now())
		if err != nil {
			return "", err
		}
		taken, err := s.repo.PatientIDExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", ErrIDGenerationExhausted
}

// Get fetches one patient. Every single-patient operation enforces the
// clinic boundary: a caller from another clinic gets ErrAccessDenied no
// matter their role.
func (s *Service) Get(ctx context.Context, caller *auth.Identity, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.ClinicID != caller.ClinicID {
		return nil, ErrAccessDenied
	}
	return p, nil
}

// VisitInput carries the visit-creation payload. The visit date is always
// server-assigned.
type VisitInput struct {
	ChiefComplaint string
	Notes          string
}

func (s *Service) AddVisit(ctx context.Context, caller *auth.Identity, patientID uuid.UUID, in VisitInput) (*Visit, error) {
	if _, err := s.Get(ctx, caller, patientID); err != nil {
		return nil, err
	}
	v := Visit{
		ID:             uuid.New(),
		Date:           s.now(),
		ChiefComplaint: in.ChiefComplaint,
		Notes:          in.Notes,
		DentalRecords:  []DentalRecord{},
	}
	if err := s.repo.AppendVisit(ctx, patientID, v); err != nil {
		return nil, err
	}
	return &v, nil
}

// RecordInput carries the dental-record payload.
type RecordInput struct {
	ToothNumber string
	Notes       string
	Treatment   string
}

func (s *Service) AddDentalRecord(ctx context.Context, caller *auth.Identity, patientID, visitID uuid.UUID, in RecordInput) (*DentalRecord, error) {
	if in.ToothNumber == "" {
		return nil, ValidationError("tooth number is required")
	}
	if _, err := s.Get(ctx, caller, patientID); err != nil {
		return nil, err
	}
	rec := DentalRecord{
		ID:          uuid.New(),
		ToothNumber: in.ToothNumber,
		Notes:       in.Notes,
		Treatment:   in.Treatment,
		Date:        s.now(),
	}
	if err := s.repo.AppendDentalRecord(ctx, patientID, visitID, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Listing is the two-view list response: the caller's own patients and the
// whole clinic's, each newest first and annotated with last-visit data.
type Listing struct {
	MyPatients  []Summary `json:"myPatients"`
	AllPatients []Summary `json:"allPatients"`
	MyTotal     int       `json:"myTotal"`
	AllTotal    int       `json:"allTotal"`
}

// List returns both clinic-scoped views, each independently filtered by the
// same case-insensitive search over name, patientId and mobile number.
func (s *Service) List(ctx context.Context, caller *auth.Identity, search string, limit, offset int) (*Listing, error) {
	mine, myTotal, err := s.repo.List(ctx, caller.ClinicID, &caller.UserID, search, limit, offset)
	if err != nil {
		return nil, err
	}
	all, allTotal, err := s.repo.List(ctx, caller.ClinicID, nil, search, limit, offset)
	if err != nil {
		return nil, err
	}

	listing := &Listing{
		MyPatients:  make([]Summary, 0, len(mine)),
		AllPatients: make([]Summary, 0, len(all)),
		MyTotal:     myTotal,
		AllTotal:    allTotal,
	}
	for _, p := range mine {
		listing.MyPatients = append(listing.MyPatients, newSummary(p))
	}
	for _, p := range all {
		listing.AllPatients = append(listing.AllPatients, newSummary(p))
	}
	return listing, nil
}

// Chart derives the per-tooth states for a patient under the requested
// numbering scheme. selected is a client-side view parameter, never stored.
func (s *Service) Chart(ctx context.Context, caller *auth.Identity, patientID uuid.UUID, scheme toothchart.Scheme, selected string) ([]toothchart.ToothState, error) {
	p, err := s.Get(ctx, caller, patientID)
	if err != nil {
		return nil, err
	}
	return toothchart.Derive(scheme, p.TreatedCounts(), selected), nil
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
