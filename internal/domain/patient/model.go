package patient

import (
	"time"

	"github.com/google/uuid"
)

const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

var validGenders = map[string]bool{
	GenderMale:   true,
	GenderFemale: true,
	GenderOther:  true,
}

// DentalRecord is a tooth-level entry inside a visit. ToothNumber carries the
// identifier of whichever numbering scheme the chart used when the record was
// captured.
type DentalRecord struct {
	ID          uuid.UUID `json:"id"`
	ToothNumber string    `json:"toothNumber"`
	Notes       string    `json:"notes,omitempty"`
	Treatment   string    `json:"treatment,omitempty"`
	Date        time.Time `json:"date"`
}

// Visit is an append-only sub-entity of a patient. Insertion order is
// chronological order; visits are never deleted or reordered.
type Visit struct {
	ID             uuid.UUID      `json:"id"`
	Date           time.Time      `json:"date"`
	ChiefComplaint string         `json:"chiefComplaint,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	DentalRecords  []DentalRecord `json:"dentalRecords"`
}

// Patient is the aggregate root. Visits (with their dental records) are
// embedded as a single JSONB document on the patient row; VersionID counts
// document revisions, bumped on every nested append.
type Patient struct {
	ID               uuid.UUID `db:"id" json:"id"`
	PatientID        string    `db:"patient_id" json:"patientId"`
	Name             string    `db:"name" json:"name"`
	Age              int       `db:"age" json:"age"`
	Gender           string    `db:"gender" json:"gender"`
	MobileNumber     *string   `db:"mobile_number" json:"mobileNumber,omitempty"`
	Email            *string   `db:"email" json:"email,omitempty"`
	Address          *string   `db:"address" json:"address,omitempty"`
	ClinicID         uuid.UUID `db:"clinic_id" json:"clinicId"`
	CreatedBy        uuid.UUID `db:"created_by" json:"createdBy"`
	PartnerPatientID *string   `db:"partner_patient_id" json:"partnerPatientId,omitempty"`
	Visits           []Visit   `db:"visits" json:"visits"`
	VersionID        int       `db:"version_id" json:"-"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// LastVisit returns the final visit by insertion order, or nil.
func (p *Patient) LastVisit() *Visit {
	if len(p.Visits) == 0 {
		return nil
	}
	return &p.Visits[len(p.Visits)-1]
}

// FindVisit locates a visit by id within the aggregate, or nil.
func (p *Patient) FindVisit(id uuid.UUID) *Visit {
	for i := range p.Visits {
		if p.Visits[i].ID == id {
			return &p.Visits[i]
		}
	}
	return nil
}

// TreatedCounts tallies dental records per tooth number across the full
// visit history.
func (p *Patient) TreatedCounts() map[string]int {
	counts := make(map[string]int)
	for _, v := range p.Visits {
		for _, rec := range v.DentalRecords {
			counts[rec.ToothNumber]++
		}
	}
	return counts
}

// Detail is the single-patient view: the full aggregate annotated with the
// derived last-visit date and its chief complaint.
type Detail struct {
	*Patient
	LastVisitDate  *time.Time `json:"lastVisitDate"`
	ChiefComplaint string     `json:"chiefComplaint,omitempty"`
}

func newDetail(p *Patient) Detail {
	d := Detail{Patient: p}
	if last := p.LastVisit(); last != nil {
		date := last.Date
		d.LastVisitDate = &date
		d.ChiefComplaint = last.ChiefComplaint
	}
	return d
}

// Summary is the list-view shape: patient fields annotated with the derived
// last-visit date and its chief complaint.
type Summary struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      string     `json:"patientId"`
	Name           string     `json:"name"`
	Age            int        `json:"age"`
	Gender         string     `json:"gender"`
	MobileNumber   *string    `json:"mobileNumber,omitempty"`
	CreatedBy      uuid.UUID  `json:"createdBy"`
	CreatedAt      time.Time  `json:"createdAt"`
	VisitCount     int        `json:"visitCount"`
	LastVisitDate  *time.Time `json:"lastVisitDate"`
	ChiefComplaint string     `json:"chiefComplaint,omitempty"`
}

func newSummary(p *Patient) Summary {
	s := Summary{
		ID:           p.ID,
		PatientID:    p.PatientID,
		Name:         p.Name,
		Age:          p.Age,
		Gender:       p.Gender,
		MobileNumber: p.MobileNumber,
		CreatedBy:    p.CreatedBy,
		CreatedAt:    p.CreatedAt,
		VisitCount:   len(p.Visits),
	}
	if last := p.LastVisit(); last != nil {
		date := last.Date
		s.LastVisitDate = &date
		s.ChiefComplaint = last.ChiefComplaint
	}
	return s
}
