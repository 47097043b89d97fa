package attendance

import (
	"strings"
	"time"

	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/validation"
)

// DateTimeLayout is the local date-time format attendances are entered in.
const DateTimeLayout = "2006-01-02T15:04"

type Status string

const (
	StatusActive   Status = "Ativo"
	StatusInactive Status = "Inativo"
)

func (s Status) Toggle() Status {
	if s == StatusActive {
		return StatusInactive
	}
	return StatusActive
}

// Attendance is one entry of the attendances collection. PatientID is not
// checked against the patients collection.
type Attendance struct {
	ID          int64  `json:"id"`
	PatientID   int64  `json:"patientId" validate:"required"`
	DateTime    string `json:"dateTime" validate:"required,datetime=2006-01-02T15:04"`
	Description string `json:"description" validate:"required"`
	Status      Status `json:"status" validate:"oneof=Ativo Inativo"`
}

// Normalize trims free text.
func (a *Attendance) Normalize() {
	a.DateTime = strings.TrimSpace(a.DateTime)
	a.Description = strings.TrimSpace(a.Description)
}

// defaultStatus marks a new attendance active when no status was given.
// Updates must carry an explicit status.
func (a *Attendance) defaultStatus() {
	if a.Status == "" {
		a.Status = StatusActive
	}
}

func (a *Attendance) Validate() error {
	return validation.Struct(a)
}

func (a *Attendance) IsActive() bool { return a.Status == StatusActive }

// Time parses DateTime in the local zone.
func (a *Attendance) Time() (time.Time, error) {
	return time.ParseInLocation(DateTimeLayout, a.DateTime, time.Local)
}

// WithPatient is an attendance joined with the patient it references.
// Patient is nil when the reference does not resolve.
type WithPatient struct {
	Attendance
	Patient *patient.Patient `json:"patient"`
}
