package attendance

import (
	"context"
	"errors"

	"github.com/clinic/clinic/internal/domain/patient"
)

// CollectionKey is the record store key holding every attendance.
const CollectionKey = "attendances"

var ErrNotFound = errors.New("attendance not found")

// PatientSource is the part of the patient repository the join needs.
type PatientSource interface {
	GetByID(ctx context.Context, id int64) (*patient.Patient, error)
	List(ctx context.Context) ([]patient.Patient, error)
}

type Repository interface {
	List(ctx context.Context) ([]Attendance, error)
	Create(ctx context.Context, a *Attendance) (*WithPatient, error)
	Update(ctx context.Context, a *Attendance) (*WithPatient, error)
	ToggleStatus(ctx context.Context, id int64) (*Attendance, error)
	ListWithPatientInfo(ctx context.Context) ([]WithPatient, error)
}
