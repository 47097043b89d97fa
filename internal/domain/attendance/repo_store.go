package attendance

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/ids"
	"github.com/clinic/clinic/internal/platform/latency"
	"github.com/clinic/clinic/internal/platform/recordstore"
)

type attendanceRepoStore struct {
	attendances *recordstore.Collection[Attendance]
	patients    PatientSource
	ids         ids.Generator
	delay       *latency.Simulator
}

// NewRepoStore returns a Repository persisting the attendances collection in
// store and resolving patient references through patients.
func NewRepoStore(store *recordstore.Store, patients PatientSource, gen ids.Generator, delay *latency.Simulator) Repository {
	return &attendanceRepoStore{
		attendances: recordstore.NewCollection[Attendance](store, CollectionKey),
		patients:    patients,
		ids:         gen,
		delay:       delay,
	}
}

func (r *attendanceRepoStore) List(ctx context.Context) ([]Attendance, error) {
	if err := r.delay.Wait(ctx); err != nil {
		return nil, err
	}
	return r.attendances.Load(ctx)
}

func (r *attendanceRepoStore) Create(ctx context.Context, a *Attendance) (*WithPatient, error) {
	if err := r.delay.Wait(ctx); err != nil {
		return nil, err
	}
	candidate := *a
	candidate.Normalize()
	candidate.defaultStatus()
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	err := r.attendances.Mutate(ctx, func(items []Attendance) ([]Attendance, error) {
		existing := make([]int64, len(items))
		for i := range items {
			existing[i] = items[i].ID
		}
		candidate.ID = ids.Unused(r.ids, existing)
		return append(items, candidate), nil
	})
	if err != nil {
		return nil, err
	}
	// The record is persisted at this point; a lookup failure in join is
	// reported but does not roll the write back.
	*a = candidate
	return r.join(ctx, candidate)
}

func (r *attendanceRepoStore) Update(ctx context.Context, a *Attendance) (*WithPatient, error) {
	if err := r.delay.Wait(ctx); err != nil {
		return nil, err
	}
	candidate := *a
	candidate.Normalize()
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	err := r.attendances.Mutate(ctx, func(items []Attendance) ([]Attendance, error) {
		i := indexByID(items, candidate.ID)
		if i < 0 {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, candidate.ID)
		}
		items[i] = candidate
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	// Persisted even when join fails, as in Create.
	*a = candidate
	return r.join(ctx, candidate)
}

func (r *attendanceRepoStore) ToggleStatus(ctx context.Context, id int64) (*Attendance, error) {
	if err := r.delay.Wait(ctx); err != nil {
		return nil, err
	}
	var toggled Attendance
	err := r.attendances.Mutate(ctx, func(items []Attendance) ([]Attendance, error) {
		i := indexByID(items, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		items[i].Status = items[i].Status.Toggle()
		toggled = items[i]
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return &toggled, nil
}

// ListWithPatientInfo loads both collections concurrently and joins each
// attendance with its patient.
func (r *attendanceRepoStore) ListWithPatientInfo(ctx context.Context) ([]WithPatient, error) {
	if err := r.delay.Wait(ctx); err != nil {
		return nil, err
	}

	var (
		items    []Attendance
		patients []patient.Patient
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = r.attendances.Load(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		patients, err = r.patients.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[int64]*patient.Patient, len(patients))
	for i := range patients {
		byID[patients[i].ID] = &patients[i]
	}
	out := make([]WithPatient, len(items))
	for i, a := range items {
		out[i] = WithPatient{Attendance: a, Patient: byID[a.PatientID]}
	}
	return out, nil
}

// join resolves a's patient. A missing patient is not an error.
func (r *attendanceRepoStore) join(ctx context.Context, a Attendance) (*WithPatient, error) {
	p, err := r.patients.GetByID(ctx, a.PatientID)
	if err != nil && !errors.Is(err, patient.ErrNotFound) {
		return nil, fmt.Errorf("resolve patient %d: %w", a.PatientID, err)
	}
	return &WithPatient{Attendance: a, Patient: p}, nil
}

func indexByID(items []Attendance, id int64) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
