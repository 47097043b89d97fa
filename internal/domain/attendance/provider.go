package attendance

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/validation"
	"github.com/clinic/clinic/pkg/outcome"
)

// Provider caches the joined attendance list for the presentation layer.
type Provider struct {
	repo   Repository
	logger zerolog.Logger

	mu          sync.RWMutex
	attendances []WithPatient
	loaded      bool

	flight singleflight.Group
}

func NewProvider(repo Repository, logger zerolog.Logger) *Provider {
	return &Provider{
		repo:        repo,
		logger:      logger.With().Str("provider", "attendances").Logger(),
		attendances: []WithPatient{},
	}
}

func (p *Provider) Fetch(ctx context.Context) error {
	_, err, _ := p.flight.Do("attendances", func() (interface{}, error) {
		items, err := p.repo.ListWithPatientInfo(ctx)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.attendances = items
		p.loaded = true
		p.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("error fetching attendances")
	}
	return err
}

func (p *Provider) EnsureLoaded(ctx context.Context) error {
	p.mu.RLock()
	loaded := p.loaded
	p.mu.RUnlock()
	if loaded {
		return nil
	}
	return p.Fetch(ctx)
}

// Attendances returns a copy of the cached list.
func (p *Provider) Attendances() []WithPatient {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]WithPatient, len(p.attendances))
	copy(out, p.attendances)
	return out
}

func (p *Provider) Query(q Query) []WithPatient {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return q.Apply(p.attendances)
}

func (p *Provider) Create(ctx context.Context, in Attendance) outcome.Result {
	created, err := p.repo.Create(ctx, &in)
	if err != nil {
		p.logger.Error().Err(err).Int64("patient_id", in.PatientID).Msg("error creating attendance")
		return outcome.Fail(failureMessage(err, "Failed to create attendance"), err)
	}
	p.store(*created)
	return outcome.OK(*created)
}

func (p *Provider) Update(ctx context.Context, in Attendance) outcome.Result {
	updated, err := p.repo.Update(ctx, &in)
	if err != nil {
		p.logger.Error().Err(err).Int64("attendance_id", in.ID).Msg("error updating attendance")
		return outcome.Fail(failureMessage(err, "Failed to update attendance"), err)
	}
	p.store(*updated)
	return outcome.OK(*updated)
}

func (p *Provider) ToggleStatus(ctx context.Context, id int64) outcome.Result {
	toggled, err := p.repo.ToggleStatus(ctx, id)
	if err != nil {
		p.logger.Error().Err(err).Int64("attendance_id", id).Msg("error toggling attendance status")
		return outcome.Fail(failureMessage(err, "Failed to toggle attendance status"), err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.attendances {
		if p.attendances[i].ID == id {
			p.attendances[i].Attendance = *toggled
			return outcome.OK(p.attendances[i])
		}
	}
	return outcome.OK(WithPatient{Attendance: *toggled})
}

// PatientChanged refreshes the embedded patient of every cached attendance
// referencing pt. Register it with patient.Provider.OnChange.
func (p *Provider) PatientChanged(pt patient.Patient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.attendances {
		if p.attendances[i].PatientID == pt.ID {
			cp := pt
			p.attendances[i].Patient = &cp
		}
	}
}

func (p *Provider) store(a WithPatient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.attendances {
		if p.attendances[i].ID == a.ID {
			p.attendances[i] = a
			return
		}
	}
	p.attendances = append(p.attendances, a)
}

func failureMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "Attendance not found"
	case errors.Is(err, validation.ErrInvalid):
		return err.Error()
	default:
		return fallback
	}
}
