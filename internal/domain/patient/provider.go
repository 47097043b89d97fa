package patient

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/clinic/clinic/internal/platform/validation"
	"github.com/clinic/clinic/pkg/outcome"
)

// Provider keeps an in-memory copy of the patients collection for the
// presentation layer. Mutations go through the repository first; the cache
// is updated from the record the repository returns.
type Provider struct {
	repo   Repository
	logger zerolog.Logger

	mu        sync.RWMutex
	patients  []Patient
	loaded    bool
	listeners []func(Patient)

	flight singleflight.Group
}

func NewProvider(repo Repository, logger zerolog.Logger) *Provider {
	return &Provider{
		repo:     repo,
		logger:   logger.With().Str("provider", "patients").Logger(),
		patients: []Patient{},
	}
}

// OnChange registers fn to be called with every patient that was created,
// updated or toggled through this provider.
func (p *Provider) OnChange(fn func(Patient)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Fetch reloads the cache from the repository. Concurrent callers share one
// repository round trip.
func (p *Provider) Fetch(ctx context.Context) error {
	_, err, _ := p.flight.Do("patients", func() (interface{}, error) {
		items, err := p.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.patients = items
		p.loaded = true
		p.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("error fetching patients")
	}
	return err
}

// EnsureLoaded fetches once if the cache has never been filled.
func (p *Provider) EnsureLoaded(ctx context.Context) error {
	p.mu.RLock()
	loaded := p.loaded
	p.mu.RUnlock()
	if loaded {
		return nil
	}
	return p.Fetch(ctx)
}

// Patients returns a copy of the cached collection.
func (p *Provider) Patients() []Patient {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Patient, len(p.patients))
	copy(out, p.patients)
	return out
}

func (p *Provider) Query(q Query) []Patient {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return q.Apply(p.patients)
}

func (p *Provider) Get(ctx context.Context, id int64) (*Patient, error) {
	return p.repo.GetByID(ctx, id)
}

func (p *Provider) CPFExists(ctx context.Context, cpf string) (bool, error) {
	return p.repo.CPFExists(ctx, cpf)
}

func (p *Provider) Active(ctx context.Context) ([]Patient, error) {
	return p.repo.ListActive(ctx)
}

func (p *Provider) Create(ctx context.Context, in Patient) outcome.Result {
	if err := p.repo.Create(ctx, &in); err != nil {
		p.logger.Error().Err(err).Str("cpf", in.CPF).Msg("error creating patient")
		return outcome.Fail(failureMessage(err, "Failed to create patient"), err)
	}
	p.store(in)
	return outcome.OK(in)
}

func (p *Provider) Update(ctx context.Context, in Patient) outcome.Result {
	if err := p.repo.Update(ctx, &in); err != nil {
		p.logger.Error().Err(err).Int64("patient_id", in.ID).Msg("error updating patient")
		return outcome.Fail(failureMessage(err, "Failed to update patient"), err)
	}
	p.store(in)
	return outcome.OK(in)
}

func (p *Provider) ToggleStatus(ctx context.Context, id int64) outcome.Result {
	toggled, err := p.repo.ToggleStatus(ctx, id)
	if err != nil {
		p.logger.Error().Err(err).Int64("patient_id", id).Msg("error toggling patient status")
		return outcome.Fail(failureMessage(err, "Failed to toggle patient status"), err)
	}
	p.store(*toggled)
	return outcome.OK(*toggled)
}

// store replaces or appends pt in the cache and notifies listeners.
func (p *Provider) store(pt Patient) {
	p.mu.Lock()
	replaced := false
	for i := range p.patients {
		if p.patients[i].ID == pt.ID {
			p.patients[i] = pt
			replaced = true
			break
		}
	}
	if !replaced {
		p.patients = append(p.patients, pt)
	}
	listeners := append([]func(Patient){}, p.listeners...)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(pt)
	}
}

func failureMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, ErrDuplicateCPF):
		return "CPF already registered"
	case errors.Is(err, ErrNotFound):
		return "Patient not found"
	case errors.Is(err, validation.ErrInvalid):
		return err.Error()
	default:
		return fallback
	}
}
