package patient

import (
	"context"
	"fmt"

	"github.com/clinic/clinic/internal/platform/ids"
	"github.com/clinic/clinic/internal/platform/latency"
	"github.com/clinic/clinic/internal/platform/recordstore"
)

type patientRepoStore struct {
	patients *recordstore.Collection[Patient]
	ids      ids.Generator
	delay    *latency.Simulator
}

// NewRepoStore returns a Repository persisting the patients collection in
// store. Every call first waits on delay.
func NewRepoStore(store *recordstore.Store, gen ids.Generator, delay *latency.Simulator) Repository {
	return &patientRepoStore{
		patients: recordstore.NewCollection[Patient](store, CollectionKey),
		ids:      gen,
		delay:    delay,
	}
}

func (r *patientRepoStore) List(ctx context.Context) ([]Patient, error) {
	if err := r.delay.Wait(ctx); err != nil {
		return nil, err
	}
	return r.patients.Load(ctx)
}

func (r *patientRepoStore) Create(ctx context.Context, p *Patient) error {
	if err := r.delay.Wait(ctx); err != nil {
		return err
	}
	candidate := *p
	candidate.Normalize()
	candidate.Status = StatusActive
	if err := candidate.Validate(); err != nil {
		return err
	}

	err := r.patients.Mutate(ctx, func(items []Patient) ([]Patient, error) {
		if indexByCPF(items, candidate.CPF, 0) >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCPF, candidate.CPF)
		}
		existing := make([]int64, len(items))
		for i := range items {
			existing[i] = items[i].ID
		}
		candidate.ID = ids.Unused(r.ids, existing)
		return append(items, candidate), nil
	})
	if err != nil {
		return err
	}
	*p = candidate
	return nil
}

func (r *patientRepoStore) Update(ctx context.Context, p *Patient) error {
	if err := r.delay.Wait(ctx); err != nil {
		return err
	}
	candidate := *p
	candidate.Normalize()
	if err := candidate.Validate(); err != nil {
		return err
	}

	err := r.patients.Mutate(ctx, func(items []Patient) ([]Patient, error) {
		i := indexByID(items, candidate.ID)
		if i < 0 {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, candidate.ID)
		}
		if indexByCPF(items, candidate.CPF, candidate.ID) >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCPF, candidate.CPF)
		}
		items[i] = candidate
		return items, nil
	})
	if err != nil {
		return err
	}
	*p = candidate
	return nil
}

func (r *patientRepoStore) ToggleStatus(ctx context.Context, id int64) (*Patient, error) {
	if err := r.delay.Wait(ctx); err != nil {
		return nil, err
	}
	var toggled Patient
	err := r.patients.Mutate(ctx, func(items []Patient) ([]Patient, error) {
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

func (r *patientRepoStore) CPFExists(ctx context.Context, cpf string) (bool, error) {
	if err := r.delay.Wait(ctx); err != nil {
		return false, err
	}
	items, err := r.patients.Load(ctx)
	if err != nil {
		return false, err
	}
	return indexByCPF(items, FormatCPF(cpf), 0) >= 0, nil
}

func (r *patientRepoStore) GetByID(ctx context.Context, id int64) (*Patient, error) {
	if err := r.delay.Wait(ctx); err != nil {
		return nil, err
	}
	var found Patient
	err := r.patients.Read(ctx, func(items []Patient) error {
		i := indexByID(items, id)
		if i < 0 {
			return fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		found = items[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

func (r *patientRepoStore) ListActive(ctx context.Context) ([]Patient, error) {
	if err := r.delay.Wait(ctx); err != nil {
		return nil, err
	}
	items, err := r.patients.Load(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]Patient, 0, len(items))
	for _, p := range items {
		if p.IsActive() {
			active = append(active, p)
		}
	}
	return active, nil
}

func indexByID(items []Patient, id int64) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// indexByCPF finds a patient holding cpf, ignoring the one with id exclude.
func indexByCPF(items []Patient, cpf string, exclude int64) int {
	for i := range items {
		if items[i].CPF == cpf && (exclude == 0 || items[i].ID != exclude) {
			return i
		}
	}
	return -1
}
