package patient

import (
	"context"
	"errors"
)

// CollectionKey is the record store key holding every patient.
const CollectionKey = "patients"

var (
	ErrNotFound     = errors.New("patient not found")
	ErrDuplicateCPF = errors.New("cpf already registered")
)

type Repository interface {
	List(ctx context.Context) ([]Patient, error)
	Create(ctx context.Context, p *Patient) error
	Update(ctx context.Context, p *Patient) error
	ToggleStatus(ctx context.Context, id int64) (*Patient, error)
	CPFExists(ctx context.Context, cpf string) (bool, error)
	GetByID(ctx context.Context, id int64) (*Patient, error)
	ListActive(ctx context.Context) ([]Patient, error)
}
