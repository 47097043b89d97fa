package patient

import (
	"strings"

	"github.com/clinic/clinic/internal/platform/validation"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Toggle returns the opposite status. Anything that is not active becomes
// active.
func (s Status) Toggle() Status {
	if s == StatusActive {
		return StatusInactive
	}
	return StatusActive
}

type Address struct {
	ZipCode      string `json:"zipCode" validate:"required,zipcode"`
	City         string `json:"city" validate:"required"`
	Neighborhood string `json:"neighborhood" validate:"required"`
	Street       string `json:"street" validate:"required"`
	Complement   string `json:"complement"`
}

// Patient is one entry of the patients collection.
type Patient struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name" validate:"required"`
	DateOfBirth string  `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	CPF         string  `json:"cpf" validate:"required,cpf"`
	Gender      string  `json:"gender" validate:"required"`
	Address     Address `json:"address"`
	Status      Status  `json:"status" validate:"oneof=active inactive"`
}

// Normalize trims free text and applies the CPF and CEP masks.
func (p *Patient) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.DateOfBirth = strings.TrimSpace(p.DateOfBirth)
	p.CPF = FormatCPF(p.CPF)
	p.Gender = strings.TrimSpace(p.Gender)
	p.Address.ZipCode = FormatZipCode(p.Address.ZipCode)
	p.Address.City = strings.TrimSpace(p.Address.City)
	p.Address.Neighborhood = strings.TrimSpace(p.Address.Neighborhood)
	p.Address.Street = strings.TrimSpace(p.Address.Street)
	p.Address.Complement = strings.TrimSpace(p.Address.Complement)
}

func (p *Patient) Validate() error {
	return validation.Struct(p)
}

func (p *Patient) IsActive() bool { return p.Status == StatusActive }
