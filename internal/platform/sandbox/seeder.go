// Package sandbox generates synthetic patients and attendances for demo and
// development environments. Output is reproducible for a given seed.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/attendance"
	"github.com/clinic/clinic/internal/domain/patient"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls the volume and shape of generated data.
type SeedConfig struct {
	PatientCount          int `json:"patientCount"`
	AttendancesPerPatient int `json:"attendancesPerPatient"`
	// InactivePercent is the share of patients toggled to inactive after
	// creation, 0-100.
	InactivePercent int   `json:"inactivePercent"`
	Seed            int64 `json:"seed"`
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		PatientCount:          25,
		AttendancesPerPatient: 3,
		InactivePercent:       10,
	}
}

// SeedResult summarizes a seed run.
type SeedResult struct {
	Patients         int           `json:"patients"`
	InactivePatients int           `json:"inactivePatients"`
	Attendances      int           `json:"attendances"`
	Seed             int64         `json:"seed"`
	Duration         time.Duration `json:"duration"`
}

// ---------------------------------------------------------------------------
// Pools
// ---------------------------------------------------------------------------

var (
	firstNamesFemale = []string{
		"Ana", "Beatriz", "Camila", "Daniela", "Eduarda", "Fernanda", "Gabriela",
		"Helena", "Isabela", "Juliana", "Larissa", "Mariana", "Natália", "Patrícia",
	}
	firstNamesMale = []string{
		"André", "Bruno", "Carlos", "Diego", "Eduardo", "Felipe", "Gustavo",
		"Henrique", "Igor", "João", "Lucas", "Marcos", "Pedro", "Rafael",
	}
	lastNames = []string{
		"Silva", "Santos", "Oliveira", "Souza", "Rodrigues", "Ferreira", "Alves",
		"Pereira", "Lima", "Gomes", "Costa", "Ribeiro", "Martins", "Carvalho",
	}

	places = []struct {
		ZipCode, City, Neighborhood, Street string
	}{
		{"01001-000", "São Paulo", "Sé", "Praça da Sé"},
		{"01310-100", "São Paulo", "Bela Vista", "Avenida Paulista"},
		{"20040-020", "Rio de Janeiro", "Centro", "Avenida Rio Branco"},
		{"30130-010", "Belo Horizonte", "Centro", "Avenida Afonso Pena"},
		{"40020-000", "Salvador", "Comércio", "Avenida da França"},
		{"80010-000", "Curitiba", "Centro", "Rua XV de Novembro"},
		{"90010-150", "Porto Alegre", "Centro Histórico", "Rua dos Andradas"},
		{"70040-010", "Brasília", "Asa Norte", "Esplanada dos Ministérios"},
	}

	complements = []string{"", "", "Apto 12", "Casa 2", "Bloco B", "Sala 301"}

	descriptions = []string{
		"Consulta de rotina", "Retorno", "Exame de sangue", "Avaliação cardiológica",
		"Vacinação", "Curativo", "Consulta pediátrica", "Eletrocardiograma",
		"Acompanhamento pré-natal", "Avaliação nutricional",
	}
)

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic synthetic records.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) randomDate(minYear, maxYear int) string {
	y := minYear + g.rng.Intn(maxYear-minYear+1)
	m := 1 + g.rng.Intn(12)
	d := 1 + g.rng.Intn(28) // safe for all months
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

// CPF returns a random CPF with valid check digits, masked.
func (g *DataGenerator) CPF() string {
	var d [11]int
	for i := 0; i < 9; i++ {
		d[i] = g.rng.Intn(10)
	}
	d[9] = cpfCheckDigit(d[:9])
	d[10] = cpfCheckDigit(d[:10])
	return fmt.Sprintf("%d%d%d.%d%d%d.%d%d%d-%d%d",
		d[0], d[1], d[2], d[3], d[4], d[5], d[6], d[7], d[8], d[9], d[10])
}

func cpfCheckDigit(digits []int) int {
	sum := 0
	weight := len(digits) + 1
	for _, v := range digits {
		sum += v * weight
		weight--
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

func (g *DataGenerator) GeneratePatient() patient.Patient {
	var first, gender string
	if g.rng.Intn(2) == 0 {
		first, gender = g.pick(firstNamesFemale), "Feminino"
	} else {
		first, gender = g.pick(firstNamesMale), "Masculino"
	}
	place := places[g.rng.Intn(len(places))]
	return patient.Patient{
		Name:        fmt.Sprintf("%s %s %s", first, g.pick(lastNames), g.pick(lastNames)),
		DateOfBirth: g.randomDate(1940, 2020),
		CPF:         g.CPF(),
		Gender:      gender,
		Address: patient.Address{
			ZipCode:      place.ZipCode,
			City:         place.City,
			Neighborhood: place.Neighborhood,
			Street:       fmt.Sprintf("%s, %d", place.Street, 1+g.rng.Intn(2000)),
			Complement:   g.pick(complements),
		},
		Status: patient.StatusActive,
	}
}

func (g *DataGenerator) GenerateAttendance(patientID int64) attendance.Attendance {
	status := attendance.StatusActive
	if g.rng.Intn(5) == 0 {
		status = attendance.StatusInactive
	}
	return attendance.Attendance{
		PatientID: patientID,
		DateTime: fmt.Sprintf("%sT%02d:%02d",
			g.randomDate(2023, 2025), 8+g.rng.Intn(10), 15*g.rng.Intn(4)),
		Description: g.pick(descriptions),
		Status:      status,
	}
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// maxCPFAttempts bounds retries when a generated CPF is already registered.
const maxCPFAttempts = 20

// Seeder writes generated data through the repositories so every record
// passes the same validation and uniqueness checks as user input.
type Seeder struct {
	patients    patient.Repository
	attendances attendance.Repository
	logger      zerolog.Logger
}

func NewSeeder(patients patient.Repository, attendances attendance.Repository, logger zerolog.Logger) *Seeder {
	return &Seeder{patients: patients, attendances: attendances, logger: logger}
}

// Seed creates cfg.PatientCount patients, each with cfg.AttendancesPerPatient
// attendances.
func (s *Seeder) Seed(ctx context.Context, cfg SeedConfig) (*SeedResult, error) {
	start := time.Now()
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	gen := NewDataGenerator(cfg.Seed)
	result := &SeedResult{Seed: cfg.Seed}

	for i := 0; i < cfg.PatientCount; i++ {
		p, err := s.createPatient(ctx, gen)
		if err != nil {
			return result, err
		}
		result.Patients++

		for j := 0; j < cfg.AttendancesPerPatient; j++ {
			a := gen.GenerateAttendance(p.ID)
			if _, err := s.attendances.Create(ctx, &a); err != nil {
				return result, fmt.Errorf("creating attendance for patient %d: %w", p.ID, err)
			}
			result.Attendances++
		}

		if cfg.InactivePercent > 0 && gen.rng.Intn(100) < cfg.InactivePercent {
			if _, err := s.patients.ToggleStatus(ctx, p.ID); err != nil {
				return result, fmt.Errorf("deactivating patient %d: %w", p.ID, err)
			}
			result.InactivePatients++
		}
	}

	result.Duration = time.Since(start)
	s.logger.Info().
		Int("patients", result.Patients).
		Int("attendances", result.Attendances).
		Int64("seed", result.Seed).
		Dur("duration", result.Duration).
		Msg("sandbox data seeded")
	return result, nil
}

func (s *Seeder) createPatient(ctx context.Context, gen *DataGenerator) (*patient.Patient, error) {
	p := gen.GeneratePatient()
	for attempt := 0; ; attempt++ {
		err := s.patients.Create(ctx, &p)
		if err == nil {
			return &p, nil
		}
		if !errors.Is(err, patient.ErrDuplicateCPF) || attempt >= maxCPFAttempts {
			return nil, fmt.Errorf("creating patient: %w", err)
		}
		p.CPF = gen.CPF()
	}
}

// ---------------------------------------------------------------------------
// SeedHandler: Echo HTTP handlers
// ---------------------------------------------------------------------------

// Refresher reloads a cache that seeding bypassed.
type Refresher interface {
	Fetch(ctx context.Context) error
}

// SeedHandler exposes seeding over HTTP in development. The seeder should
// run on repositories without simulated latency; refreshers are reloaded
// after every successful seed so list endpoints show the new records.
type SeedHandler struct {
	seeder     *Seeder
	refreshers []Refresher
	mu         sync.Mutex
}

func NewSeedHandler(seeder *Seeder, refreshers ...Refresher) *SeedHandler {
	return &SeedHandler{seeder: seeder, refreshers: refreshers}
}

func (h *SeedHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/sandbox/seed", h.handleSeed)
}

func (h *SeedHandler) handleSeed(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	cfg := DefaultSeedConfig()
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if cfg.PatientCount < 0 || cfg.AttendancesPerPatient < 0 || cfg.InactivePercent < 0 || cfg.InactivePercent > 100 {
		return echo.NewHTTPError(http.StatusBadRequest, "counts must be non-negative and inactivePercent within 0-100")
	}

	ctx := c.Request().Context()
	result, err := h.seeder.Seed(ctx, cfg)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	for _, r := range h.refreshers {
		if err := r.Fetch(ctx); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "seeded but failed to reload: "+err.Error())
		}
	}
	return c.JSON(http.StatusOK, result)
}
