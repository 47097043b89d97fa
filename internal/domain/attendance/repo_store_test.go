package attendance

import (
	"context"
	"errors"
	"testing"

	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/ids"
	"github.com/clinic/clinic/internal/platform/latency"
	"github.com/clinic/clinic/internal/platform/recordstore"
	"github.com/clinic/clinic/internal/platform/validation"
)

type testEnv struct {
	patients    patient.Repository
	attendances Repository
	backend     *recordstore.MemoryBackend
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	backend := recordstore.NewMemoryBackend()
	store := recordstore.New(backend)
	gen := ids.NewSequence(1)
	patients := patient.NewRepoStore(store, gen, latency.None())
	return &testEnv{
		patients:    patients,
		attendances: NewRepoStore(store, patients, gen, latency.None()),
		backend:     backend,
	}
}

func (env *testEnv) createPatient(t *testing.T, name, cpf string) patient.Patient {
	t.Helper()
	p := patient.Patient{
		Name:        name,
		DateOfBirth: "1990-04-12",
		CPF:         cpf,
		Gender:      "Feminino",
		Address: patient.Address{
			ZipCode:      "01001-000",
			City:         "São Paulo",
			Neighborhood: "Sé",
			Street:       "Praça da Sé",
		},
	}
	if err := env.patients.Create(context.Background(), &p); err != nil {
		t.Fatalf("create patient: %v", err)
	}
	return p
}

func visit(patientID int64, description string) Attendance {
	return Attendance{
		PatientID:   patientID,
		DateTime:    "2024-05-10T14:30",
		Description: description,
		Status:      StatusActive,
	}
}

func TestCreate_JoinsPatient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ana := env.createPatient(t, "Ana", "111.222.333-44")

	a := visit(ana.ID, "Consulta")
	created, err := env.attendances.Create(ctx, &a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID == 0 || a.ID != created.ID {
		t.Errorf("expected assigned id, got %d / %d", created.ID, a.ID)
	}
	if created.Patient == nil || created.Patient.Name != "Ana" {
		t.Fatalf("expected joined patient Ana, got %+v", created.Patient)
	}

	joined, err := env.attendances.ListWithPatientInfo(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(joined) != 1 || joined[0].Patient == nil || joined[0].Patient.Name != "Ana" {
		t.Errorf("expected Ana in joined list, got %+v", joined)
	}
}

func TestCreate_DanglingPatient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := visit(999999, "Retorno")
	created, err := env.attendances.Create(ctx, &a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Patient != nil {
		t.Errorf("expected nil patient, got %+v", created.Patient)
	}

	joined, err := env.attendances.ListWithPatientInfo(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(joined) != 1 || joined[0].Patient != nil {
		t.Errorf("expected one entry with nil patient, got %+v", joined)
	}
}

func TestCreate_DefaultsStatus(t *testing.T) {
	env := newTestEnv(t)
	a := visit(1, "Consulta")
	a.Status = ""
	created, err := env.attendances.Create(context.Background(), &a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Status != StatusActive {
		t.Errorf("expected Ativo, got %s", created.Status)
	}
}

func TestCreate_Validation(t *testing.T) {
	env := newTestEnv(t)
	a := visit(1, " ")
	a.DateTime = "10/05/2024 14:30"
	if _, err := env.attendances.Create(context.Background(), &a); !errors.Is(err, validation.ErrInvalid) {
		t.Fatalf("expected validation error, got %v", err)
	}
	items, _ := env.attendances.List(context.Background())
	if len(items) != 0 {
		t.Errorf("expected nothing stored, got %v", items)
	}
}

func TestCreate_IDsDoNotCollideAcrossCreates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seen := map[int64]bool{}
	for i := 0; i < 5; i++ {
		a := visit(1, "Consulta")
		if _, err := env.attendances.Create(ctx, &a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[a.ID] {
			t.Errorf("duplicate id %d", a.ID)
		}
		seen[a.ID] = true
	}
}

func TestUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ana := env.createPatient(t, "Ana", "111.222.333-44")
	bia := env.createPatient(t, "Bia", "555.666.777-88")

	a := visit(ana.ID, "Consulta")
	if _, err := env.attendances.Create(ctx, &a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a.PatientID = bia.ID
	a.Description = "Exame"
	updated, err := env.attendances.Update(ctx, &a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Patient == nil || updated.Patient.Name != "Bia" || updated.Description != "Exame" {
		t.Errorf("unexpected update result %+v", updated)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	env := newTestEnv(t)
	a := visit(1, "Consulta")
	a.ID = 77
	if _, err := env.attendances.Update(context.Background(), &a); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestToggleStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := visit(1, "Consulta")
	if _, err := env.attendances.Create(ctx, &a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	toggled, err := env.attendances.ToggleStatus(ctx, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toggled.Status != StatusInactive {
		t.Errorf("expected Inativo, got %s", toggled.Status)
	}
	toggled, _ = env.attendances.ToggleStatus(ctx, a.ID)
	if toggled.Status != StatusActive {
		t.Errorf("expected Ativo, got %s", toggled.Status)
	}

	if _, err := env.attendances.ToggleStatus(ctx, 12345); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListWithPatientInfo_CorruptPatients(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := visit(1, "Consulta")
	if _, err := env.attendances.Create(ctx, &a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = env.backend.Put(ctx, patient.CollectionKey, []byte("nope"))

	_, err := env.attendances.ListWithPatientInfo(ctx)
	var de *recordstore.DeserializationError
	if !errors.As(err, &de) || de.Key != patient.CollectionKey {
		t.Fatalf("expected DeserializationError on patients, got %v", err)
	}
}

func TestUpdate_MissingStatusKeepsStoredStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ana := env.createPatient(t, "Ana", "111.222.333-44")

	a := visit(ana.ID, "Consulta")
	if _, err := env.attendances.Create(ctx, &a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.attendances.ToggleStatus(ctx, a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	edit := a
	edit.Status = ""
	edit.Description = "Consulta de retorno"
	if _, err := env.attendances.Update(ctx, &edit); !errors.Is(err, validation.ErrInvalid) {
		t.Fatalf("expected validation error for missing status, got %v", err)
	}

	items, err := env.attendances.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Status != StatusInactive || items[0].Description != "Consulta" {
		t.Errorf("expected stored attendance untouched, got %+v", items)
	}
}

func TestCreate_PatientLookupFailureStillPersists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_ = env.backend.Put(ctx, patient.CollectionKey, []byte("nope"))

	a := visit(1, "Consulta")
	_, err := env.attendances.Create(ctx, &a)
	var de *recordstore.DeserializationError
	if !errors.As(err, &de) {
		t.Fatalf("expected lookup failure to surface, got %v", err)
	}

	items, err := env.attendances.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ID == 0 || items[0].Description != "Consulta" {
		t.Fatalf("expected attendance to be persisted, got %+v", items)
	}

	items[0].Description = "Exame"
	if _, err := env.attendances.Update(ctx, &items[0]); err == nil {
		t.Fatal("expected lookup failure on update")
	}
	after, _ := env.attendances.List(ctx)
	if len(after) != 1 || after[0].Description != "Exame" {
		t.Errorf("expected update to be persisted, got %+v", after)
	}
}

func TestListWithPatientInfo_JoinsEachWithItsPatient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ana := env.createPatient(t, "Ana", "111.222.333-44")
	bia := env.createPatient(t, "Bia", "555.666.777-88")
	caio := env.createPatient(t, "Caio", "999.888.777-66")

	want := map[int64]*patient.Patient{}
	for _, ref := range []int64{ana.ID, bia.ID, 424242, caio.ID, ana.ID, 515151} {
		a := visit(ref, "Consulta")
		if _, err := env.attendances.Create(ctx, &a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		switch ref {
		case ana.ID:
			want[a.ID] = &ana
		case bia.ID:
			want[a.ID] = &bia
		case caio.ID:
			want[a.ID] = &caio
		default:
			want[a.ID] = nil
		}
	}

	joined, err := env.attendances.ListWithPatientInfo(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(joined) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(joined))
	}
	for _, j := range joined {
		expected, ok := want[j.ID]
		if !ok {
			t.Errorf("unexpected attendance %d", j.ID)
			continue
		}
		if expected == nil {
			if j.Patient != nil {
				t.Errorf("attendance %d: expected nil patient, got %+v", j.ID, j.Patient)
			}
			continue
		}
		if j.Patient == nil || j.Patient.ID != expected.ID || j.Patient.Name != expected.Name || j.Patient.ID != j.PatientID {
			t.Errorf("attendance %d: expected patient %s, got %+v", j.ID, expected.Name, j.Patient)
		}
	}
}
