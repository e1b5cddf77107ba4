package directory

import (
	"context"
	"errors"
	"testing"
)

func testDoctors() []Doctor {
	return []Doctor{
		{ID: 1, Name: "Dr. Achieng", Type: "Dentist", Location: "Nairobi", Contact: "0722111222", Email: "achieng@example.com", Address: "Upper Hill"},
		{ID: 2, Name: "Dr. Mwangi", Type: "Dentist ", Location: "Nairobi", Contact: "0722333444", Email: "mwangi@example.com", Address: "Westlands"},
		{ID: 3, Name: "Dr. Otieno", Type: "Cardiologist", Location: "Kisumu", Contact: "0722555666", Email: "otieno@example.com", Address: "Milimani"},
	}
}

func TestInMemoryTypesDedupsTrimmed(t *testing.T) {
	repo := NewInMemoryRepository(testDoctors())
	types, err := repo.Types(context.Background())
	if err != nil {
		t.Fatalf("Types failed: %v", err)
	}
	if len(types) != 2 || types[0] != "Dentist" || types[1] != "Cardiologist" {
		t.Fatalf("unexpected types: %v", types)
	}
}

func TestInMemoryNamesByTypeLocation(t *testing.T) {
	repo := NewInMemoryRepository(testDoctors())

	names, err := repo.NamesByTypeLocation(context.Background(), "Dentist", "Nairobi")
	if err != nil {
		t.Fatalf("NamesByTypeLocation failed: %v", err)
	}
	if len(names) != 2 || names[0] != "Dr. Achieng" || names[1] != "Dr. Mwangi" {
		t.Fatalf("unexpected names: %v", names)
	}

	empty, err := repo.NamesByTypeLocation(context.Background(), "Dentist", "Garissa")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty result without error, got %v %v", empty, err)
	}
}

func TestInMemoryDetailsAndID(t *testing.T) {
	repo := NewInMemoryRepository(testDoctors())

	details, err := repo.Details(context.Background(), "Dr. Otieno")
	if err != nil {
		t.Fatalf("Details failed: %v", err)
	}
	if details.Location != "Kisumu" || details.Contact != "0722555666" {
		t.Fatalf("unexpected details: %+v", details)
	}

	id, err := repo.IDByName(context.Background(), "Dr. Otieno")
	if err != nil || id != 3 {
		t.Fatalf("unexpected id: %d %v", id, err)
	}

	if _, err := repo.Details(context.Background(), "Dr. Nobody"); !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
}
