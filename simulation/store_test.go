package simulation

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testResult(country string, price float64) *SimulationResult {
	return &SimulationResult{
		Source: SourceModel,
		Inputs: PolicyInputs{
			Country:        country,
			PolicyType:     PolicyCarbonTax,
			CarbonPriceUSD: price,
			DurationYears:  5,
		},
		Predictions: Predictions{AnnualRevenueMillionUSD: price * 40},
	}
}

func runStoreContract(t *testing.T, store Store) {
	t.Helper()

	id1, err := store.Save(testResult("Pakistan", 25))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	id2, err := store.Save(testResult("Japan", 30))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if id1 == "" || id1 == id2 {
		t.Errorf("expected distinct non-empty IDs, got %q and %q", id1, id2)
	}

	records, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Inputs.Country != "Pakistan" || records[1].Inputs.Country != "Japan" {
		t.Error("records not in insertion order")
	}
	if records[0].Timestamp.IsZero() {
		t.Error("expected Save to fill a zero timestamp")
	}

	// Removing an absent ID is a no-op.
	if err := store.Remove("no-such-id"); err != nil {
		t.Errorf("Remove of absent ID should be a no-op, got %v", err)
	}

	if err := store.Remove(id1); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	records, err = store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != id2 {
		t.Fatalf("expected only %q to remain, got %d records", id2, len(records))
	}

	if err := store.ClearAll(); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	records, err = store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty store after ClearAll, got %d records", len(records))
	}
}

func TestInMemoryStoreContract(t *testing.T) {
	runStoreContract(t, NewInMemoryStore())
}

func TestFileStoreContract(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "simulations.json"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	runStoreContract(t, store)
}

func TestStorePreservesAssignedIdentity(t *testing.T) {
	store := NewInMemoryStore()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	res := testResult("Pakistan", 25)
	res.ID = "fixed-id"
	res.Timestamp = ts

	id, err := store.Save(res)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if id != "fixed-id" {
		t.Errorf("expected assigned ID preserved, got %q", id)
	}
	records, _ := store.List()
	if !records[0].Timestamp.Equal(ts) {
		t.Errorf("expected assigned timestamp preserved, got %v", records[0].Timestamp)
	}
}

func TestInMemoryStoreRegeneratesOnIDCollision(t *testing.T) {
	store := NewInMemoryStore()

	first := testResult("Pakistan", 25)
	first.ID = "dup"
	second := testResult("Japan", 30)
	second.ID = "dup"

	if _, err := store.Save(first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	id, err := store.Save(second)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if id == "dup" {
		t.Error("expected a regenerated ID on collision")
	}
	records, _ := store.List()
	if len(records) != 2 {
		t.Errorf("expected both records kept, got %d", len(records))
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simulations.json")

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	id, err := store.Save(testResult("Pakistan", 25))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	records, err := reopened.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != id {
		t.Fatalf("expected persisted record %q, got %d records", id, len(records))
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simulations.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if _, err := store.List(); err == nil {
		t.Error("expected error for corrupt store file")
	}
}
