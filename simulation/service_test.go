package simulation

import (
	"context"
	"errors"
	"testing"
)

// fakePredictor returns canned payloads or errors and records calls.
type fakePredictor struct {
	payload []byte
	err     error
	calls   int
}

func (p *fakePredictor) Predict(ctx context.Context, inputs PolicyInputs) ([]byte, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.payload, nil
}

func TestSimulateHappyPath(t *testing.T) {
	store := NewInMemoryStore()
	pred := &fakePredictor{payload: []byte(yearlyPayload)}
	svc := NewService(store, pred, nil)

	res, err := svc.Simulate(context.Background(), testInputs, false)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if res.Source != SourceModel {
		t.Errorf("expected model source, got %q", res.Source)
	}

	records, _ := store.List()
	if len(records) != 1 || records[0].ID != res.ID {
		t.Fatalf("expected result saved to store")
	}
}

func TestSimulateValidatesBeforePredicting(t *testing.T) {
	pred := &fakePredictor{payload: []byte(yearlyPayload)}
	svc := NewService(NewInMemoryStore(), pred, nil)

	bad := testInputs
	bad.CarbonPriceUSD = -5
	bad.DurationYears = 50

	_, err := svc.Simulate(context.Background(), bad, false)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if _, ok := verr.Fields["carbonPriceUSD"]; !ok {
		t.Error("expected carbonPriceUSD in field errors")
	}
	if _, ok := verr.Fields["durationYears"]; !ok {
		t.Error("expected durationYears in field errors")
	}
	if pred.calls != 0 {
		t.Errorf("predictor called %d times for invalid inputs", pred.calls)
	}
}

func TestSimulateUpstreamFailureWithoutFallback(t *testing.T) {
	store := NewInMemoryStore()
	pred := &fakePredictor{err: errors.New("connection refused")}
	svc := NewService(store, pred, nil)

	_, err := svc.Simulate(context.Background(), testInputs, false)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}

	records, _ := store.List()
	if len(records) != 0 {
		t.Error("nothing should be stored on upstream failure")
	}
}

func TestSimulateMockFallbackIsLabeled(t *testing.T) {
	store := NewInMemoryStore()
	pred := &fakePredictor{err: errors.New("connection refused")}
	svc := NewService(store, pred, nil)

	res, err := svc.Simulate(context.Background(), testInputs, true)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if res.Source != SourceMock {
		t.Errorf("expected mock source on fallback, got %q", res.Source)
	}

	records, _ := store.List()
	if len(records) != 1 || records[0].Source != SourceMock {
		t.Error("expected stored record labeled mock")
	}
}

func TestSimulateUnknownShapeNeverFallsBack(t *testing.T) {
	store := NewInMemoryStore()
	pred := &fakePredictor{payload: []byte(`{"unexpected": true}`)}
	svc := NewService(store, pred, nil)

	// allowMock covers unavailability, not malformed responses; a
	// reachable service speaking an unknown dialect is a hard error.
	_, err := svc.Simulate(context.Background(), testInputs, true)
	if !errors.Is(err, ErrUnknownShape) {
		t.Fatalf("expected ErrUnknownShape, got %v", err)
	}
	records, _ := store.List()
	if len(records) != 0 {
		t.Error("nothing should be stored for an unknown shape")
	}
}

// gatedPredictor blocks each Predict call on a caller-supplied gate so
// tests can control completion order. Gates are handed out in call order.
type gatedPredictor struct {
	payload []byte
	entered chan struct{}
	gates   chan chan struct{}
}

func (p *gatedPredictor) Predict(ctx context.Context, inputs PolicyInputs) ([]byte, error) {
	gate := <-p.gates
	p.entered <- struct{}{}
	<-gate
	return p.payload, nil
}

func TestSimulateSupersededResultNotStored(t *testing.T) {
	store := NewInMemoryStore()
	pred := &gatedPredictor{
		payload: []byte(yearlyPayload),
		entered: make(chan struct{}),
		gates:   make(chan chan struct{}, 2),
	}
	svc := NewService(store, pred, nil)

	type outcome struct {
		res *SimulationResult
		err error
	}
	run := func(done chan outcome) {
		res, err := svc.Simulate(context.Background(), testInputs, false)
		done <- outcome{res, err}
	}

	firstGate := make(chan struct{})
	secondGate := make(chan struct{})

	firstDone := make(chan outcome, 1)
	pred.gates <- firstGate
	go run(firstDone)
	<-pred.entered

	secondDone := make(chan outcome, 1)
	pred.gates <- secondGate
	go run(secondDone)
	<-pred.entered

	// The newer submission completes first and is stored.
	close(secondGate)
	second := <-secondDone
	if second.err != nil {
		t.Fatalf("second Simulate failed: %v", second.err)
	}

	// The older one finishes late: its result is returned to the caller
	// but must never reach the store.
	close(firstGate)
	first := <-firstDone
	if first.err != nil {
		t.Fatalf("first Simulate failed: %v", first.err)
	}
	if first.res == nil {
		t.Fatal("superseded call should still return its result")
	}

	records, _ := store.List()
	if len(records) != 1 {
		t.Fatalf("expected only the newest result stored, got %d records", len(records))
	}
	if records[0].ID != second.res.ID {
		t.Errorf("stored record %s is not the newest result %s", records[0].ID, second.res.ID)
	}
}

func TestSimulateNilPredictorUsesMock(t *testing.T) {
	svc := NewService(NewInMemoryStore(), nil, nil)
	res, err := svc.Simulate(context.Background(), testInputs, false)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if res.Source != SourceMock {
		t.Errorf("expected mock source with no predictor, got %q", res.Source)
	}
}

func TestSimulateMockExplicitPath(t *testing.T) {
	store := NewInMemoryStore()
	pred := &fakePredictor{payload: []byte(yearlyPayload)}
	svc := NewService(store, pred, nil)

	res, err := svc.SimulateMock(testInputs)
	if err != nil {
		t.Fatalf("SimulateMock failed: %v", err)
	}
	if res.Source != SourceMock {
		t.Errorf("expected mock source, got %q", res.Source)
	}
	if pred.calls != 0 {
		t.Error("explicit mock path must not touch the predictor")
	}
	records, _ := store.List()
	if len(records) != 1 {
		t.Error("expected mock result stored")
	}
}

func TestClearAllRequiresConfirmation(t *testing.T) {
	store := NewInMemoryStore()
	svc := NewService(store, nil, nil)

	if _, err := svc.SimulateMock(testInputs); err != nil {
		t.Fatalf("SimulateMock failed: %v", err)
	}

	if err := svc.ClearAll(false); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
	records, _ := store.List()
	if len(records) != 1 {
		t.Error("unconfirmed clear-all must not delete anything")
	}

	if err := svc.ClearAll(true); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	records, _ = store.List()
	if len(records) != 0 {
		t.Error("expected empty store after confirmed clear-all")
	}
}

func TestComparisonInvalidatesOnMutation(t *testing.T) {
	svc := NewService(NewInMemoryStore(), nil, nil)

	res, err := svc.SimulateMock(testInputs)
	if err != nil {
		t.Fatalf("SimulateMock failed: %v", err)
	}

	rows, err := svc.Comparison("")
	if err != nil {
		t.Fatalf("Comparison failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	if err := svc.Remove(res.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	rows, err = svc.Comparison("")
	if err != nil {
		t.Fatalf("Comparison failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected cache invalidated after removal, got %d rows", len(rows))
	}
}

func TestComparisonSortExpression(t *testing.T) {
	svc := NewService(NewInMemoryStore(), nil, nil)

	for _, price := range []float64{30, 10, 20} {
		in := testInputs
		in.CarbonPriceUSD = price
		if _, err := svc.SimulateMock(in); err != nil {
			t.Fatalf("SimulateMock failed: %v", err)
		}
	}

	rows, err := svc.Comparison("carbonPrice:asc")
	if err != nil {
		t.Fatalf("Comparison failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].CarbonPrice != 10 || rows[2].CarbonPrice != 30 {
		t.Errorf("rows not sorted by price: %v %v %v",
			rows[0].CarbonPrice, rows[1].CarbonPrice, rows[2].CarbonPrice)
	}

	if _, err := svc.Comparison("bogus:asc"); err == nil {
		t.Error("expected error for invalid sort field")
	}
}
