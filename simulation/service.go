package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Predictor reaches the external prediction service and returns the raw
// response payload. Implementations must enforce their own request
// timeout; the service never retries.
type Predictor interface {
	Predict(ctx context.Context, inputs PolicyInputs) ([]byte, error)
}

// Service wires validation, prediction, normalization, and the
// comparison store together. It owns the stored collection for the
// lifetime of the process and is safe for concurrent use.
type Service struct {
	store     Store
	predictor Predictor
	mock      *MockGenerator
	cache     ComparisonCache
	logger    *slog.Logger

	// Submission bookkeeping for the latest-wins rule: once a newer
	// request for the same logical submission has completed, a late
	// result for an older one is dropped instead of stored.
	mu        sync.Mutex
	nextSeq   uint64
	completed map[string]uint64
}

// NewService creates a service. predictor may be nil, in which case
// every simulate call uses the mock generator. logger may be nil.
func NewService(store Store, predictor Predictor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		predictor: predictor,
		mock:      NewMockGenerator(nil),
		cache:     NewInMemoryComparisonCache(DefaultCacheConfig()),
		logger:    logger,
		completed: make(map[string]uint64),
	}
}

func submissionKey(in PolicyInputs) string {
	return fmt.Sprintf("%s|%s|%v|%d", in.Country, in.PolicyType, in.CarbonPriceUSD, in.DurationYears)
}

func (s *Service) issueSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	return s.nextSeq
}

// commit records completion of a submission and reports whether this
// result is still the newest for its key. A superseded result must not
// reach the store.
func (s *Service) commit(key string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed[key] > seq {
		return false
	}
	s.completed[key] = seq
	return true
}

// Simulate validates inputs, obtains a prediction, normalizes it into a
// canonical result, and saves it to the comparison store. When the
// prediction service is unavailable and allowMock is set, the
// explicitly-labeled mock generator is used instead; partial upstream
// data is never mixed in. Validation failures surface before any
// network call.
func (s *Service) Simulate(ctx context.Context, inputs PolicyInputs, allowMock bool) (*SimulationResult, error) {
	if err := ValidateInputs(inputs); err != nil {
		return nil, err
	}

	key := submissionKey(inputs)
	seq := s.issueSeq()

	result, err := s.runPrediction(ctx, inputs, allowMock)
	if err != nil {
		return nil, err
	}

	if !s.commit(key, seq) {
		// A newer request for this submission already completed; return
		// the result but leave the store untouched.
		s.logger.Debug("dropping superseded simulation result",
			"country", inputs.Country, "policyType", inputs.PolicyType)
		return result, nil
	}

	if _, err := s.store.Save(result); err != nil {
		return nil, err
	}
	s.cache.Invalidate()
	return result, nil
}

// SimulateMock validates inputs and stores a generated result without
// contacting the prediction service. The result carries the mock source
// label so it can never masquerade as model output.
func (s *Service) SimulateMock(inputs PolicyInputs) (*SimulationResult, error) {
	if err := ValidateInputs(inputs); err != nil {
		return nil, err
	}

	key := submissionKey(inputs)
	seq := s.issueSeq()

	result := s.mock.Generate(inputs)
	if !s.commit(key, seq) {
		return result, nil
	}
	if _, err := s.store.Save(result); err != nil {
		return nil, err
	}
	s.cache.Invalidate()
	return result, nil
}

func (s *Service) runPrediction(ctx context.Context, inputs PolicyInputs, allowMock bool) (*SimulationResult, error) {
	if s.predictor == nil {
		s.logger.Info("no prediction service configured, using mock generator",
			"country", inputs.Country)
		return s.mock.Generate(inputs), nil
	}

	payload, err := s.predictor.Predict(ctx, inputs)
	if err != nil {
		if allowMock {
			s.logger.Warn("prediction service unavailable, falling back to mock generator",
				"error", err)
			return s.mock.Generate(inputs), nil
		}
		if errors.Is(err, ErrUpstreamUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	result, err := Normalize(payload, inputs)
	if err != nil {
		// An unrecognized shape is a hard failure; guessing a shape or
		// papering over it with mock data would corrupt comparisons.
		return nil, err
	}
	return result, nil
}

// List returns all stored results in insertion order.
func (s *Service) List() ([]*SimulationResult, error) {
	return s.store.List()
}

// Remove deletes one stored result. Unknown IDs are a no-op.
func (s *Service) Remove(id string) error {
	if err := s.store.Remove(id); err != nil {
		return err
	}
	s.cache.Invalidate()
	return nil
}

// ClearAll deletes every stored result. confirmed must be true; the
// confirmation prompt itself lives in the caller.
func (s *Service) ClearAll(confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if err := s.store.ClearAll(); err != nil {
		return err
	}
	s.cache.Invalidate()
	return nil
}

// Comparison returns the deduplicated comparison view, optionally
// sorted by one column. sortExpr is "field" or "field:order"; empty
// keeps PolicyID order.
func (s *Service) Comparison(sortExpr string) ([]ComparisonRow, error) {
	rows := s.cache.Get()
	if rows == nil {
		records, err := s.store.List()
		if err != nil {
			return nil, err
		}
		rows = BuildComparison(records)
		s.cache.Set(rows)
	}

	if sortExpr == "" {
		return rows, nil
	}
	field, order, err := ParseSort(sortExpr)
	if err != nil {
		return nil, err
	}
	return SortRows(rows, field, order)
}
