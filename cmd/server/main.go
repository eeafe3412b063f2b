package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/ecoimpact/simulator/internal/logger"
	"github.com/ecoimpact/simulator/mlclient"
	"github.com/ecoimpact/simulator/simulation"
)

type Server struct {
	db     *sql.DB
	svc    *simulation.Service
	router *chi.Mux
}

// mlPredictor adapts the prediction-service client to the simulation
// service's Predictor interface.
type mlPredictor struct {
	client *mlclient.Client
}

func (p *mlPredictor) Predict(ctx context.Context, inputs simulation.PolicyInputs) ([]byte, error) {
	return p.client.Predict(ctx, mlclient.PredictionRequest{
		Country:     inputs.Country,
		PolicyType:  inputs.PolicyType.DisplayName(),
		CarbonPrice: inputs.CarbonPriceUSD,
		Duration:    inputs.DurationYears,
		Year:        time.Now().Year(),
	})
}

func NewServer() (*Server, error) {
	var db *sql.DB
	var store simulation.Store

	switch {
	case os.Getenv("DATABASE_URL") != "":
		var err error
		db, err = sql.Open("postgres", os.Getenv("DATABASE_URL"))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		store = simulation.NewPostgresStore(db)
		logger.Info("using postgres store")
	case os.Getenv("STORE_FILE") != "":
		var err error
		store, err = simulation.NewFileStore(os.Getenv("STORE_FILE"))
		if err != nil {
			return nil, fmt.Errorf("failed to open store file: %w", err)
		}
		logger.Info("using file store", "path", os.Getenv("STORE_FILE"))
	default:
		store = simulation.NewInMemoryStore()
		logger.Info("using in-memory store")
	}

	var predictor simulation.Predictor
	if baseURL := os.Getenv("ML_SERVICE_URL"); baseURL != "" {
		timeout := 30 * time.Second
		if secs := os.Getenv("ML_TIMEOUT_SECONDS"); secs != "" {
			if n, err := strconv.Atoi(secs); err == nil && n > 0 {
				timeout = time.Duration(n) * time.Second
			}
		}
		predictor = &mlPredictor{client: mlclient.New(mlclient.Options{
			BaseURL: baseURL,
			Timeout: timeout,
			Logger:  logger.Logger,
		})}
		logger.Info("prediction service configured", "url", baseURL, "timeout", timeout)
	} else {
		logger.Info("no prediction service configured, simulations use generated data")
	}

	s := &Server{
		db:  db,
		svc: simulation.NewService(store, predictor, logger.Logger),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)

	r.Post("/api/v1/simulate", s.handleSimulate)

	r.Route("/api/v1/simulations", func(r chi.Router) {
		r.Get("/", s.handleListSimulations)
		r.Delete("/", s.handleClearSimulations)
		r.Delete("/{simulationId}", s.handleRemoveSimulation)
	})

	r.Route("/api/v1/comparison", func(r chi.Router) {
		r.Get("/", s.handleComparison)
		r.Get("/export", s.handleExport)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	records, err := s.svc.List()
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:            "healthy",
		StoredSimulations: len(records),
		UpstreamFailures:  logger.UpstreamFailures.Load(),
		MockFallbacks:     logger.MockFallbacks.Load(),
	})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	policyType, err := simulation.NormalizePolicyType(req.PolicyType)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	inputs := simulation.PolicyInputs{
		Country:        req.Country,
		PolicyType:     policyType,
		CarbonPriceUSD: req.CarbonPrice,
		DurationYears:  req.Duration,
		CoveragePct:    req.Coverage,
	}

	var result *simulation.SimulationResult
	if req.UseMock {
		result, err = s.svc.SimulateMock(inputs)
	} else {
		result, err = s.svc.Simulate(r.Context(), inputs, req.AllowMockFallback)
	}
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	if result.Source == simulation.SourceMock {
		logger.CountMockFallback()
	}
	respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	records, err := s.svc.List()
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, SimulationsListResponse{Simulations: records})
}

func (s *Server) handleRemoveSimulation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "simulationId")
	if err := s.svc.Remove(id); err != nil {
		s.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearSimulations(w http.ResponseWriter, r *http.Request) {
	confirmed := r.URL.Query().Get("confirm") == "true"
	if err := s.svc.ClearAll(confirmed); err != nil {
		s.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	sortExpr := r.URL.Query().Get("sort")
	if sortExpr != "" {
		if _, _, err := simulation.ParseSort(sortExpr); err != nil {
			respondError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
	}
	rows, err := s.svc.Comparison(sortExpr)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	if rows == nil {
		rows = []simulation.ComparisonRow{}
	}
	respondJSON(w, http.StatusOK, ComparisonResponse{Rows: rows})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sortExpr := r.URL.Query().Get("sort")
	if sortExpr != "" {
		if _, _, err := simulation.ParseSort(sortExpr); err != nil {
			respondError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
	}
	rows, err := s.svc.Comparison(sortExpr)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	now := time.Now()
	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", simulation.ExportFilename("csv", now)))
		w.Write(simulation.ExportCSV(rows))
	case "json":
		payload, err := simulation.ExportJSON(rows)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to encode export", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", simulation.ExportFilename("json", now)))
		w.Write(payload)
	case "table":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(simulation.ExportTable(rows))
	default:
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("unknown export format %q (want csv, json, or table)", format), nil)
	}
}

// respondDomainError maps simulation package errors to HTTP statuses.
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	var verr *simulation.ValidationError
	if errors.As(err, &verr) {
		logger.CountValidationRejection()
		respondJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:  "validation failed",
			Fields: verr.Fields,
		})
		logger.CountHTTPStatus(http.StatusBadRequest)
		return
	}

	switch {
	case errors.Is(err, simulation.ErrConfirmationRequired):
		respondError(w, http.StatusBadRequest, "confirmation required: pass confirm=true", nil)
	case errors.Is(err, simulation.ErrUpstreamUnavailable):
		logger.CountUpstreamFailure()
		respondError(w, http.StatusBadGateway, "prediction service unavailable", err)
	case errors.Is(err, simulation.ErrUnknownShape):
		logger.CountUpstreamFailure()
		respondError(w, http.StatusBadGateway, "prediction service returned an unrecognized response", err)
	default:
		respondError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
	logger.CountHTTPStatus(status)
}

func main() {
	// Missing .env is fine; real deployments set the environment
	// directly.
	_ = godotenv.Load()

	server, err := NewServer()
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	if server.db != nil {
		defer server.db.Close()
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		logger.Error("logger shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
