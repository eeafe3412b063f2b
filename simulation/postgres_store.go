package simulation

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store backed by PostgreSQL. The full canonical
// document is stored as JSONB next to the identity columns the
// comparison view dedupes on; insertion order is a serial position
// column, matching the Store contract.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed store. The schema is
// managed by cmd/migrate.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(result *SimulationResult) (string, error) {
	rec := stamp(result)
	doc, err := json.Marshal(rec)
	if err != nil {
		return "", &StorageError{Op: "write", Err: err}
	}

	_, err = s.db.Exec(`
		INSERT INTO simulations (id, created_at, country, policy_type, carbon_price, duration_years, document)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.Timestamp, rec.Inputs.Country, string(rec.Inputs.PolicyType),
		rec.Inputs.CarbonPriceUSD, rec.Inputs.DurationYears, doc)
	if err != nil {
		return "", &StorageError{Op: "write", Err: fmt.Errorf("insert simulation: %w", err)}
	}
	return rec.ID, nil
}

func (s *PostgresStore) List() ([]*SimulationResult, error) {
	rows, err := s.db.Query(`
		SELECT document
		FROM simulations
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, &StorageError{Op: "read", Err: fmt.Errorf("list simulations: %w", err)}
	}
	defer rows.Close()

	var records []*SimulationResult
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, &StorageError{Op: "read", Err: fmt.Errorf("scan simulation: %w", err)}
		}
		var rec SimulationResult
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, &StorageError{Op: "read", Err: fmt.Errorf("decode simulation: %w", err)}
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}
	return records, nil
}

func (s *PostgresStore) Remove(id string) error {
	// Absent IDs are a no-op by contract, so RowsAffected is not checked.
	_, err := s.db.Exec(`DELETE FROM simulations WHERE id = $1`, id)
	if err != nil {
		return &StorageError{Op: "delete", Err: fmt.Errorf("delete simulation: %w", err)}
	}
	return nil
}

func (s *PostgresStore) ClearAll() error {
	_, err := s.db.Exec(`DELETE FROM simulations`)
	if err != nil {
		return &StorageError{Op: "delete", Err: fmt.Errorf("clear simulations: %w", err)}
	}
	return nil
}
