// Package prefs persists per-user preferences, currently the flagged
// patient list.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists flagged-patient lists in Postgres, one JSONB row per
// user.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a preference store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get returns the flagged patient identifiers for a user. A user without
// a stored row gets an empty list.
func (s *Store) Get(ctx context.Context, userID string) ([]string, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT flagged_patients FROM user_flags WHERE user_id = $1`, userID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting flags: %w", err)
	}

	var ids []string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, fmt.Errorf("unmarshaling flags: %w", err)
		}
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Set replaces the flagged patient list for a user.
func (s *Store) Set(ctx context.Context, userID string, patientIDs []string) error {
	if patientIDs == nil {
		patientIDs = []string{}
	}
	raw, err := json.Marshal(patientIDs)
	if err != nil {
		return fmt.Errorf("marshaling flags: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO user_flags (user_id, flagged_patients, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id)
		 DO UPDATE SET flagged_patients = EXCLUDED.flagged_patients, updated_at = now()`,
		userID, raw,
	)
	if err != nil {
		return fmt.Errorf("setting flags: %w", err)
	}
	return nil
}
