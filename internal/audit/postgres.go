// Package audit is the durable, write-only audit trail for purchase
// attempts. It is fed by a background worker reading off a buffered
// channel, exactly as the teacher's CheckoutWorker/PurchaseWorker consume
// jobs — but its table is never read to answer a purchase request. Redis
// remains the sole source of truth for the purchase decision; Postgres
// here exists purely so an operator can answer "what happened" after the
// fact, which is explicitly allowed to lag.
package audit

import (
	"database/sql"
	"fmt"

	"github.com/flashsale/flashsale/internal/models"
)

// Store persists PurchaseResult outcomes for later inspection.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-connected *sql.DB.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InitializeTables creates the audit schema if it does not already exist.
// Idempotent, like the teacher's InitializeTables.
func (s *Store) InitializeTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS purchase_attempts (
			id SERIAL PRIMARY KEY,
			request_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			outcome TEXT NOT NULL,
			purchased_at TIMESTAMPTZ,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("creating purchase_attempts table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS reconciliation_runs (
			id SERIAL PRIMARY KEY,
			ran_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			redis_successes INTEGER NOT NULL,
			audit_successes INTEGER NOT NULL,
			divergent BOOLEAN NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating reconciliation_runs table: %w", err)
	}

	return nil
}

// RecordAttempt appends one audit row. Append-only: no update or delete
// path exists, matching the "never overwritten" ledger invariant it mirrors.
func (s *Store) RecordAttempt(job models.AuditJob) error {
	var purchasedAt sql.NullTime
	if job.Success {
		purchasedAt = sql.NullTime{Time: job.PurchasedAt, Valid: true}
	}
	outcome := string(job.Outcome)
	if job.Success {
		outcome = "success"
	}
	_, err := s.db.Exec(
		`INSERT INTO purchase_attempts (request_id, user_id, success, outcome, purchased_at, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		job.RequestID, job.UserID, job.Success, outcome, purchasedAt, job.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting purchase_attempts row: %w", err)
	}
	return nil
}

// CountSuccesses returns the number of audited successful purchases, used
// by the reconciliation job to compare against Redis's ledger count.
func (s *Store) CountSuccesses() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM purchase_attempts WHERE success = TRUE`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting audited successes: %w", err)
	}
	return n, nil
}

// RecordReconciliationRun logs one reconciliation pass for later inspection.
func (s *Store) RecordReconciliationRun(redisSuccesses, auditSuccesses int) error {
	_, err := s.db.Exec(
		`INSERT INTO reconciliation_runs (redis_successes, audit_successes, divergent) VALUES ($1, $2, $3)`,
		redisSuccesses, auditSuccesses, redisSuccesses != auditSuccesses,
	)
	if err != nil {
		return fmt.Errorf("inserting reconciliation_runs row: %w", err)
	}
	return nil
}
