// Package reconcile periodically compares the authoritative Redis ledger
// against the Postgres audit trail and logs any divergence. It never
// writes back to Redis: Redis is authoritative for the purchase decision,
// and "correcting" it from a derived audit log would invert that
// authority, turning a lagging debug view into a second source of truth.
package reconcile

import (
	"context"
	"log"
	"time"

	"github.com/flashsale/flashsale/internal/audit"
	"github.com/flashsale/flashsale/internal/ledger"
)

// Interval matches the teacher's reconcileRedisWithDB ticker.
const Interval = 10 * time.Second

// Service is the reconciliation job.
type Service struct {
	ledger *ledger.Ledger
	audit  *audit.Store
}

// New constructs a reconciliation Service.
func New(l *ledger.Ledger, a *audit.Store) *Service {
	return &Service{ledger: l, audit: a}
}

// Start runs the reconciliation loop in a new goroutine until ctx is
// canceled.
func (s *Service) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Service) run(ctx context.Context) {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reconcileOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) reconcileOnce(ctx context.Context) {
	redisCount, err := s.ledger.GetPurchaseCount(ctx)
	if err != nil {
		log.Printf("reconcile: failed to read ledger count: %v", err)
		return
	}

	auditCount, err := s.audit.CountSuccesses()
	if err != nil {
		log.Printf("reconcile: failed to read audit success count: %v", err)
		return
	}

	if err := s.audit.RecordReconciliationRun(redisCount, auditCount); err != nil {
		log.Printf("reconcile: failed to record run: %v", err)
	}

	if redisCount != auditCount {
		log.Printf("reconcile: divergence detected: redis ledger has %d entries, audit trail has %d successes", redisCount, auditCount)
	}
}
