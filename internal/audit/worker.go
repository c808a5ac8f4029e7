package audit

import (
	"log"
	"sync"
	"time"

	"github.com/flashsale/flashsale/internal/models"
)

const (
	maxRetries  = 3
	retryBase   = 1 * time.Second
)

// Worker drains AuditJobs off a buffered channel and persists them,
// retrying transient Postgres failures with exponential backoff, exactly
// as the teacher's CheckoutWorker persists checkout attempts out-of-band
// from the request path.
type Worker struct {
	store *Store
	jobs  <-chan models.AuditJob
	wg    *sync.WaitGroup
}

// NewWorker constructs a Worker reading from jobs. wg.Add(1) is called by
// Start; callers wait on the same WaitGroup during shutdown.
func NewWorker(store *Store, jobs <-chan models.AuditJob, wg *sync.WaitGroup) *Worker {
	return &Worker{store: store, jobs: jobs, wg: wg}
}

// Start runs the worker loop in a new goroutine. It returns immediately.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *Worker) run() {
	defer w.wg.Done()
	for job := range w.jobs {
		if err := w.persist(job, 0); err != nil {
			log.Printf("audit: giving up on job for user %s after %d attempts: %v", job.UserID, maxRetries, err)
		}
	}
}

// persist attempts to record job, making at most maxRetries attempts in
// total, with a backoff of 1s before the second and 2s before the third.
// This is a best-effort audit write: a job dropped
// after exhausting retries does not affect the purchase decision already
// committed in Redis, only the operator's ability to audit it after the
// fact.
func (w *Worker) persist(job models.AuditJob, attempt int) error {
	if attempt > 0 {
		time.Sleep(retryBase * time.Duration(1<<(attempt-1)))
	}

	err := w.store.RecordAttempt(job)
	if err == nil {
		return nil
	}

	if attempt+1 >= maxRetries {
		return err
	}
	log.Printf("audit: retry %d/%d for user %s: %v", attempt+1, maxRetries, job.UserID, err)
	return w.persist(job, attempt+1)
}
