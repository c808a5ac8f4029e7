// Package httpapi is the thin HTTP surface over the Sale Coordinator.
// Routing, CORS, and rate-limiting are plumbing per spec and are not part
// of the core's correctness guarantees: routing is kept minimal, and this
// package applies no CORS headers and no rate limiting.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/flashsale/flashsale/internal/models"
	"github.com/flashsale/flashsale/internal/sale"
)

// Server wires the Sale Coordinator to net/http.
type Server struct {
	coordinator *sale.Coordinator
	auditJobs   chan<- models.AuditJob
}

// NewServer constructs a Server. auditJobs may be nil, in which case
// audit records are dropped instead of enqueued — useful for tests that
// don't care about the audit trail.
func NewServer(coordinator *sale.Coordinator, auditJobs chan<- models.AuditJob) *Server {
	return &Server{coordinator: coordinator, auditJobs: auditJobs}
}

// Routes registers the production-facing HTTP surface on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sale/status", s.handleStatus)
	mux.HandleFunc("POST /api/sale/purchase", s.handlePurchase)
	mux.HandleFunc("GET /api/sale/purchase/{userId}", s.handleUserStatus)
}

// RoutesTestOnly additionally registers /api/sale/reset. Per spec, reset
// is test-only tooling and must not be mounted on a production surface;
// callers gate this behind an explicit opt-in (see cmd/server).
func (s *Server) RoutesTestOnly(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sale/reset", s.handleReset)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.coordinator.GetStatus(r.Context())
	if err != nil {
		log.Printf("httpapi: GetStatus failed: %v", err)
		writeError(w, http.StatusInternalServerError, "", "failed to read sale status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type purchaseRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, models.ReasonInvalidUserID, "malformed request body")
		return
	}
	if len(req.UserID) > 255 {
		writeError(w, http.StatusBadRequest, models.ReasonInvalidUserID, "userId must be 1-255 characters")
		return
	}

	result, err := s.coordinator.AttemptPurchase(r.Context(), req.UserID)
	if err != nil {
		log.Printf("httpapi: AttemptPurchase failed: %v", err)
		writeError(w, http.StatusInternalServerError, "", "internal error processing purchase")
		return
	}

	s.enqueueAudit(req.UserID, result)

	if result.Success {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":     true,
			"message":     result.Message,
			"purchasedAt": result.PurchasedAt.Format(time.RFC3339Nano),
		})
		return
	}

	status := http.StatusInternalServerError
	switch result.Reason {
	case models.ReasonInvalidUserID:
		status = http.StatusBadRequest
	case models.ReasonSaleNotActive:
		status = http.StatusForbidden
	case models.ReasonAlreadyPurchased, models.ReasonOutOfStock:
		status = http.StatusConflict
	}
	writeError(w, status, result.Reason, result.Message)
}

func (s *Server) handleUserStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, models.ReasonInvalidUserID, "userId must not be empty")
		return
	}

	status, err := s.coordinator.GetUserStatus(r.Context(), userID)
	if err != nil {
		log.Printf("httpapi: GetUserStatus failed: %v", err)
		writeError(w, http.StatusInternalServerError, "", "failed to read purchase status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleReset is test-only tooling and is not meant to be exposed on the
// production-facing surface (see cmd/server, which only mounts it behind
// an explicit flag).
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.coordinator.Reset(r.Context()); err != nil {
		log.Printf("httpapi: Reset failed: %v", err)
		writeError(w, http.StatusInternalServerError, "", "failed to reset sale state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) enqueueAudit(rawUserID string, result models.PurchaseResult) {
	if s.auditJobs == nil {
		return
	}
	job := models.AuditJob{
		RequestID:   uuid.New().String(),
		UserID:      rawUserID,
		Outcome:     result.Reason,
		Success:     result.Success,
		PurchasedAt: result.PurchasedAt,
		RecordedAt:  time.Now().UTC(),
	}
	select {
	case s.auditJobs <- job:
	default:
		log.Printf("httpapi: audit channel full, dropping audit record for request")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("httpapi: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, reason models.PurchaseReason, message string) {
	body := map[string]interface{}{
		"success": false,
		"message": message,
	}
	if reason != "" {
		body["reason"] = reason
	}
	writeJSON(w, status, body)
}
