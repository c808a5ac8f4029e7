// Package models defines the shared request/response and job types used
// across the sale coordinator, the HTTP layer, and the background audit
// worker.
package models

import "time"

// SaleState is the derived state of the sale window.
type SaleState string

const (
	SaleStateUpcoming SaleState = "upcoming"
	SaleStateActive   SaleState = "active"
	SaleStateEnded    SaleState = "ended"
)

// PurchaseReason enumerates the non-success outcomes of AttemptPurchase.
type PurchaseReason string

const (
	ReasonInvalidUserID    PurchaseReason = "invalid_user_id"
	ReasonSaleNotActive    PurchaseReason = "sale_not_active"
	ReasonAlreadyPurchased PurchaseReason = "already_purchased"
	ReasonOutOfStock       PurchaseReason = "out_of_stock"
)

// SaleStatusResponse is returned by GET /api/sale/status.
type SaleStatusResponse struct {
	Status         SaleState `json:"status"`
	StartsAt       time.Time `json:"startsAt"`
	EndsAt         time.Time `json:"endsAt"`
	RemainingStock int       `json:"remainingStock"`
	TotalStock     int       `json:"totalStock"`
	ProductName    string    `json:"productName"`
	ProductPrice   string    `json:"productPrice"`
	ServerTime     time.Time `json:"serverTime"`
}

// PurchaseResult is the tagged outcome of AttemptPurchase. When Success is
// false, Reason carries the rejection variant; when true, PurchasedAt is
// the commit instant.
type PurchaseResult struct {
	Success     bool
	Reason      PurchaseReason
	Message     string
	PurchasedAt time.Time
}

// UserStatusResponse is returned by GET /api/sale/purchase/:userId.
type UserStatusResponse struct {
	HasPurchased bool       `json:"hasPurchased"`
	PurchasedAt  *time.Time `json:"purchasedAt,omitempty"`
}

// AuditJob records one AttemptPurchase outcome for the background audit
// worker. It is write-once and never consulted on the purchase hot path.
type AuditJob struct {
	RequestID   string
	UserID      string
	Outcome     PurchaseReason // empty on success
	Success     bool
	PurchasedAt time.Time
	RecordedAt  time.Time
}
