package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// AllocationService defines the methods that the allocation handler requires.
type AllocationService interface {
	Allocate(ctx context.Context, caller string, proof domain.Proof, commitmentID, targetPool string, amount int64) error
	Deallocate(ctx context.Context, caller string, proof domain.Proof, commitmentID, targetPool string, amount int64) error
	Tracking(ctx context.Context, commitmentID string) (domain.AllocationTracking, error)
	FreeBalance(ctx context.Context, commitmentID string) (int64, error)
}

// AllocationHandler serves the allocation sub-ledger endpoints.
type AllocationHandler struct {
	allocations AllocationService
	logger      *slog.Logger
}

// NewAllocationHandler creates an AllocationHandler with the given service and logger.
func NewAllocationHandler(allocations AllocationService, logger *slog.Logger) *AllocationHandler {
	return &AllocationHandler{allocations: allocations, logger: logger}
}

// allocationMoveRequest is the request body for both allocation directions.
type allocationMoveRequest struct {
	Caller     string       `json:"caller"`
	Proof      proofPayload `json:"proof"`
	TargetPool string       `json:"target_pool"`
	Amount     int64        `json:"amount"`
}

// allocationResponse is the wire form of one audit-trail entry.
type allocationResponse struct {
	CommitmentID string    `json:"commitment_id"`
	TargetPool   string    `json:"target_pool"`
	Amount       int64     `json:"amount"`
	Timestamp    time.Time `json:"timestamp"`
}

// trackingResponse is the wire form of the per-commitment sub-ledger.
type trackingResponse struct {
	CommitmentID   string               `json:"commitment_id"`
	TotalAllocated int64                `json:"total_allocated"`
	Allocations    []allocationResponse `json:"allocations"`
}

// Allocate moves commitment funds into an external yield pool. The caller
// must be an authorized allocator.
// POST /api/commitments/{id}/allocations
func (h *AllocationHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.allocations.Allocate, "allocate")
}

// Deallocate returns previously allocated funds from a pool. The caller must
// be an authorized allocator.
// POST /api/commitments/{id}/deallocations
func (h *AllocationHandler) Deallocate(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.allocations.Deallocate, "deallocate")
}

type moveFunc func(ctx context.Context, caller string, proof domain.Proof, commitmentID, targetPool string, amount int64) error

func (h *AllocationHandler) move(w http.ResponseWriter, r *http.Request, fn moveFunc, op string) {
	id := pathParam(r, "id")

	var req allocationMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	proof, err := req.Proof.decode()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := fn(r.Context(), req.Caller, proof, id, req.TargetPool, req.Amount); err != nil {
		h.writeServiceError(w, r, op, err)
		return
	}
	h.writeTracking(w, r, id)
}

// Tracking returns the running total and the ordered movement trail.
// GET /api/commitments/{id}/allocations
func (h *AllocationHandler) Tracking(w http.ResponseWriter, r *http.Request) {
	h.writeTracking(w, r, pathParam(r, "id"))
}

// FreeBalance returns the unallocated portion of the commitment's funds.
// GET /api/commitments/{id}/balance
func (h *AllocationHandler) FreeBalance(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	balance, err := h.allocations.FreeBalance(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get free balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"commitment_id": id,
		"free_balance":  balance,
	})
}

func (h *AllocationHandler) writeTracking(w http.ResponseWriter, r *http.Request, id string) {
	t, err := h.allocations.Tracking(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get allocation tracking", err)
		return
	}

	out := make([]allocationResponse, 0, len(t.Allocations))
	for _, a := range t.Allocations {
		out = append(out, allocationResponse{
			CommitmentID: a.CommitmentID,
			TargetPool:   a.TargetPool,
			Amount:       a.Amount,
			Timestamp:    a.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, trackingResponse{
		CommitmentID:   id,
		TotalAllocated: t.TotalAllocated,
		Allocations:    out,
	})
}

func (h *AllocationHandler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "commitment not found")
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrNotInitialized):
		writeError(w, http.StatusForbidden, "unauthorized")
	case errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance), errors.Is(err, domain.ErrOverDeallocation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrInactiveCommitment), errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrTransferFailed):
		writeError(w, http.StatusBadGateway, "asset transfer failed")
	default:
		h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}
