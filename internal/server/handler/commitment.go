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

// CommitmentService defines the methods that the commitment handler requires.
type CommitmentService interface {
	Create(ctx context.Context, owner string, proof domain.Proof, amount int64, assetAddress string, rules domain.CommitmentRules) (domain.Commitment, error)
	Get(ctx context.Context, id string) (domain.Commitment, error)
	ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Commitment, error)
	ListByOwner(ctx context.Context, owner string, opts domain.ListOpts) ([]domain.Commitment, error)
	UpdateValue(ctx context.Context, caller string, proof domain.Proof, id string, newValue int64) error
	ViolationDetails(ctx context.Context, id string) (domain.ViolationDetails, error)
	Settle(ctx context.Context, id string) error
	EarlyExit(ctx context.Context, id, caller string, proof domain.Proof) error
}

// CommitmentHandler serves the commitment lifecycle endpoints.
type CommitmentHandler struct {
	commitments CommitmentService
	logger      *slog.Logger
}

// NewCommitmentHandler creates a CommitmentHandler with the given service and logger.
func NewCommitmentHandler(commitments CommitmentService, logger *slog.Logger) *CommitmentHandler {
	return &CommitmentHandler{commitments: commitments, logger: logger}
}

// rulesPayload is the wire form of commitment rules.
type rulesPayload struct {
	DurationDays     int    `json:"duration_days"`
	MaxLossPercent   int    `json:"max_loss_percent"`
	CommitmentType   string `json:"commitment_type"`
	EarlyExitPenalty int    `json:"early_exit_penalty"`
	MinFeeThreshold  int64  `json:"min_fee_threshold"`
}

func (p rulesPayload) toDomain() domain.CommitmentRules {
	return domain.CommitmentRules{
		DurationDays:     p.DurationDays,
		MaxLossPercent:   p.MaxLossPercent,
		CommitmentType:   domain.CommitmentType(p.CommitmentType),
		EarlyExitPenalty: p.EarlyExitPenalty,
		MinFeeThreshold:  p.MinFeeThreshold,
	}
}

// commitmentResponse is the wire form of a commitment record.
type commitmentResponse struct {
	ID           string       `json:"id"`
	Owner        string       `json:"owner"`
	NFTTokenID   uint64       `json:"nft_token_id,omitempty"`
	Rules        rulesPayload `json:"rules"`
	Amount       int64        `json:"amount"`
	AssetAddress string       `json:"asset_address"`
	CreatedAt    time.Time    `json:"created_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
	CurrentValue int64        `json:"current_value"`
	Status       string       `json:"status"`
}

func toCommitmentResponse(c domain.Commitment) commitmentResponse {
	return commitmentResponse{
		ID:         c.ID,
		Owner:      c.Owner,
		NFTTokenID: c.NFTTokenID,
		Rules: rulesPayload{
			DurationDays:     c.Rules.DurationDays,
			MaxLossPercent:   c.Rules.MaxLossPercent,
			CommitmentType:   string(c.Rules.CommitmentType),
			EarlyExitPenalty: c.Rules.EarlyExitPenalty,
			MinFeeThreshold:  c.Rules.MinFeeThreshold,
		},
		Amount:       c.Amount,
		AssetAddress: c.AssetAddress,
		CreatedAt:    c.CreatedAt,
		ExpiresAt:    c.ExpiresAt,
		CurrentValue: c.CurrentValue,
		Status:       string(c.Status),
	}
}

// createCommitmentRequest is the request body for commitment creation.
type createCommitmentRequest struct {
	Owner        string       `json:"owner"`
	Proof        proofPayload `json:"proof"`
	Amount       int64        `json:"amount"`
	AssetAddress string       `json:"asset_address"`
	Rules        rulesPayload `json:"rules"`
}

// Create locks funds into a new commitment.
// POST /api/commitments
func (h *CommitmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCommitmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	proof, err := req.Proof.decode()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.commitments.Create(r.Context(), req.Owner, proof, req.Amount, req.AssetAddress, req.Rules.toDomain())
	if err != nil {
		h.writeServiceError(w, r, "create commitment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommitmentResponse(c))
}

// listCommitmentsResponse wraps the commitment list response.
type listCommitmentsResponse struct {
	Commitments []commitmentResponse `json:"commitments"`
}

// List returns active commitments, or a single owner's commitments when the
// owner query parameter is set.
// GET /api/commitments?owner=0xabc&limit=50&offset=0
func (h *CommitmentHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	var (
		list []domain.Commitment
		err  error
	)
	if owner := r.URL.Query().Get("owner"); owner != "" {
		list, err = h.commitments.ListByOwner(r.Context(), owner, opts)
	} else {
		list, err = h.commitments.ListActive(r.Context(), opts)
	}
	if err != nil {
		h.writeServiceError(w, r, "list commitments", err)
		return
	}

	out := make([]commitmentResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toCommitmentResponse(c))
	}
	writeJSON(w, http.StatusOK, listCommitmentsResponse{Commitments: out})
}

// Get returns a single commitment by ID.
// GET /api/commitments/{id}
func (h *CommitmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	c, err := h.commitments.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get commitment", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommitmentResponse(c))
}

// updateValueRequest is the request body for a value mark.
type updateValueRequest struct {
	Caller   string       `json:"caller"`
	Proof    proofPayload `json:"proof"`
	NewValue int64        `json:"new_value"`
}

// UpdateValue marks the commitment to a new current value. The caller must be
// the owner or an authorized valuator.
// POST /api/commitments/{id}/value
func (h *CommitmentHandler) UpdateValue(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req updateValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	proof, err := req.Proof.decode()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.commitments.UpdateValue(r.Context(), req.Caller, proof, id, req.NewValue); err != nil {
		h.writeServiceError(w, r, "update value", err)
		return
	}

	c, err := h.commitments.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get commitment", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommitmentResponse(c))
}

// violationsResponse is the wire form of a violation check.
type violationsResponse struct {
	HasViolations    bool  `json:"has_violations"`
	LossViolated     bool  `json:"loss_violated"`
	DurationViolated bool  `json:"duration_violated"`
	LossPercent      int64 `json:"loss_percent"`
	TimeRemainingSec int64 `json:"time_remaining_seconds"`
}

// Violations evaluates both rule checks for a commitment without mutating it.
// GET /api/commitments/{id}/violations
func (h *CommitmentHandler) Violations(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	d, err := h.commitments.ViolationDetails(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "check violations", err)
		return
	}
	writeJSON(w, http.StatusOK, violationsResponse{
		HasViolations:    d.HasViolations,
		LossViolated:     d.LossViolated,
		DurationViolated: d.DurationViolated,
		LossPercent:      d.LossPercent,
		TimeRemainingSec: int64(d.TimeRemaining / time.Second),
	})
}

// Settle resolves an expired commitment and returns the remaining funds to
// the owner. Settlement is permissionless.
// POST /api/commitments/{id}/settle
func (h *CommitmentHandler) Settle(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.commitments.Settle(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "settle commitment", err)
		return
	}

	c, err := h.commitments.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get commitment", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommitmentResponse(c))
}

// earlyExitRequest is the request body for an early exit.
type earlyExitRequest struct {
	Caller string       `json:"caller"`
	Proof  proofPayload `json:"proof"`
}

// EarlyExit lets the owner exit before expiry, paying the penalty.
// POST /api/commitments/{id}/early-exit
func (h *CommitmentHandler) EarlyExit(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req earlyExitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	proof, err := req.Proof.decode()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.commitments.EarlyExit(r.Context(), id, req.Caller, proof); err != nil {
		h.writeServiceError(w, r, "early exit", err)
		return
	}

	c, err := h.commitments.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get commitment", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommitmentResponse(c))
}

// writeServiceError maps domain sentinels onto HTTP status codes.
func (h *CommitmentHandler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "commitment not found")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "unauthorized")
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidRules):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInactiveCommitment), errors.Is(err, domain.ErrNotExpired), errors.Is(err, domain.ErrLockHeld):
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
