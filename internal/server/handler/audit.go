package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// AuditStore defines the methods that the audit handler requires.
type AuditStore interface {
	List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error)
}

// AuditHandler serves the audit log endpoints.
type AuditHandler struct {
	audit  AuditStore
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler with the given store and logger.
func NewAuditHandler(audit AuditStore, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logger}
}

// auditEntryResponse is the wire form of one audit row.
type auditEntryResponse struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// listAuditResponse wraps the audit list response.
type listAuditResponse struct {
	Entries []auditEntryResponse `json:"entries"`
}

// List returns recent audit entries, newest first.
// GET /api/audit?limit=50&offset=0
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.audit.List(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list audit entries failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}

	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			ID:        e.ID,
			Event:     e.Event,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, listAuditResponse{Entries: out})
}
