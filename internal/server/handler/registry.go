package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// RegistryService defines the methods that the registry handler requires.
type RegistryService interface {
	Initialize(ctx context.Context, admin, tokenService string) error
	Initialized(ctx context.Context) (bool, error)
	Admin(ctx context.Context) (string, error)
	SetAuthorization(ctx context.Context, proof domain.Proof, principal string, role domain.PrincipalRole, authorized bool) error
	IsAuthorizedAllocator(ctx context.Context, principal string) (bool, error)
	IsAuthorizedValuator(ctx context.Context, principal string) (bool, error)
}

// RegistryHandler serves the admin registry endpoints.
type RegistryHandler struct {
	registry RegistryService
	logger   *slog.Logger
}

// NewRegistryHandler creates a RegistryHandler with the given service and logger.
func NewRegistryHandler(registry RegistryService, logger *slog.Logger) *RegistryHandler {
	return &RegistryHandler{registry: registry, logger: logger}
}

// initRequest is the request body for registry initialization.
type initRequest struct {
	Admin        string `json:"admin"`
	TokenService string `json:"token_service"`
}

// Initialize performs the one-time registry setup.
// POST /api/registry/init
func (h *RegistryHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Admin == "" {
		writeError(w, http.StatusBadRequest, "admin is required")
		return
	}

	if err := h.registry.Initialize(r.Context(), req.Admin, req.TokenService); err != nil {
		h.writeServiceError(w, r, "initialize registry", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"admin":       req.Admin,
		"initialized": true,
	})
}

// Status returns the registry state for the dashboard.
// GET /api/registry
func (h *RegistryHandler) Status(w http.ResponseWriter, r *http.Request) {
	initialized, err := h.registry.Initialized(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "get registry status", err)
		return
	}

	resp := map[string]any{"initialized": initialized}
	if initialized {
		admin, err := h.registry.Admin(r.Context())
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			h.writeServiceError(w, r, "get registry status", err)
			return
		}
		resp["admin"] = admin
	}
	writeJSON(w, http.StatusOK, resp)
}

// setAuthorizationRequest is the request body for allow-list changes.
type setAuthorizationRequest struct {
	Proof      proofPayload `json:"proof"`
	Principal  string       `json:"principal"`
	Role       string       `json:"role"`
	Authorized bool         `json:"authorized"`
}

// SetAuthorization grants or revokes a role for a principal. Requires an
// admin proof.
// PUT /api/registry/authorizations
func (h *RegistryHandler) SetAuthorization(w http.ResponseWriter, r *http.Request) {
	var req setAuthorizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role := domain.PrincipalRole(req.Role)
	if role != domain.RoleAllocator && role != domain.RoleValuator {
		writeError(w, http.StatusBadRequest, "role must be allocator or valuator")
		return
	}
	proof, err := req.Proof.decode()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.registry.SetAuthorization(r.Context(), proof, req.Principal, role, req.Authorized); err != nil {
		h.writeServiceError(w, r, "set authorization", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"principal":  req.Principal,
		"role":       req.Role,
		"authorized": req.Authorized,
	})
}

// GetAuthorization reports whether a principal holds a role.
// GET /api/registry/authorizations/{principal}?role=allocator
func (h *RegistryHandler) GetAuthorization(w http.ResponseWriter, r *http.Request) {
	principal := pathParam(r, "principal")
	role := domain.PrincipalRole(r.URL.Query().Get("role"))

	var (
		authorized bool
		err        error
	)
	switch role {
	case domain.RoleAllocator:
		authorized, err = h.registry.IsAuthorizedAllocator(r.Context(), principal)
	case domain.RoleValuator:
		authorized, err = h.registry.IsAuthorizedValuator(r.Context(), principal)
	default:
		writeError(w, http.StatusBadRequest, "role must be allocator or valuator")
		return
	}
	if err != nil {
		h.writeServiceError(w, r, "get authorization", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"principal":  principal,
		"role":       string(role),
		"authorized": authorized,
	})
}

func (h *RegistryHandler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrAlreadyInitialized):
		writeError(w, http.StatusConflict, "registry already initialized")
	case errors.Is(err, domain.ErrNotInitialized):
		writeError(w, http.StatusConflict, "registry not initialized")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "unauthorized")
	default:
		h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}
