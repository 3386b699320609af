// Package handler exposes the lock service over HTTP. Handlers decode and
// validate the wire shape, delegate to the service, and translate domain
// errors; they hold no custody logic of their own.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vestry/internal/vault/models"
	"vestry/internal/vault/service"
	"vestry/pkg/domain"
	dErrors "vestry/pkg/domain-errors"
	"vestry/pkg/platform/httputil"
	authmw "vestry/pkg/platform/middleware/auth"
)

type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func NewHandler(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts the owner-facing routes. The router passed in must
// already carry the auth middleware; every handler trusts the account in
// the request context.
func (h *Handler) Register(r chi.Router) {
	r.Route("/vault/locks", func(r chi.Router) {
		r.Post("/", h.CreateLock)
		r.Get("/", h.ListLocks)
		r.Route("/{lockID}", func(r chi.Router) {
			r.Post("/release", h.ReleaseLock)
			r.Post("/release-partial", h.PartialRelease)
			r.Post("/extend", h.ExtendLock)
			r.Post("/emergency-release", h.EmergencyRelease)
		})
	})
}

// RegisterAdmin mounts the admin routes. The router passed in must already
// carry both the auth and the admin-token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/vault/recover-excess", h.RecoverExcess)
}

func (h *Handler) CreateLock(w http.ResponseWriter, r *http.Request) {
	account := authmw.GetAccount(r.Context())

	var req models.CreateLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.DurationSeconds <= 0 {
		httputil.WriteError(w, service.ErrInvalidLockPeriod)
		return
	}

	lock, err := h.service.CreateLock(r.Context(), account, req.Amount,
		time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, models.NewLockResponse(lock))
}

func (h *Handler) ListLocks(w http.ResponseWriter, r *http.Request) {
	account := authmw.GetAccount(r.Context())

	locks := h.service.ListLocks(r.Context(), account)
	resp := models.ListLocksResponse{Locks: make([]models.LockResponse, 0, len(locks))}
	for _, lock := range locks {
		resp.Locks = append(resp.Locks, models.NewLockResponse(lock))
		resp.TotalLocked += lock.Amount
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) ReleaseLock(w http.ResponseWriter, r *http.Request) {
	account := authmw.GetAccount(r.Context())
	lockID, err := domain.ParseLockID(chi.URLParam(r, "lockID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	released, err := h.service.ReleaseLock(r.Context(), account, lockID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.ReleaseResponse{
		LockID:   uint64(lockID),
		Released: released,
	})
}

func (h *Handler) PartialRelease(w http.ResponseWriter, r *http.Request) {
	account := authmw.GetAccount(r.Context())
	lockID, err := domain.ParseLockID(chi.URLParam(r, "lockID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req models.PartialReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	remaining, err := h.service.PartialRelease(r.Context(), account, lockID, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.PartialReleaseResponse{
		LockID:    uint64(lockID),
		Released:  req.Amount,
		Remaining: remaining,
	})
}

func (h *Handler) ExtendLock(w http.ResponseWriter, r *http.Request) {
	account := authmw.GetAccount(r.Context())
	lockID, err := domain.ParseLockID(chi.URLParam(r, "lockID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req models.ExtendLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.AdditionalSeconds <= 0 {
		httputil.WriteError(w, service.ErrInvalidLockPeriod)
		return
	}

	unlockTime, err := h.service.ExtendLock(r.Context(), account, lockID,
		time.Duration(req.AdditionalSeconds)*time.Second)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.ExtendLockResponse{
		LockID:     uint64(lockID),
		UnlockTime: unlockTime.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) EmergencyRelease(w http.ResponseWriter, r *http.Request) {
	account := authmw.GetAccount(r.Context())
	lockID, err := domain.ParseLockID(chi.URLParam(r, "lockID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	released, err := h.service.EmergencyRelease(r.Context(), account, lockID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.ReleaseResponse{
		LockID:   uint64(lockID),
		Released: released,
	})
}

func (h *Handler) RecoverExcess(w http.ResponseWriter, r *http.Request) {
	account := authmw.GetAccount(r.Context())

	var req models.RecoverExcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Amount == 0 {
		httputil.WriteError(w, service.ErrInvalidAmount)
		return
	}

	if err := h.service.RecoverExcess(r.Context(), account, req.Amount); err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"recovered": req.Amount})
}

// writeError translates a service error. A still-locked rejection carries
// the unlock time as a machine-readable field so callers know when to
// retry.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var stillLocked *models.StillLockedError
	if errors.As(err, &stillLocked) {
		httputil.WriteErrorDetails(w, err, map[string]any{
			"unlock_time": stillLocked.UnlockTime.UTC().Format(time.RFC3339),
		})
		return
	}

	if dErrors.CodeOf(err) == dErrors.CodeInternal || dErrors.CodeOf(err) == dErrors.CodeUnavailable {
		h.logger.ErrorContext(r.Context(), "vault operation failed",
			"path", r.URL.Path, "error", err)
	}
	httputil.WriteError(w, err)
}
