package occupancy_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-seating/internal/auth"
	"ms-seating/internal/clock"
	"ms-seating/internal/logger"
	"ms-seating/internal/models"
	"ms-seating/internal/occupancy"
	"ms-seating/internal/passes/qr"
	"ms-seating/internal/utils"
)

// SeatingService is what the HTTP layer needs from occupancy.Service.
type SeatingService interface {
	ListCatalog(ctx context.Context) ([]models.PassDefinition, error)
	IssuePass(ctx context.Context, ownerID string, definitionID int64) (*models.PassInstance, error)
	GetOwnedPass(ctx context.Context, ownerID, passID string) (*models.PassInstance, error)
	ListOwnerPasses(ctx context.Context, ownerID string) ([]occupancy.OwnedPass, error)
	ListPurchases(ctx context.Context, ownerID string) ([]models.PurchaseLog, error)
	Occupy(ctx context.Context, ownerID string, seatID int64, passID string) (*occupancy.Occupancy, error)
	Release(ctx context.Context, seatID int64) (*occupancy.ReleaseResult, error)
	SeatStatus(ctx context.Context) ([]occupancy.SeatView, error)
}

type Handler struct {
	Service SeatingService
	// QR is nil when no QR secret is configured; entry code routes then
	// answer 503.
	QR     *qr.QRGenerator
	Clock  clock.Clock
	Logger *logger.Logger
}

type purchaseRequest struct {
	PassID int64 `json:"pass_id"`
}

type occupyRequest struct {
	SeatID     int64  `json:"seat_id"`
	UserPassID string `json:"user_pass_id"`
}

type leaveRequest struct {
	SeatID int64 `json:"seat_id"`
}

type checkinRequest struct {
	EncryptedQR string `json:"encrypted_qr"`
	SeatID      int64  `json:"seat_id"`
}

type occupancyResponse struct {
	SeatID           int64     `json:"seat_id"`
	UserPassID       string    `json:"user_pass_id"`
	StartAt          time.Time `json:"start_at"`
	RemainingMinutes int64     `json:"remaining_minutes"`
}

type releaseResponse struct {
	SeatID           int64                  `json:"seat_id"`
	UserPassID       string                 `json:"user_pass_id"`
	Destroyed        bool                   `json:"destroyed"`
	RemainingMinutes int64                  `json:"remaining_minutes"`
	Reason           models.SeatEventReason `json:"reason"`
}

// RegisterPublicRoutes mounts the /api routes that need no caller identity.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/passes/catalog", h.ListCatalog)
}

// RegisterRoutes mounts the authenticated /api routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.Me)
	r.Post("/passes/purchase", h.PurchasePass)
	r.Get("/user/passes", h.ListUserPasses)
	r.Get("/user/passes/{passId}/qr", h.PassQR)
	r.Get("/user/purchases", h.ListUserPurchases)
	r.Post("/seat", h.Occupy)
	r.Post("/leave", h.Leave)
	r.Get("/seats/status", h.SeatStatus)
	r.Post("/kiosk/checkin", h.KioskCheckin)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, "Authenticated", map[string]string{"user_id": auth.UserID(r.Context())})
}

func (h *Handler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	defs, err := h.Service.ListCatalog(r.Context())
	if err != nil {
		h.writeServiceError(w, "ListCatalog", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Pass catalog", defs)
}

func (h *Handler) PurchasePass(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req purchaseRequest
	if err := decode(r, &req); err != nil || req.PassID <= 0 {
		h.writeBadRequest(w, "PurchasePass", "pass_id is required", err)
		return
	}

	p, err := h.Service.IssuePass(r.Context(), userID, req.PassID)
	if err != nil {
		h.writeServiceError(w, "PurchasePass", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("PurchasePass: %s bought definition %d as %s", userID, req.PassID, p.ID))
	utils.WriteSuccess(w, http.StatusCreated, "Pass purchased", p)
}

func (h *Handler) ListUserPasses(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListOwnerPasses(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.writeServiceError(w, "ListUserPasses", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "User passes", list)
}

func (h *Handler) ListUserPurchases(w http.ResponseWriter, r *http.Request) {
	logs, err := h.Service.ListPurchases(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.writeServiceError(w, "ListUserPurchases", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Purchase history", logs)
}

func (h *Handler) PassQR(w http.ResponseWriter, r *http.Request) {
	if h.QR == nil {
		utils.WriteError(w, http.StatusServiceUnavailable, "Entry codes are disabled", nil)
		return
	}
	passID := chi.URLParam(r, "passId")

	p, err := h.Service.GetOwnedPass(r.Context(), auth.UserID(r.Context()), passID)
	if err != nil {
		h.writeServiceError(w, "PassQR", err)
		return
	}

	png, err := h.QR.GenerateEncryptedQR(*p, h.Clock.Now())
	if err != nil {
		h.writeServiceError(w, "PassQR", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) Occupy(w http.ResponseWriter, r *http.Request) {
	var req occupyRequest
	if err := decode(r, &req); err != nil || req.SeatID <= 0 || req.UserPassID == "" {
		h.writeBadRequest(w, "Occupy", "seat_id and user_pass_id are required", err)
		return
	}
	h.occupy(w, r, auth.UserID(r.Context()), req.SeatID, req.UserPassID)
}

func (h *Handler) KioskCheckin(w http.ResponseWriter, r *http.Request) {
	if h.QR == nil {
		utils.WriteError(w, http.StatusServiceUnavailable, "Entry codes are disabled", nil)
		return
	}

	var req checkinRequest
	if err := decode(r, &req); err != nil || req.SeatID <= 0 || req.EncryptedQR == "" {
		h.writeBadRequest(w, "KioskCheckin", "encrypted_qr and seat_id are required", err)
		return
	}

	code, err := h.QR.Open(req.EncryptedQR, h.Clock.Now())
	if errors.Is(err, qr.ErrExpiredCode) {
		h.writeBadRequest(w, "KioskCheckin", "Entry code expired, show a fresh one", err)
		return
	}
	if err != nil {
		h.Logger.LogSecurity("BAD_ENTRY_CODE", err.Error())
		h.writeBadRequest(w, "KioskCheckin", "Invalid entry code", err)
		return
	}
	h.occupy(w, r, code.OwnerID, req.SeatID, code.PassID)
}

func (h *Handler) occupy(w http.ResponseWriter, r *http.Request, ownerID string, seatID int64, passID string) {
	occ, err := h.Service.Occupy(r.Context(), ownerID, seatID, passID)
	if err != nil {
		h.writeServiceError(w, "Occupy", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Seat occupied", occupancyResponse{
		SeatID:           occ.SeatID,
		UserPassID:       occ.PassID,
		StartAt:          occ.StartAt,
		RemainingMinutes: int64(occ.Remaining / time.Minute),
	})
}

func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	var req leaveRequest
	if err := decode(r, &req); err != nil || req.SeatID <= 0 {
		h.writeBadRequest(w, "Leave", "seat_id is required", err)
		return
	}

	res, err := h.Service.Release(r.Context(), req.SeatID)
	if err != nil {
		h.writeServiceError(w, "Leave", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Seat released", releaseResponse{
		SeatID:           res.SeatID,
		UserPassID:       res.PassID,
		Destroyed:        res.Destroyed,
		RemainingMinutes: int64(res.Remaining / time.Minute),
		Reason:           res.Reason,
	})
}

func (h *Handler) SeatStatus(w http.ResponseWriter, r *http.Request) {
	views, err := h.Service.SeatStatus(r.Context())
	if err != nil {
		h.writeServiceError(w, "SeatStatus", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Seat status", views)
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, op, message string, err error) {
	if err == nil {
		err = errors.New(message)
	}
	h.Logger.Warn("API", fmt.Sprintf("%s: %s: %v", op, message, err))
	utils.WriteError(w, http.StatusBadRequest, message, err)
}

// writeServiceError maps a service error onto its HTTP status.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	status, message := StatusOf(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteError(w, status, message, errors.New("internal error"))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("%s: %v", op, err))
	utils.WriteError(w, status, message, err)
}

// StatusOf returns the HTTP status and message for a service error.
func StatusOf(err error) (int, string) {
	switch models.KindOf(err) {
	case models.KindNotFound:
		return http.StatusNotFound, "Not found"
	case models.KindConflict:
		return http.StatusConflict, "Conflict"
	case models.KindNotOccupied:
		return http.StatusConflict, "Seat is not occupied"
	case models.KindInvalidInput:
		return http.StatusBadRequest, "Invalid input"
	}
	return http.StatusInternalServerError, "Internal server error"
}
