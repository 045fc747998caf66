package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/moneypots/backend/internal/middleware"
	qrcode "github.com/skip2/go-qrcode"
)

// VoucherService renders redemption vouchers for purchased rewards as QR
// codes, so a reward bought with points can be shown and checked off in
// person.
type VoucherService struct {
	db *sql.DB
}

func NewVoucherService(db *sql.DB) *VoucherService {
	return &VoucherService{db: db}
}

// voucherPayload is what gets encoded into the QR image.
type voucherPayload struct {
	Kind        string    `json:"kind"`
	RewardID    string    `json:"rewardId"`
	ChildID     string    `json:"childId"`
	Name        string    `json:"name"`
	Cost        int64     `json:"cost"`
	PurchasedAt time.Time `json:"purchasedAt"`
	IssuedAt    time.Time `json:"issuedAt"`
}

// RewardVoucher renders a QR voucher for a purchased reward
// @Summary Reward voucher
// @Description PNG QR code encoding the redemption voucher for a purchased reward
// @Tags rewards
// @Produce png
// @Param id path string true "Reward ID"
// @Success 200 {file} binary
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /rewards/{id}/voucher [get]
func (s *VoucherService) RewardVoucher(w http.ResponseWriter, r *http.Request) {
	rewardID := chi.URLParam(r, "id")
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	reward, err := getReward(s.db, rewardID)
	if err != nil {
		SendServiceError(w, err)
		return
	}
	if reward.FamilyID != actor.FamilyID {
		SendServiceError(w, fmt.Errorf("%w: reward belongs to another family", ErrForbidden))
		return
	}
	if !reward.Purchased {
		SendServiceError(w, fmt.Errorf("%w: vouchers are only issued for purchased rewards", ErrInvalidTransition))
		return
	}

	payload := voucherPayload{
		Kind:     "reward-voucher",
		RewardID: reward.ID,
		ChildID:  reward.ChildID,
		Name:     reward.Name,
		Cost:     reward.Cost,
		IssuedAt: time.Now(),
	}
	if reward.PurchasedAt != nil {
		payload.PurchasedAt = *reward.PurchasedAt
	}

	data, err := json.Marshal(payload)
	if err != nil {
		SendErrorResponse(w, "Failed to build voucher", http.StatusInternalServerError, nil)
		return
	}

	png, err := qrcode.Encode(string(data), qrcode.Medium, 256)
	if err != nil {
		log.Printf("[VOUCHER] QR encoding failed for reward %s: %v", rewardID, err)
		SendErrorResponse(w, "Failed to build voucher", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
