package services

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/moneypots/backend/internal/middleware"
	"github.com/moneypots/backend/internal/models"
)

// RewardService manages the reward shelf. Claiming a reward goes through the
// request pipeline, which takes it off the shelf until the claim resolves.
type RewardService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewRewardService(db *sql.DB) *RewardService {
	return &RewardService{db: db, validator: NewValidationHelper()}
}

const rewardColumns = `id, family_id, child_id, name, COALESCE(description, ''),
	       cost, category, available, purchased, approved_at, purchased_at, created_at, updated_at`

func scanReward(scan func(dest ...any) error) (*models.Reward, error) {
	var reward models.Reward
	var approvedAt, purchasedAt sql.NullTime
	err := scan(
		&reward.ID, &reward.FamilyID, &reward.ChildID, &reward.Name, &reward.Description,
		&reward.Cost, &reward.Category, &reward.Available, &reward.Purchased,
		&approvedAt, &purchasedAt, &reward.CreatedAt, &reward.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if approvedAt.Valid {
		reward.ApprovedAt = &approvedAt.Time
	}
	if purchasedAt.Valid {
		reward.PurchasedAt = &purchasedAt.Time
	}
	return &reward, nil
}

func getReward(q rowQuerier, rewardID string) (*models.Reward, error) {
	row := q.QueryRow(`SELECT `+rewardColumns+` FROM rewards WHERE id = $1`, rewardID)
	reward, err := scanReward(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: reward %s", ErrNotFound, rewardID)
	}
	if err != nil {
		return nil, err
	}
	return reward, nil
}

// CreateRewardRequest is the payload for adding a reward to the shelf.
type CreateRewardRequest struct {
	ChildID     string `json:"childId" validate:"required"`
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"max=500"`
	Cost        int64  `json:"cost" validate:"required,gt=0"`
	Category    string `json:"category" validate:"omitempty,oneof=experience privilege item"`
}

// CreateReward puts a reward on a child's shelf
// @Summary Create reward
// @Tags rewards
// @Accept json
// @Produce json
// @Param reward body CreateRewardRequest true "Reward"
// @Success 201 {object} models.Reward
// @Failure 400 {object} ErrorResponse
// @Router /rewards [post]
func (s *RewardService) CreateReward(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req CreateRewardRequest
	if err := decodeJSON(r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	child, err := getAccount(s.db, req.ChildID)
	if err != nil {
		SendServiceError(w, err)
		return
	}
	if child.FamilyID != actor.FamilyID {
		SendServiceError(w, fmt.Errorf("%w: child belongs to another family", ErrForbidden))
		return
	}

	category := req.Category
	if category == "" {
		category = "item"
	}

	now := time.Now()
	reward := models.Reward{
		ID:          uuid.NewString(),
		FamilyID:    actor.FamilyID,
		ChildID:     req.ChildID,
		Name:        req.Name,
		Description: req.Description,
		Cost:        req.Cost,
		Category:    category,
		Available:   true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = s.db.Exec(`
		INSERT INTO rewards (id, family_id, child_id, name, description, cost, category,
			available, purchased, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true, false, $8, $9)`,
		reward.ID, reward.FamilyID, reward.ChildID, reward.Name,
		nullableString(reward.Description), reward.Cost, reward.Category,
		reward.CreatedAt, reward.UpdatedAt)
	if err != nil {
		log.Printf("[REWARD] Failed to create reward for %s: %v", req.ChildID, err)
		SendErrorResponse(w, "Failed to create reward", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[REWARD] Created reward %s (%d points) for child %s", reward.ID, reward.Cost, reward.ChildID)
	SendJSON(w, http.StatusCreated, reward)
}

// ListRewards lists a child's reward shelf
// @Summary List rewards
// @Tags rewards
// @Produce json
// @Param id path string true "Child account ID"
// @Success 200 {array} models.Reward
// @Router /rewards/{id} [get]
func (s *RewardService) ListRewards(w http.ResponseWriter, r *http.Request) {
	childID := chi.URLParam(r, "id")

	rows, err := s.db.Query(`SELECT `+rewardColumns+` FROM rewards WHERE child_id = $1 ORDER BY created_at DESC`, childID)
	if err != nil {
		SendErrorResponse(w, "Failed to list rewards", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	rewards := []models.Reward{}
	for rows.Next() {
		reward, err := scanReward(rows.Scan)
		if err != nil {
			SendErrorResponse(w, "Failed to list rewards", http.StatusInternalServerError, nil)
			return
		}
		rewards = append(rewards, *reward)
	}

	SendJSON(w, http.StatusOK, rewards)
}

// UpdateRewardRequest carries partial reward edits.
type UpdateRewardRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Cost        *int64  `json:"cost" validate:"omitempty,gt=0"`
	Category    *string `json:"category" validate:"omitempty,oneof=experience privilege item"`
	Available   *bool   `json:"available"`
}

// UpdateReward edits reward fields
// @Summary Update reward
// @Description Parent-only edits to a reward that has not been purchased
// @Tags rewards
// @Accept json
// @Produce json
// @Param id path string true "Reward ID"
// @Param reward body UpdateRewardRequest true "Fields to update"
// @Success 200 {object} models.Reward
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /rewards/{id} [put]
func (s *RewardService) UpdateReward(w http.ResponseWriter, r *http.Request) {
	rewardID := chi.URLParam(r, "id")
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req UpdateRewardRequest
	if err := decodeJSON(r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
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
	if reward.Purchased {
		SendServiceError(w, fmt.Errorf("%w: reward already purchased", ErrInvalidTransition))
		return
	}

	if req.Name != nil {
		reward.Name = *req.Name
	}
	if req.Description != nil {
		reward.Description = *req.Description
	}
	if req.Cost != nil {
		reward.Cost = *req.Cost
	}
	if req.Category != nil {
		reward.Category = *req.Category
	}
	if req.Available != nil {
		reward.Available = *req.Available
	}
	reward.UpdatedAt = time.Now()

	_, err = s.db.Exec(`
		UPDATE rewards
		SET name = $1, description = $2, cost = $3, category = $4, available = $5, updated_at = $6
		WHERE id = $7`,
		reward.Name, nullableString(reward.Description), reward.Cost, reward.Category,
		reward.Available, reward.UpdatedAt, reward.ID)
	if err != nil {
		log.Printf("[REWARD] Failed to update reward %s: %v", rewardID, err)
		SendErrorResponse(w, "Failed to update reward", http.StatusInternalServerError, nil)
		return
	}

	SendJSON(w, http.StatusOK, reward)
}

// DeleteReward removes an unpurchased reward from the shelf
// @Summary Delete reward
// @Tags rewards
// @Produce json
// @Param id path string true "Reward ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /rewards/{id} [delete]
func (s *RewardService) DeleteReward(w http.ResponseWriter, r *http.Request) {
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
	if reward.Purchased {
		SendServiceError(w, fmt.Errorf("%w: purchased rewards are kept for the transaction history", ErrInvalidTransition))
		return
	}

	if _, err := s.db.Exec(`DELETE FROM rewards WHERE id = $1`, rewardID); err != nil {
		SendErrorResponse(w, "Failed to delete reward", http.StatusInternalServerError, nil)
		return
	}

	SendJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": rewardID})
}
