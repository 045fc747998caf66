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

// ChoreService manages the chore catalog. Completion claims and payouts go
// through the request pipeline, not through this service.
type ChoreService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewChoreService(db *sql.DB) *ChoreService {
	return &ChoreService{db: db, validator: NewValidationHelper()}
}

const choreColumns = `id, family_id, parent_id, child_id, name, COALESCE(description, ''),
	       points, frequency, deadline, completed, approved, completed_at, approved_at,
	       use_default_split, split_current, split_save, split_spend, split_donate, split_invest,
	       created_at, updated_at`

func scanChore(scan func(dest ...any) error) (*models.Chore, error) {
	var chore models.Chore
	var deadline, completedAt, approvedAt sql.NullTime
	var split models.SplitConfig
	err := scan(
		&chore.ID, &chore.FamilyID, &chore.ParentID, &chore.ChildID, &chore.Name, &chore.Description,
		&chore.Points, &chore.Frequency, &deadline, &chore.Completed, &chore.Approved,
		&completedAt, &approvedAt,
		&chore.UseDefaultSplit, &split.Current, &split.Save, &split.Spend, &split.Donate, &split.Invest,
		&chore.CreatedAt, &chore.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if deadline.Valid {
		chore.Deadline = &deadline.Time
	}
	if completedAt.Valid {
		chore.CompletedAt = &completedAt.Time
	}
	if approvedAt.Valid {
		chore.ApprovedAt = &approvedAt.Time
	}
	if !chore.UseDefaultSplit {
		chore.CustomSplit = &split
	}
	return &chore, nil
}

func getChore(q rowQuerier, choreID string) (*models.Chore, error) {
	row := q.QueryRow(`SELECT `+choreColumns+` FROM chores WHERE id = $1`, choreID)
	chore, err := scanChore(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: chore %s", ErrNotFound, choreID)
	}
	if err != nil {
		return nil, err
	}
	return chore, nil
}

// CreateChoreRequest is the payload for chore creation.
type CreateChoreRequest struct {
	ChildID         string              `json:"childId" validate:"required"`
	Name            string              `json:"name" validate:"required,min=1,max=100"`
	Description     string              `json:"description" validate:"max=500"`
	Points          int64               `json:"points" validate:"required,gt=0"`
	Frequency       string              `json:"frequency" validate:"omitempty,oneof=daily weekly monthly once"`
	Deadline        *time.Time          `json:"deadline"`
	UseDefaultSplit *bool               `json:"useDefaultSplit"`
	CustomSplit     *models.SplitConfig `json:"customSplit"`
}

// CreateChore creates a chore for a child in the caller's family
// @Summary Create chore
// @Description Create a chore with a point value and an optional custom jar split
// @Tags chores
// @Accept json
// @Produce json
// @Param chore body CreateChoreRequest true "Chore"
// @Success 201 {object} models.Chore
// @Failure 400 {object} ErrorResponse
// @Router /chores [post]
func (s *ChoreService) CreateChore(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req CreateChoreRequest
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

	useDefault := true
	if req.UseDefaultSplit != nil {
		useDefault = *req.UseDefaultSplit
	}
	split := models.SplitConfig{}
	if !useDefault {
		if req.CustomSplit == nil {
			SendServiceError(w, fmt.Errorf("%w: custom split required when useDefaultSplit is false", ErrInvalidSplit))
			return
		}
		if err := req.CustomSplit.Validate(); err != nil {
			SendServiceError(w, err)
			return
		}
		split = *req.CustomSplit
	}

	frequency := req.Frequency
	if frequency == "" {
		frequency = "once"
	}

	now := time.Now()
	chore := models.Chore{
		ID:              uuid.NewString(),
		FamilyID:        actor.FamilyID,
		ParentID:        actor.ID,
		ChildID:         req.ChildID,
		Name:            req.Name,
		Description:     req.Description,
		Points:          req.Points,
		Frequency:       frequency,
		Deadline:        req.Deadline,
		UseDefaultSplit: useDefault,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if !useDefault {
		chore.CustomSplit = &split
	}

	_, err = s.db.Exec(`
		INSERT INTO chores (id, family_id, parent_id, child_id, name, description, points, frequency,
			deadline, completed, approved, use_default_split,
			split_current, split_save, split_spend, split_donate, split_invest, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, false, $10, $11, $12, $13, $14, $15, $16, $17)`,
		chore.ID, chore.FamilyID, chore.ParentID, chore.ChildID, chore.Name,
		nullableString(chore.Description), chore.Points, chore.Frequency,
		nullableTime(chore.Deadline), chore.UseDefaultSplit,
		split.Current, split.Save, split.Spend, split.Donate, split.Invest,
		chore.CreatedAt, chore.UpdatedAt)
	if err != nil {
		log.Printf("[CHORE] Failed to create chore for %s: %v", req.ChildID, err)
		SendErrorResponse(w, "Failed to create chore", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[CHORE] Created chore %s (%d points) for child %s", chore.ID, chore.Points, chore.ChildID)
	SendJSON(w, http.StatusCreated, chore)
}

// ListChores lists a child's chores
// @Summary List chores
// @Description List chores assigned to one child, newest first
// @Tags chores
// @Produce json
// @Param id path string true "Child account ID"
// @Success 200 {array} models.Chore
// @Router /chores/{id} [get]
func (s *ChoreService) ListChores(w http.ResponseWriter, r *http.Request) {
	childID := chi.URLParam(r, "id")

	rows, err := s.db.Query(`SELECT `+choreColumns+` FROM chores WHERE child_id = $1 ORDER BY created_at DESC`, childID)
	if err != nil {
		SendErrorResponse(w, "Failed to list chores", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	chores := []models.Chore{}
	for rows.Next() {
		chore, err := scanChore(rows.Scan)
		if err != nil {
			SendErrorResponse(w, "Failed to list chores", http.StatusInternalServerError, nil)
			return
		}
		chores = append(chores, *chore)
	}

	SendJSON(w, http.StatusOK, chores)
}

// UpdateChoreRequest carries partial chore edits.
type UpdateChoreRequest struct {
	Name        *string    `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string    `json:"description" validate:"omitempty,max=500"`
	Points      *int64     `json:"points" validate:"omitempty,gt=0"`
	Frequency   *string    `json:"frequency" validate:"omitempty,oneof=daily weekly monthly once"`
	Deadline    *time.Time `json:"deadline"`
	Completed   *bool      `json:"completed"`
}

// UpdateChore edits chore fields, or lets a child mark it completed
// @Summary Update chore
// @Description Parents edit chore details; children may only flip the completed flag
// @Tags chores
// @Accept json
// @Produce json
// @Param id path string true "Chore ID"
// @Param chore body UpdateChoreRequest true "Fields to update"
// @Success 200 {object} models.Chore
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /chores/{id} [put]
func (s *ChoreService) UpdateChore(w http.ResponseWriter, r *http.Request) {
	choreID := chi.URLParam(r, "id")
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req UpdateChoreRequest
	if err := decodeJSON(r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	chore, err := getChore(s.db, choreID)
	if err != nil {
		SendServiceError(w, err)
		return
	}
	if chore.FamilyID != actor.FamilyID {
		SendServiceError(w, fmt.Errorf("%w: chore belongs to another family", ErrForbidden))
		return
	}

	if actor.Role != models.RoleParent {
		// Children can only mark their own chore done.
		if chore.ChildID != actor.ID || req.Completed == nil {
			SendServiceError(w, fmt.Errorf("%w: only the completed flag can be set by a child", ErrForbidden))
			return
		}
		req = UpdateChoreRequest{Completed: req.Completed}
	}

	if req.Name != nil {
		chore.Name = *req.Name
	}
	if req.Description != nil {
		chore.Description = *req.Description
	}
	if req.Points != nil {
		chore.Points = *req.Points
	}
	if req.Frequency != nil {
		chore.Frequency = *req.Frequency
	}
	if req.Deadline != nil {
		chore.Deadline = req.Deadline
	}
	if req.Completed != nil {
		chore.Completed = *req.Completed
		if *req.Completed {
			now := time.Now()
			chore.CompletedAt = &now
		} else {
			chore.CompletedAt = nil
		}
	}
	chore.UpdatedAt = time.Now()

	_, err = s.db.Exec(`
		UPDATE chores
		SET name = $1, description = $2, points = $3, frequency = $4, deadline = $5,
		    completed = $6, completed_at = $7, updated_at = $8
		WHERE id = $9`,
		chore.Name, nullableString(chore.Description), chore.Points, chore.Frequency,
		nullableTime(chore.Deadline), chore.Completed, nullableTime(chore.CompletedAt),
		chore.UpdatedAt, chore.ID)
	if err != nil {
		log.Printf("[CHORE] Failed to update chore %s: %v", choreID, err)
		SendErrorResponse(w, "Failed to update chore", http.StatusInternalServerError, nil)
		return
	}

	SendJSON(w, http.StatusOK, chore)
}

// DeleteChore removes a chore
// @Summary Delete chore
// @Tags chores
// @Produce json
// @Param id path string true "Chore ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /chores/{id} [delete]
func (s *ChoreService) DeleteChore(w http.ResponseWriter, r *http.Request) {
	choreID := chi.URLParam(r, "id")
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	chore, err := getChore(s.db, choreID)
	if err != nil {
		SendServiceError(w, err)
		return
	}
	if chore.FamilyID != actor.FamilyID {
		SendServiceError(w, fmt.Errorf("%w: chore belongs to another family", ErrForbidden))
		return
	}

	if _, err := s.db.Exec(`DELETE FROM chores WHERE id = $1`, choreID); err != nil {
		SendErrorResponse(w, "Failed to delete chore", http.StatusInternalServerError, nil)
		return
	}

	SendJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": choreID})
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
