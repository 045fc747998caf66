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

// GoalService manages savings goals. Contributions move through the ledger as
// jar credits; completion is claimed through the request pipeline.
type GoalService struct {
	db        *sql.DB
	ledger    *JarLedgerService
	validator *ValidationHelper
}

func NewGoalService(db *sql.DB, ledger *JarLedgerService) *GoalService {
	return &GoalService{db: db, ledger: ledger, validator: NewValidationHelper()}
}

const goalColumns = `id, family_id, parent_id, child_id, name, COALESCE(description, ''),
	       target_amount, current_amount, jar, deadline, status, completed_at, created_at, updated_at`

func scanGoal(scan func(dest ...any) error) (*models.Goal, error) {
	var goal models.Goal
	var deadline, completedAt sql.NullTime
	err := scan(
		&goal.ID, &goal.FamilyID, &goal.ParentID, &goal.ChildID, &goal.Name, &goal.Description,
		&goal.TargetAmount, &goal.CurrentAmount, &goal.Jar, &deadline, &goal.Status,
		&completedAt, &goal.CreatedAt, &goal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if deadline.Valid {
		goal.Deadline = &deadline.Time
	}
	if completedAt.Valid {
		goal.CompletedAt = &completedAt.Time
	}
	return &goal, nil
}

func getGoal(q rowQuerier, goalID string) (*models.Goal, error) {
	row := q.QueryRow(`SELECT `+goalColumns+` FROM goals WHERE id = $1`, goalID)
	goal, err := scanGoal(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: goal %s", ErrNotFound, goalID)
	}
	if err != nil {
		return nil, err
	}
	return goal, nil
}

// CreateGoalRequest is the payload for goal creation.
type CreateGoalRequest struct {
	ChildID      string     `json:"childId" validate:"required"`
	Name         string     `json:"name" validate:"required,min=1,max=100"`
	Description  string     `json:"description" validate:"max=500"`
	TargetAmount int64      `json:"targetAmount" validate:"required,gt=0"`
	Jar          string     `json:"jar" validate:"required"`
	Deadline     *time.Time `json:"deadline"`
}

// CreateGoal creates a savings goal tied to one jar
// @Summary Create goal
// @Tags goals
// @Accept json
// @Produce json
// @Param goal body CreateGoalRequest true "Goal"
// @Success 201 {object} models.Goal
// @Failure 400 {object} ErrorResponse
// @Router /goals [post]
func (s *GoalService) CreateGoal(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req CreateGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if !models.ValidJar(req.Jar) {
		SendErrorResponse(w, "Unknown jar: "+req.Jar, http.StatusBadRequest, nil)
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

	now := time.Now()
	goal := models.Goal{
		ID:           uuid.NewString(),
		FamilyID:     actor.FamilyID,
		ParentID:     actor.ID,
		ChildID:      req.ChildID,
		Name:         req.Name,
		Description:  req.Description,
		TargetAmount: req.TargetAmount,
		Jar:          models.Jar(req.Jar),
		Deadline:     req.Deadline,
		Status:       models.GoalActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = s.db.Exec(`
		INSERT INTO goals (id, family_id, parent_id, child_id, name, description,
			target_amount, current_amount, jar, deadline, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $10, $11, $12)`,
		goal.ID, goal.FamilyID, goal.ParentID, goal.ChildID, goal.Name,
		nullableString(goal.Description), goal.TargetAmount, goal.Jar,
		nullableTime(goal.Deadline), goal.Status, goal.CreatedAt, goal.UpdatedAt)
	if err != nil {
		log.Printf("[GOAL] Failed to create goal for %s: %v", req.ChildID, err)
		SendErrorResponse(w, "Failed to create goal", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[GOAL] Created goal %s (%d points to %s jar) for child %s", goal.ID, goal.TargetAmount, goal.Jar, goal.ChildID)
	SendJSON(w, http.StatusCreated, goal)
}

// ListGoals lists a child's goals, expiring overdue active ones on read
// @Summary List goals
// @Tags goals
// @Produce json
// @Param id path string true "Child account ID"
// @Success 200 {array} models.Goal
// @Router /goals/{id} [get]
func (s *GoalService) ListGoals(w http.ResponseWriter, r *http.Request) {
	childID := chi.URLParam(r, "id")

	// Lazy expiry: active goals past their deadline flip to expired here
	// rather than via a scheduler.
	if _, err := s.db.Exec(`
		UPDATE goals SET status = $1, updated_at = $2
		WHERE child_id = $3 AND status = $4 AND deadline IS NOT NULL AND deadline < $2`,
		models.GoalExpired, time.Now(), childID, models.GoalActive); err != nil {
		log.Printf("[GOAL] Expiry sweep failed for %s: %v", childID, err)
	}

	rows, err := s.db.Query(`SELECT `+goalColumns+` FROM goals WHERE child_id = $1 ORDER BY created_at DESC`, childID)
	if err != nil {
		SendErrorResponse(w, "Failed to list goals", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	goals := []models.Goal{}
	for rows.Next() {
		goal, err := scanGoal(rows.Scan)
		if err != nil {
			SendErrorResponse(w, "Failed to list goals", http.StatusInternalServerError, nil)
			return
		}
		goals = append(goals, *goal)
	}

	SendJSON(w, http.StatusOK, goals)
}

// ContributeRequest is the payload for a goal contribution.
type ContributeRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

// Contribute credits points into the goal's jar and advances its progress
// @Summary Contribute to goal
// @Description Record progress toward a goal. The amount is credited to the goal's jar and tracked on the goal.
// @Tags goals
// @Accept json
// @Produce json
// @Param id path string true "Goal ID"
// @Param contribution body ContributeRequest true "Contribution"
// @Success 200 {object} models.Goal
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /goals/{id}/contribute [post]
func (s *GoalService) Contribute(w http.ResponseWriter, r *http.Request) {
	goalID := chi.URLParam(r, "id")
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req ContributeRequest
	if err := decodeJSON(r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to record contribution", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	goal, err := getGoal(tx, goalID)
	if err != nil {
		SendServiceError(w, err)
		return
	}
	if goal.FamilyID != actor.FamilyID {
		SendServiceError(w, fmt.Errorf("%w: goal belongs to another family", ErrForbidden))
		return
	}
	if goal.Status != models.GoalActive {
		SendServiceError(w, fmt.Errorf("%w: goal is %s", ErrInvalidTransition, goal.Status))
		return
	}

	_, err = s.ledger.CreditTx(tx, goal.ChildID, goal.Jar, req.Amount, TxMeta{
		Type:        models.TxGoalContribution,
		Description: fmt.Sprintf("Contribution of %d points toward goal %q", req.Amount, goal.Name),
		ReferenceID: goal.ID,
		Approved:    true,
	})
	if err != nil {
		SendServiceError(w, err)
		return
	}

	goal.CurrentAmount += req.Amount
	goal.UpdatedAt = time.Now()
	if _, err := tx.Exec(`
		UPDATE goals SET current_amount = $1, updated_at = $2 WHERE id = $3`,
		goal.CurrentAmount, goal.UpdatedAt, goal.ID); err != nil {
		SendErrorResponse(w, "Failed to record contribution", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to record contribution", http.StatusInternalServerError, nil)
		return
	}

	SendJSON(w, http.StatusOK, goal)
}

// DeleteGoal removes a goal
// @Summary Delete goal
// @Tags goals
// @Produce json
// @Param id path string true "Goal ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /goals/{id} [delete]
func (s *GoalService) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	goalID := chi.URLParam(r, "id")
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	goal, err := getGoal(s.db, goalID)
	if err != nil {
		SendServiceError(w, err)
		return
	}
	if goal.FamilyID != actor.FamilyID {
		SendServiceError(w, fmt.Errorf("%w: goal belongs to another family", ErrForbidden))
		return
	}

	if _, err := s.db.Exec(`DELETE FROM goals WHERE id = $1`, goalID); err != nil {
		SendErrorResponse(w, "Failed to delete goal", http.StatusInternalServerError, nil)
		return
	}

	SendJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": goalID})
}
