package services

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/moneypots/backend/internal/middleware"
	"github.com/moneypots/backend/internal/models"
)

// ClaimService accepts child-initiated claims. Each claim either auto-approves
// against the family's thresholds, fulfilling immediately, or lands as a
// Pending approval request for a parent to resolve.
type ClaimService struct {
	db        *sql.DB
	fulfiller *Fulfiller
	notifier  Notifier
	validator *ValidationHelper
}

func NewClaimService(db *sql.DB, fulfiller *Fulfiller, notifier Notifier) *ClaimService {
	return &ClaimService{db: db, fulfiller: fulfiller, notifier: notifier, validator: NewValidationHelper()}
}

// SubmitClaimRequest is the payload for submitting a claim.
type SubmitClaimRequest struct {
	UserID   string `json:"userId" validate:"required"`
	Type     string `json:"type" validate:"required"`
	Name     string `json:"name" validate:"max=100"`
	Amount   int64  `json:"amount" validate:"omitempty,gt=0"`
	From     string `json:"from"`
	To       string `json:"to"`
	Reason   string `json:"reason" validate:"max=500"`
	ChoreID  string `json:"choreId"`
	GoalID   string `json:"goalId"`
	RewardID string `json:"rewardId"`
	Note     string `json:"note" validate:"max=500"`
}

// ClaimResult is the outcome of a submitted claim.
type ClaimResult struct {
	AutoApproved bool                    `json:"autoApproved"`
	Request      *models.ApprovalRequest `json:"request"`
	Transactions []*models.Transaction   `json:"transactions,omitempty"`
}

// SubmitClaim handles POST /requests
// @Summary Submit a claim
// @Description Submit a chore, reward, goal-completion, points-move or points claim. Claims at or under the family's auto-approval threshold fulfill immediately; everything else waits for a parent.
// @Tags requests
// @Accept json
// @Produce json
// @Param claim body SubmitClaimRequest true "Claim"
// @Success 201 {object} ClaimResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /requests [post]
func (s *ClaimService) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req SubmitClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := s.Submit(actor, req)
	if err != nil {
		SendServiceError(w, err)
		return
	}
	SendJSON(w, http.StatusCreated, result)
}

// Submit validates, prices and routes one claim.
func (s *ClaimService) Submit(actor middleware.AuthUser, req SubmitClaimRequest) (*ClaimResult, error) {
	claimType := models.NormalizeClaimType(req.Type)
	if !models.ValidClaimType(claimType) {
		return nil, fmt.Errorf("%w: unknown claim type %q", ErrInvalidAmount, req.Type)
	}

	child, err := getAccount(s.db, req.UserID)
	if err != nil {
		return nil, err
	}
	if child.FamilyID != actor.FamilyID {
		return nil, fmt.Errorf("%w: account belongs to another family", ErrForbidden)
	}
	if actor.Role != models.RoleParent && actor.ID != child.ID {
		return nil, fmt.Errorf("%w: children can only claim for themselves", ErrForbidden)
	}
	if child.ParentID == "" {
		return nil, fmt.Errorf("%w: account %s has no linked parent", ErrNotFound, child.ID)
	}

	request := &models.ApprovalRequest{
		ID:       uuid.NewString(),
		FamilyID: child.FamilyID,
		ChildID:  child.ID,
		ParentID: child.ParentID,
		Type:     claimType,
		Name:     req.Name,
		Amount:   req.Amount,
		Reason:   req.Reason,
		Status:   models.StatusPending,
		ChoreID:  req.ChoreID,
		GoalID:   req.GoalID,
		RewardID: req.RewardID,
	}

	// The referenced entity prices the claim; a bare amount only applies to
	// points and points-move.
	switch claimType {
	case models.ClaimChore:
		chore, err := s.checkChoreClaim(request)
		if err != nil {
			return nil, err
		}
		request.Amount = chore.Points
		if request.Name == "" {
			request.Name = chore.Name
		}
	case models.ClaimReward:
		reward, err := s.checkRewardClaim(request)
		if err != nil {
			return nil, err
		}
		request.Amount = reward.Cost
		if request.Name == "" {
			request.Name = reward.Name
		}
	case models.ClaimGoalCompletion:
		goal, err := s.checkGoalClaim(request)
		if err != nil {
			return nil, err
		}
		request.Amount = goal.TargetAmount
		if request.Name == "" {
			request.Name = goal.Name
		}
	case models.ClaimPointsMove:
		if err := s.checkMoveClaim(request, req.From, req.To); err != nil {
			return nil, err
		}
	case models.ClaimPoints:
		if request.Amount <= 0 {
			return nil, fmt.Errorf("%w: points claims need a positive amount", ErrInvalidAmount)
		}
	}

	// Thresholds live on the parent account; a child's own copy is only a
	// fallback for unlinked test fixtures.
	rules := child.AutoApprovalRules
	if parent, err := getAccount(s.db, child.ParentID); err == nil {
		rules = parent.AutoApprovalRules
	}

	if AutoApprove(claimType, request.Amount, rules) {
		result, err := s.submitAuto(request, child)
		if err == nil {
			return result, nil
		}
		// A points move below the threshold but short on funds still lands
		// in the parent's queue instead of failing outright.
		if claimType != models.ClaimPointsMove || !errors.Is(err, ErrInsufficientFunds) {
			return nil, err
		}
	}

	return s.submitPending(request, actor, req.Note)
}

func (s *ClaimService) checkChoreClaim(request *models.ApprovalRequest) (*models.Chore, error) {
	if request.ChoreID == "" {
		return nil, fmt.Errorf("%w: chore claims need a choreId", ErrInvalidAmount)
	}
	chore, err := getChore(s.db, request.ChoreID)
	if err != nil {
		return nil, err
	}
	if chore.ChildID != request.ChildID {
		return nil, fmt.Errorf("%w: chore is assigned to another child", ErrForbidden)
	}
	if chore.Approved {
		return nil, fmt.Errorf("%w: chore %s already approved", ErrDuplicateClaim, chore.ID)
	}
	if err := s.checkNoPendingClaim("chore_id", request.ChoreID); err != nil {
		return nil, err
	}
	return chore, nil
}

func (s *ClaimService) checkRewardClaim(request *models.ApprovalRequest) (*models.Reward, error) {
	if request.RewardID == "" {
		return nil, fmt.Errorf("%w: reward claims need a rewardId", ErrInvalidAmount)
	}
	reward, err := getReward(s.db, request.RewardID)
	if err != nil {
		return nil, err
	}
	if reward.ChildID != request.ChildID {
		return nil, fmt.Errorf("%w: reward belongs to another child", ErrForbidden)
	}
	if reward.Purchased || !reward.Available {
		return nil, fmt.Errorf("%w: reward %s is not on the shelf", ErrDuplicateClaim, reward.ID)
	}
	if err := s.checkNoPendingClaim("reward_id", request.RewardID); err != nil {
		return nil, err
	}
	return reward, nil
}

func (s *ClaimService) checkGoalClaim(request *models.ApprovalRequest) (*models.Goal, error) {
	if request.GoalID == "" {
		return nil, fmt.Errorf("%w: goal claims need a goalId", ErrInvalidAmount)
	}
	goal, err := getGoal(s.db, request.GoalID)
	if err != nil {
		return nil, err
	}
	if goal.ChildID != request.ChildID {
		return nil, fmt.Errorf("%w: goal belongs to another child", ErrForbidden)
	}
	if goal.Status != models.GoalActive {
		return nil, fmt.Errorf("%w: goal is %s", ErrInvalidTransition, goal.Status)
	}
	if err := s.checkNoPendingClaim("goal_id", request.GoalID); err != nil {
		return nil, err
	}
	return goal, nil
}

func (s *ClaimService) checkMoveClaim(request *models.ApprovalRequest, from, to string) error {
	if !models.ValidJar(from) || !models.ValidJar(to) {
		return fmt.Errorf("%w: points moves need valid from and to jars", ErrInvalidAmount)
	}
	fromJar, toJar := models.Jar(from), models.Jar(to)
	if fromJar == toJar {
		return fmt.Errorf("%w: cannot move points from %s jar to itself", ErrInvalidAmount, fromJar)
	}
	if request.Amount <= 0 {
		return fmt.Errorf("%w: points moves need a positive amount", ErrInvalidAmount)
	}
	request.FromJar = fromJar
	request.ToJar = toJar
	return nil
}

func (s *ClaimService) checkNoPendingClaim(column, referenceID string) error {
	var exists bool
	err := s.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM approval_requests WHERE `+column+` = $1 AND status = $2)`,
		referenceID, models.StatusPending).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: a pending request already references this item", ErrDuplicateClaim)
	}
	return nil
}

// submitAuto fulfills the claim and records the already-Approved request in
// one transaction.
func (s *ClaimService) submitAuto(request *models.ApprovalRequest, child *models.Account) (*ClaimResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	request.Status = models.StatusApproved
	request.ActedBy = "auto"
	request.ActedAt = &now
	request.CreatedAt = now
	request.UpdatedAt = now

	txns, err := s.fulfiller.Fulfill(tx, request, child.DefaultSplit, true)
	if err != nil {
		return nil, err
	}
	if err := insertRequest(tx, request); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[CLAIM] Auto-approved %s claim %s for %d points (child %s)",
		request.Type, request.ID, request.Amount, request.ChildID)
	s.notifier.Notify(request.FamilyID, request.ChildID, autoApprovalEvent(request.Type),
		autoApprovalMessage(request), request.ID)

	request.Messages = []models.Message{}
	return &ClaimResult{AutoApproved: true, Request: request, Transactions: txns}, nil
}

// submitPending records the request, the optional opening note and any
// claim-time side effects, then pings the parent.
func (s *ClaimService) submitPending(request *models.ApprovalRequest, actor middleware.AuthUser, note string) (*ClaimResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	request.Status = models.StatusPending
	request.ActedBy = ""
	request.ActedAt = nil
	request.CreatedAt = now
	request.UpdatedAt = now

	if err := insertRequest(tx, request); err != nil {
		return nil, err
	}

	request.Messages = []models.Message{}
	if note != "" {
		msg, err := insertMessage(tx, request.ID, senderRole(actor), actor.ID, note)
		if err != nil {
			return nil, err
		}
		request.Messages = append(request.Messages, *msg)
	}

	// Claimed items leave circulation while the request is open.
	switch request.Type {
	case models.ClaimReward:
		if _, err := tx.Exec(`UPDATE rewards SET available = false, updated_at = $1 WHERE id = $2`,
			now, request.RewardID); err != nil {
			return nil, err
		}
	case models.ClaimGoalCompletion:
		if _, err := tx.Exec(`UPDATE goals SET status = $1, updated_at = $2 WHERE id = $3`,
			models.GoalPending, now, request.GoalID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[CLAIM] Pending %s claim %s for %d points (child %s)",
		request.Type, request.ID, request.Amount, request.ChildID)
	s.notifier.Notify(request.FamilyID, request.ParentID, models.NotifyRequestSubmitted,
		fmt.Sprintf("New %s request for %d points", request.Type, request.Amount), request.ID)

	return &ClaimResult{AutoApproved: false, Request: request}, nil
}

func senderRole(actor middleware.AuthUser) string {
	if actor.Role == models.RoleParent {
		return models.RoleParent
	}
	return models.RoleChild
}

func autoApprovalEvent(claimType string) string {
	switch claimType {
	case models.ClaimChore:
		return models.NotifyChoreAutoApproved
	case models.ClaimReward:
		return models.NotifyRewardAutoApproved
	case models.ClaimGoalCompletion:
		return models.NotifyGoalAutoApproved
	case models.ClaimPointsMove:
		return models.NotifyMoveAutoApproved
	}
	return models.NotifyRequestApproved
}

func autoApprovalMessage(request *models.ApprovalRequest) string {
	switch request.Type {
	case models.ClaimPointsMove:
		return fmt.Sprintf("Your move of %d points from %s to %s was approved automatically", request.Amount, request.FromJar, request.ToJar)
	case models.ClaimReward:
		return fmt.Sprintf("Your reward %q was approved automatically", request.Name)
	case models.ClaimGoalCompletion:
		return fmt.Sprintf("Your goal %q was completed automatically", request.Name)
	}
	return fmt.Sprintf("Your %s claim for %d points was approved automatically", request.Type, request.Amount)
}
