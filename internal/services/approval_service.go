package services

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/moneypots/backend/internal/middleware"
	"github.com/moneypots/backend/internal/models"
)

// ApprovalService resolves pending requests and carries their message
// threads. Approval fulfills the claim in the same database transaction as
// the status flip, so a request never reads Approved with its points missing.
type ApprovalService struct {
	db        *sql.DB
	fulfiller *Fulfiller
	notifier  Notifier
	validator *ValidationHelper
}

func NewApprovalService(db *sql.DB, fulfiller *Fulfiller, notifier Notifier) *ApprovalService {
	return &ApprovalService{db: db, fulfiller: fulfiller, notifier: notifier, validator: NewValidationHelper()}
}

const requestColumns = `id, family_id, child_id, parent_id, type, COALESCE(name, ''), amount,
	       COALESCE(from_jar, ''), COALESCE(to_jar, ''), COALESCE(reason, ''), status,
	       COALESCE(chore_id, ''), COALESCE(goal_id, ''), COALESCE(reward_id, ''),
	       COALESCE(acted_by, ''), acted_at, created_at, updated_at`

func scanRequest(scan func(dest ...any) error) (*models.ApprovalRequest, error) {
	var req models.ApprovalRequest
	var actedAt sql.NullTime
	err := scan(
		&req.ID, &req.FamilyID, &req.ChildID, &req.ParentID, &req.Type, &req.Name, &req.Amount,
		&req.FromJar, &req.ToJar, &req.Reason, &req.Status,
		&req.ChoreID, &req.GoalID, &req.RewardID,
		&req.ActedBy, &actedAt, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if actedAt.Valid {
		req.ActedAt = &actedAt.Time
	}
	req.Messages = []models.Message{}
	return &req, nil
}

func getRequest(q rowQuerier, requestID string, forUpdate bool) (*models.ApprovalRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	req, err := scanRequest(q.QueryRow(query, requestID).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func insertRequest(tx *sql.Tx, req *models.ApprovalRequest) error {
	_, err := tx.Exec(`
		INSERT INTO approval_requests (id, family_id, child_id, parent_id, type, name, amount,
			from_jar, to_jar, reason, status, chore_id, goal_id, reward_id,
			acted_by, acted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		req.ID, req.FamilyID, req.ChildID, req.ParentID, req.Type,
		nullableString(req.Name), req.Amount,
		nullableJar(req.FromJar), nullableJar(req.ToJar), nullableString(req.Reason),
		req.Status, nullableString(req.ChoreID), nullableString(req.GoalID), nullableString(req.RewardID),
		nullableString(req.ActedBy), nullableTime(req.ActedAt), req.CreatedAt, req.UpdatedAt)
	return err
}

func insertMessage(q rowQuerier, requestID, sender, userID, text string) (*models.Message, error) {
	msg := models.Message{
		RequestID: requestID,
		Sender:    sender,
		UserID:    userID,
		Text:      text,
		Timestamp: time.Now(),
	}
	err := q.QueryRow(`
		INSERT INTO request_messages (request_id, sender, user_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		msg.RequestID, msg.Sender, msg.UserID, msg.Text, msg.Timestamp).Scan(&msg.ID)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func loadMessages(db *sql.DB, requestID string) ([]models.Message, error) {
	rows, err := db.Query(`
		SELECT id, request_id, sender, user_id, text, created_at
		FROM request_messages
		WHERE request_id = $1
		ORDER BY created_at, id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.RequestID, &msg.Sender, &msg.UserID, &msg.Text, &msg.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ResolveRequest is the payload for a parent decision.
type ResolveRequest struct {
	Status  string `json:"status" validate:"required,oneof=Approved Denied"`
	Comment string `json:"comment" validate:"max=500"`
}

// ResolveClaim approves or denies a pending request
// @Summary Resolve request
// @Description Approve or deny a pending request, optionally attaching a final comment. Approval fulfills the claim atomically with the status change.
// @Tags requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param decision body ResolveRequest true "Decision"
// @Success 200 {object} models.ApprovalRequest
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /requests/{id} [put]
func (s *ApprovalService) ResolveClaim(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var body ResolveRequest
	if err := decodeJSON(r, &body); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(body); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	req, err := s.Resolve(requestID, actor, body.Status, body.Comment)
	if err != nil {
		SendServiceError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, req)
}

// Resolve flips a pending request to Approved or Denied and applies the
// consequences. Fulfillment errors (insufficient funds, vanished references)
// roll the whole decision back, leaving the request Pending.
func (s *ApprovalService) Resolve(requestID string, actor middleware.AuthUser, status, comment string) (*models.ApprovalRequest, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	req, err := getRequest(tx, requestID, true)
	if err != nil {
		return nil, err
	}
	if req.FamilyID != actor.FamilyID {
		return nil, fmt.Errorf("%w: request belongs to another family", ErrForbidden)
	}
	if req.Resolved() {
		return nil, fmt.Errorf("%w: request already %s", ErrInvalidTransition, req.Status)
	}

	if comment != "" {
		msg, err := insertMessage(tx, req.ID, models.RoleParent, actor.ID, comment)
		if err != nil {
			return nil, err
		}
		req.Messages = append(req.Messages, *msg)
	}

	now := time.Now()
	req.Status = status
	req.ActedBy = actor.ID
	req.ActedAt = &now
	req.UpdatedAt = now

	if _, err := tx.Exec(`
		UPDATE approval_requests
		SET status = $1, acted_by = $2, acted_at = $3, updated_at = $3
		WHERE id = $4`,
		req.Status, req.ActedBy, now, req.ID); err != nil {
		return nil, err
	}

	switch status {
	case models.StatusApproved:
		child, err := getAccount(tx, req.ChildID)
		if err != nil {
			return nil, err
		}
		if _, err := s.fulfiller.Fulfill(tx, req, child.DefaultSplit, false); err != nil {
			return nil, err
		}
	case models.StatusDenied:
		if err := s.fulfiller.Compensate(tx, req); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[APPROVAL] Request %s (%s, %d points) %s by %s",
		req.ID, req.Type, req.Amount, req.Status, actor.ID)

	event := models.NotifyRequestApproved
	message := fmt.Sprintf("Your %s request for %d points was approved", req.Type, req.Amount)
	if status == models.StatusDenied {
		event = models.NotifyRequestDenied
		message = fmt.Sprintf("Your %s request for %d points was denied", req.Type, req.Amount)
	}
	s.notifier.Notify(req.FamilyID, req.ChildID, event, message, req.ID)

	return req, nil
}

// PostMessageRequest is the payload for a thread message.
type PostMessageRequest struct {
	Text string `json:"text" validate:"required,min=1,max=500"`
}

// PostMessage appends to a request's message thread
// @Summary Post message
// @Description Append a message to a request's thread. Allowed for both family sides at any status, including after resolution.
// @Tags requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param message body PostMessageRequest true "Message"
// @Success 201 {object} models.Message
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /requests/{id}/messages [post]
func (s *ApprovalService) PostMessage(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var body PostMessageRequest
	if err := decodeJSON(r, &body); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(body); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	req, err := getRequest(s.db, requestID, false)
	if err != nil {
		SendServiceError(w, err)
		return
	}
	if req.FamilyID != actor.FamilyID {
		SendServiceError(w, fmt.Errorf("%w: request belongs to another family", ErrForbidden))
		return
	}

	msg, err := insertMessage(s.db, req.ID, senderRole(actor), actor.ID, body.Text)
	if err != nil {
		SendErrorResponse(w, "Failed to post message", http.StatusInternalServerError, nil)
		return
	}
	if _, err := s.db.Exec(`UPDATE approval_requests SET updated_at = $1 WHERE id = $2`,
		msg.Timestamp, req.ID); err != nil {
		log.Printf("[APPROVAL] Failed to touch request %s after message: %v", req.ID, err)
	}

	recipient := req.ChildID
	if actor.ID == req.ChildID {
		recipient = req.ParentID
	}
	s.notifier.Notify(req.FamilyID, recipient, models.NotifyRequestMessage,
		fmt.Sprintf("New message on your %s request", req.Type), req.ID)

	SendJSON(w, http.StatusCreated, msg)
}

// ListChildRequests lists one child's requests with their threads
// @Summary List child requests
// @Tags requests
// @Produce json
// @Param id path string true "Child account ID"
// @Success 200 {array} models.ApprovalRequest
// @Router /requests/{id} [get]
func (s *ApprovalService) ListChildRequests(w http.ResponseWriter, r *http.Request) {
	childID := chi.URLParam(r, "id")
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT `+requestColumns+`
		FROM approval_requests
		WHERE child_id = $1
		ORDER BY created_at DESC`, childID)
	if err != nil {
		SendErrorResponse(w, "Failed to list requests", http.StatusInternalServerError, nil)
		return
	}
	requests, err := s.collectRequests(rows, actor.FamilyID)
	if err != nil {
		SendErrorResponse(w, "Failed to list requests", http.StatusInternalServerError, nil)
		return
	}

	SendJSON(w, http.StatusOK, requests)
}

// ListFamilyRequests lists the family's recent requests for the parent view
// @Summary List family requests
// @Description Requests across the whole family from the last 30 days, enriched with the claiming child's name
// @Tags requests
// @Produce json
// @Success 200 {array} models.ApprovalRequest
// @Router /requests [get]
func (s *ApprovalService) ListFamilyRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	since := time.Now().AddDate(0, 0, -30)
	rows, err := s.db.Query(`
		SELECT `+requestColumns+`
		FROM approval_requests
		WHERE family_id = $1 AND created_at >= $2
		ORDER BY created_at DESC`, actor.FamilyID, since)
	if err != nil {
		SendErrorResponse(w, "Failed to list requests", http.StatusInternalServerError, nil)
		return
	}
	requests, err := s.collectRequests(rows, actor.FamilyID)
	if err != nil {
		SendErrorResponse(w, "Failed to list requests", http.StatusInternalServerError, nil)
		return
	}

	// Enrich with child names so the parent view does not need a second call.
	names := map[string]string{}
	for i := range requests {
		name, ok := names[requests[i].ChildID]
		if !ok {
			if err := s.db.QueryRow(`SELECT name FROM accounts WHERE id = $1`,
				requests[i].ChildID).Scan(&name); err != nil {
				name = ""
			}
			names[requests[i].ChildID] = name
		}
		requests[i].UserName = name
	}

	SendJSON(w, http.StatusOK, requests)
}

func (s *ApprovalService) collectRequests(rows *sql.Rows, familyID string) ([]models.ApprovalRequest, error) {
	defer rows.Close()

	requests := []models.ApprovalRequest{}
	for rows.Next() {
		req, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		if req.FamilyID != familyID {
			continue
		}
		requests = append(requests, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range requests {
		messages, err := loadMessages(s.db, requests[i].ID)
		if err != nil {
			return nil, err
		}
		requests[i].Messages = messages
	}
	return requests, nil
}
