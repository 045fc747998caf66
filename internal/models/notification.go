package models

import (
	"time"
)

// Notification event types.
const (
	NotifyRequestSubmitted   = "request_submitted"
	NotifyRequestApproved    = "request_approved"
	NotifyRequestDenied      = "request_denied"
	NotifyRequestMessage     = "request_message"
	NotifyChoreAutoApproved  = "chore_auto_approved"
	NotifyRewardAutoApproved = "reward_auto_approved"
	NotifyGoalAutoApproved   = "goal_auto_approved"
	NotifyMoveAutoApproved   = "move_auto_approved"
)

// Notification is a stored, family-scoped event for one recipient. Delivery
// beyond storage (the queue push) is best-effort.
type Notification struct {
	ID          string    `json:"id" db:"id"`
	FamilyID    string    `json:"familyId" db:"family_id"`
	UserID      string    `json:"userId" db:"user_id"`
	Type        string    `json:"type" db:"type"`
	Message     string    `json:"message" db:"message"`
	ReferenceID string    `json:"referenceId,omitempty" db:"reference_id"`
	IsRead      bool      `json:"isRead" db:"is_read"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
