package models

import (
	"time"
)

// Claim types carried by an approval request.
const (
	ClaimChore          = "chore"
	ClaimReward         = "reward"
	ClaimGoalCompletion = "goal-completion"
	ClaimPointsMove     = "points-move"
	ClaimPoints         = "points"
)

// NormalizeClaimType maps accepted aliases onto the canonical claim types.
// The mobile clients historically sent both "move-points" and "points-move".
func NormalizeClaimType(t string) string {
	if t == "move-points" {
		return ClaimPointsMove
	}
	return t
}

// ValidClaimType reports whether t (after normalization) is a known claim type.
func ValidClaimType(t string) bool {
	switch NormalizeClaimType(t) {
	case ClaimChore, ClaimReward, ClaimGoalCompletion, ClaimPointsMove, ClaimPoints:
		return true
	}
	return false
}

// Approval request statuses. Approved and Denied are terminal.
const (
	StatusPending  = "Pending"
	StatusApproved = "Approved"
	StatusDenied   = "Denied"
)

// ApprovalRequest is a child-initiated claim waiting on (or resolved by) a
// parent. Once Approved or Denied no further status transition is permitted,
// though messages may still be appended.
type ApprovalRequest struct {
	ID        string     `json:"id" db:"id"`
	FamilyID  string     `json:"familyId" db:"family_id"`
	ChildID   string     `json:"childId" db:"child_id"`
	ParentID  string     `json:"parentId" db:"parent_id"`
	Type      string     `json:"type" db:"type"`
	Name      string     `json:"name,omitempty" db:"name"`
	Amount    int64      `json:"amount" db:"amount"`
	FromJar   Jar        `json:"from,omitempty" db:"from_jar"`
	ToJar     Jar        `json:"to,omitempty" db:"to_jar"`
	Reason    string     `json:"reason,omitempty" db:"reason"`
	Status    string     `json:"status" db:"status"`
	ChoreID   string     `json:"choreId,omitempty" db:"chore_id"`
	GoalID    string     `json:"goalId,omitempty" db:"goal_id"`
	RewardID  string     `json:"rewardId,omitempty" db:"reward_id"`
	ActedBy   string     `json:"actedBy,omitempty" db:"acted_by"`
	ActedAt   *time.Time `json:"actedAt,omitempty" db:"acted_at"`
	Messages  []Message  `json:"messages"`
	UserName  string     `json:"userName,omitempty"` // enriched for parent listings
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}

// Resolved reports whether the request has reached a terminal status.
func (r *ApprovalRequest) Resolved() bool {
	return r.Status == StatusApproved || r.Status == StatusDenied
}

// Message is one entry in a request's ordered message thread.
type Message struct {
	ID        int64     `json:"id" db:"id"`
	RequestID string    `json:"requestId" db:"request_id"`
	Sender    string    `json:"sender" db:"sender"` // parent or child
	UserID    string    `json:"userId" db:"user_id"`
	Text      string    `json:"text" db:"text"`
	Timestamp time.Time `json:"timestamp" db:"created_at"`
}
