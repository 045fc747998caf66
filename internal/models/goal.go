package models

import (
	"time"
)

// Goal statuses.
const (
	GoalActive    = "active"
	GoalPending   = "pending"
	GoalCompleted = "completed"
	GoalExpired   = "expired"
)

// Goal is a savings target tied to one jar. Completion debits the target
// amount from that jar once a parent approves (or auto-approval fires).
type Goal struct {
	ID            string     `json:"id" db:"id"`
	FamilyID      string     `json:"familyId" db:"family_id"`
	ParentID      string     `json:"parentId" db:"parent_id"`
	ChildID       string     `json:"childId" db:"child_id"`
	Name          string     `json:"name" db:"name"`
	Description   string     `json:"description,omitempty" db:"description"`
	TargetAmount  int64      `json:"targetAmount" db:"target_amount"`
	CurrentAmount int64      `json:"currentAmount" db:"current_amount"`
	Jar           Jar        `json:"jar" db:"jar"`
	Deadline      *time.Time `json:"deadline,omitempty" db:"deadline"`
	Status        string     `json:"status" db:"status"`
	CompletedAt   *time.Time `json:"completedAt,omitempty" db:"completed_at"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
}
