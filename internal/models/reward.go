package models

import (
	"time"
)

// Reward is something a child can spend current-jar points on. Claiming takes
// it off the shelf (available=false); approval marks it purchased and debits
// the cost, denial puts it back on the shelf.
type Reward struct {
	ID          string     `json:"id" db:"id"`
	FamilyID    string     `json:"familyId" db:"family_id"`
	ChildID     string     `json:"childId" db:"child_id"`
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description,omitempty" db:"description"`
	Cost        int64      `json:"cost" db:"cost"`
	Category    string     `json:"category" db:"category"` // experience, privilege, item
	Available   bool       `json:"available" db:"available"`
	Purchased   bool       `json:"purchased" db:"purchased"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty" db:"approved_at"`
	PurchasedAt *time.Time `json:"purchasedAt,omitempty" db:"purchased_at"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}
