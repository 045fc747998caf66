package models

import (
	"time"
)

// Chore is a parent-assigned task worth points. When a completion claim is
// approved the points are split across jars: the chore's custom split when
// UseDefaultSplit is false, the family default otherwise.
type Chore struct {
	ID              string       `json:"id" db:"id"`
	FamilyID        string       `json:"familyId" db:"family_id"`
	ParentID        string       `json:"parentId" db:"parent_id"`
	ChildID         string       `json:"childId" db:"child_id"`
	Name            string       `json:"name" db:"name"`
	Description     string       `json:"description,omitempty" db:"description"`
	Points          int64        `json:"points" db:"points"`
	Frequency       string       `json:"frequency" db:"frequency"` // daily, weekly, monthly, once
	Deadline        *time.Time   `json:"deadline,omitempty" db:"deadline"`
	Completed       bool         `json:"completed" db:"completed"`
	Approved        bool         `json:"approved" db:"approved"`
	CompletedAt     *time.Time   `json:"completedAt,omitempty" db:"completed_at"`
	ApprovedAt      *time.Time   `json:"approvedAt,omitempty" db:"approved_at"`
	UseDefaultSplit bool         `json:"useDefaultSplit" db:"use_default_split"`
	CustomSplit     *SplitConfig `json:"customSplit,omitempty"`
	CreatedAt       time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time    `json:"updatedAt" db:"updated_at"`
}

// SplitFor resolves the split to apply when awarding this chore's points.
func (c *Chore) SplitFor(familyDefault SplitConfig) SplitConfig {
	if !c.UseDefaultSplit && c.CustomSplit != nil {
		return *c.CustomSplit
	}
	if familyDefault.Validate() == nil {
		return familyDefault
	}
	return CurrentOnlySplit
}
