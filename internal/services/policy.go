package services

import (
	"github.com/moneypots/backend/internal/models"
)

// AutoApprove decides whether a claim bypasses parent review. A claim
// qualifies when its category has a positive threshold and the amount is at
// or below it; a zero (unset) threshold disables the category outright.
//
// Goal-completion claims are gated by RewardClaimMax, not a threshold of
// their own. That mirrors the original product behavior and stays until
// product says otherwise.
func AutoApprove(claimType string, amount int64, rules models.AutoApprovalRules) bool {
	var max int64
	switch models.NormalizeClaimType(claimType) {
	case models.ClaimChore:
		max = rules.ChoreClaimMax
	case models.ClaimReward:
		max = rules.RewardClaimMax
	case models.ClaimGoalCompletion:
		max = rules.RewardClaimMax
	case models.ClaimPointsMove:
		max = rules.PointMoveMax
	default:
		// plain point requests always go to the parent
		return false
	}
	return max > 0 && amount > 0 && amount <= max
}
