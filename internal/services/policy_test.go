package services

import (
	"testing"

	"github.com/moneypots/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestAutoApprove(t *testing.T) {
	rules := models.AutoApprovalRules{
		ChoreClaimMax:  50,
		RewardClaimMax: 30,
		PointMoveMax:   100,
	}

	t.Run("chore at and below threshold", func(t *testing.T) {
		assert.True(t, AutoApprove(models.ClaimChore, 50, rules))
		assert.True(t, AutoApprove(models.ClaimChore, 1, rules))
	})

	t.Run("chore above threshold", func(t *testing.T) {
		assert.False(t, AutoApprove(models.ClaimChore, 51, rules))
	})

	t.Run("zero threshold disables the category", func(t *testing.T) {
		disabled := models.AutoApprovalRules{}
		assert.False(t, AutoApprove(models.ClaimChore, 1, disabled))
		assert.False(t, AutoApprove(models.ClaimReward, 1, disabled))
		assert.False(t, AutoApprove(models.ClaimPointsMove, 1, disabled))
	})

	t.Run("goal completion uses the reward threshold", func(t *testing.T) {
		assert.True(t, AutoApprove(models.ClaimGoalCompletion, 30, rules))
		assert.False(t, AutoApprove(models.ClaimGoalCompletion, 31, rules))
	})

	t.Run("points move alias", func(t *testing.T) {
		assert.True(t, AutoApprove("move-points", 100, rules))
		assert.False(t, AutoApprove("move-points", 101, rules))
	})

	t.Run("plain points never auto-approve", func(t *testing.T) {
		assert.False(t, AutoApprove(models.ClaimPoints, 1, rules))
	})

	t.Run("non-positive amounts never qualify", func(t *testing.T) {
		assert.False(t, AutoApprove(models.ClaimChore, 0, rules))
		assert.False(t, AutoApprove(models.ClaimChore, -5, rules))
	})
}
