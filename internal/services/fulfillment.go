package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/moneypots/backend/internal/models"
)

// Fulfiller executes the balance-affecting side of an approved claim. The
// same path runs whether the approval came from a parent or from the
// auto-approval policy, always inside the caller's database transaction so
// the status change and the ledger mutation commit together.
type Fulfiller struct {
	ledger *JarLedgerService
}

func NewFulfiller(ledger *JarLedgerService) *Fulfiller {
	return &Fulfiller{ledger: ledger}
}

// Fulfill applies the claim's effect to the ledger and the referenced entity.
// familySplit is the child's family default split, used when a chore claim
// does not carry a custom split.
func (f *Fulfiller) Fulfill(tx *sql.Tx, req *models.ApprovalRequest, familySplit models.SplitConfig, auto bool) ([]*models.Transaction, error) {
	switch models.NormalizeClaimType(req.Type) {
	case models.ClaimPointsMove:
		return f.fulfillPointsMove(tx, req, auto)
	case models.ClaimPoints:
		return f.fulfillPoints(tx, req)
	case models.ClaimReward:
		return f.fulfillReward(tx, req, auto)
	case models.ClaimChore:
		return f.fulfillChore(tx, req, familySplit, auto)
	case models.ClaimGoalCompletion:
		return f.fulfillGoalCompletion(tx, req, auto)
	}
	return nil, fmt.Errorf("unknown claim type %q", req.Type)
}

// Compensate undoes the claim-time side effects of a denied request. Rewards
// go back on the shelf, goals back to active; other claim types simply lapse.
func (f *Fulfiller) Compensate(tx *sql.Tx, req *models.ApprovalRequest) error {
	switch models.NormalizeClaimType(req.Type) {
	case models.ClaimReward:
		if req.RewardID == "" {
			return nil
		}
		_, err := tx.Exec(`
			UPDATE rewards SET available = true, purchased = false, updated_at = $1
			WHERE id = $2`, time.Now(), req.RewardID)
		return err
	case models.ClaimGoalCompletion:
		if req.GoalID == "" {
			return nil
		}
		_, err := tx.Exec(`
			UPDATE goals SET status = $1, updated_at = $2
			WHERE id = $3`, models.GoalActive, time.Now(), req.GoalID)
		return err
	}
	return nil
}

func (f *Fulfiller) fulfillPointsMove(tx *sql.Tx, req *models.ApprovalRequest, auto bool) ([]*models.Transaction, error) {
	desc := fmt.Sprintf("Moved %d points from %s to %s (Parent Approved Request)", req.Amount, req.FromJar, req.ToJar)
	if auto {
		desc = fmt.Sprintf("Auto-approved points move: %d from %s to %s", req.Amount, req.FromJar, req.ToJar)
	}
	txn, err := f.ledger.TransferTx(tx, req.ChildID, req.FromJar, req.ToJar, req.Amount, TxMeta{
		Type:        models.TxPointsMove,
		Description: desc,
		ReferenceID: req.ID,
		Approved:    true,
	})
	if err != nil {
		return nil, err
	}
	return []*models.Transaction{txn}, nil
}

func (f *Fulfiller) fulfillPoints(tx *sql.Tx, req *models.ApprovalRequest) ([]*models.Transaction, error) {
	txn, err := f.ledger.CreditTx(tx, req.ChildID, models.JarCurrent, req.Amount, TxMeta{
		Type:        models.TxPointsRequest,
		Description: fmt.Sprintf("Parent approved %d points (Request)", req.Amount),
		ReferenceID: req.ID,
		Approved:    true,
	})
	if err != nil {
		return nil, err
	}
	return []*models.Transaction{txn}, nil
}

func (f *Fulfiller) fulfillReward(tx *sql.Tx, req *models.ApprovalRequest, auto bool) ([]*models.Transaction, error) {
	reward, err := getReward(tx, req.RewardID)
	if err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("Parent approved reward %q for %d points", reward.Name, req.Amount)
	if auto {
		desc = fmt.Sprintf("Auto-approved reward %q for %d points", reward.Name, req.Amount)
	}
	txn, err := f.ledger.DebitTx(tx, req.ChildID, models.JarCurrent, req.Amount, TxMeta{
		Type:        models.TxRewardPurchase,
		Description: desc,
		ReferenceID: reward.ID,
		Approved:    true,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := tx.Exec(`
		UPDATE rewards SET available = false, purchased = true, approved_at = $1, purchased_at = $1, updated_at = $1
		WHERE id = $2`, now, reward.ID); err != nil {
		return nil, err
	}
	return []*models.Transaction{txn}, nil
}

func (f *Fulfiller) fulfillChore(tx *sql.Tx, req *models.ApprovalRequest, familySplit models.SplitConfig, auto bool) ([]*models.Transaction, error) {
	chore, err := getChore(tx, req.ChoreID)
	if err != nil {
		return nil, err
	}

	points := req.Amount
	if points <= 0 {
		points = chore.Points
	}
	split := chore.SplitFor(familySplit)

	txns, err := f.ledger.SplitCreditTx(tx, req.ChildID, points, split, func(jar models.Jar, amount int64) TxMeta {
		desc := fmt.Sprintf("Parent approved chore completion: %q - %d points to %s jar", chore.Name, amount, jar)
		if auto {
			desc = fmt.Sprintf("Auto-approved chore %q - %d points to %s jar", chore.Name, amount, jar)
		}
		return TxMeta{
			Type:        models.TxChoreCompletion,
			Description: desc,
			ReferenceID: chore.ID,
			Approved:    true,
		}
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := tx.Exec(`
		UPDATE chores SET completed = true, approved = true, approved_at = $1, updated_at = $1
		WHERE id = $2`, now, chore.ID); err != nil {
		return nil, err
	}
	return txns, nil
}

func (f *Fulfiller) fulfillGoalCompletion(tx *sql.Tx, req *models.ApprovalRequest, auto bool) ([]*models.Transaction, error) {
	goal, err := getGoal(tx, req.GoalID)
	if err != nil {
		return nil, err
	}

	target := goal.TargetAmount
	if target <= 0 {
		target = req.Amount
	}

	desc := fmt.Sprintf("Goal %q completed, %d points from %s jar", goal.Name, target, goal.Jar)
	if auto {
		desc = fmt.Sprintf("Auto-approved goal %q completion, %d points from %s jar", goal.Name, target, goal.Jar)
	}
	txn, err := f.ledger.DebitTx(tx, req.ChildID, goal.Jar, target, TxMeta{
		Type:        models.TxGoalCompletion,
		Description: desc,
		ReferenceID: goal.ID,
		Approved:    true,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := tx.Exec(`
		UPDATE goals SET status = $1, completed_at = $2, updated_at = $2
		WHERE id = $3`, models.GoalCompleted, now, goal.ID); err != nil {
		return nil, err
	}
	return []*models.Transaction{txn}, nil
}
