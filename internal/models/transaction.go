package models

import (
	"time"
)

// Transaction kinds. The log is append-only; rows are removed only by
// full-account erasure.
const (
	TxChoreCompletion  = "chore-completion"
	TxGoalContribution = "goal-contribution"
	TxRewardPurchase   = "reward-purchase"
	TxPointsMove       = "points-move"
	TxPointsRequest    = "points-request"
	TxInvestmentGrowth = "investment-growth"
	TxWithdrawal       = "withdrawal"
	TxGoalCompletion   = "goal-completion"
	TxParentAdjustment = "parent-adjustment"
)

// ValidTransactionType reports whether t is a known transaction kind.
func ValidTransactionType(t string) bool {
	switch t {
	case TxChoreCompletion, TxGoalContribution, TxRewardPurchase, TxPointsMove,
		TxPointsRequest, TxInvestmentGrowth, TxWithdrawal, TxGoalCompletion,
		TxParentAdjustment:
		return true
	}
	return false
}

// Transaction is one immutable ledger entry. Amount is always positive;
// direction is carried by the jars: a credit sets ToJar, a debit sets FromJar,
// a transfer sets both. balance[jar] == sum(amount where to_jar=jar) -
// sum(amount where from_jar=jar) holds for every account at all times.
type Transaction struct {
	ID          string    `json:"id" db:"id"`
	AccountID   string    `json:"accountId" db:"account_id"`
	Type        string    `json:"type" db:"type"`
	Description string    `json:"description" db:"description"`
	Amount      int64     `json:"amount" db:"amount"`
	FromJar     Jar       `json:"fromJar,omitempty" db:"from_jar"`
	ToJar       Jar       `json:"toJar,omitempty" db:"to_jar"`
	ReferenceID string    `json:"referenceId,omitempty" db:"reference_id"`
	Approved    bool      `json:"approved" db:"approved"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
