package services

import (
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/moneypots/backend/internal/models"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return db, mock
}

func nowRow() time.Time {
	return time.Now()
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

// fakeNotifier records emitted events for assertions.
type fakeNotifier struct {
	events []notifiedEvent
}

type notifiedEvent struct {
	FamilyID    string
	UserID      string
	Type        string
	Message     string
	ReferenceID string
}

func (f *fakeNotifier) Notify(familyID, userID, eventType, message, referenceID string) {
	f.events = append(f.events, notifiedEvent{familyID, userID, eventType, message, referenceID})
}

func (f *fakeNotifier) last() notifiedEvent {
	if len(f.events) == 0 {
		return notifiedEvent{}
	}
	return f.events[len(f.events)-1]
}

var accountRowColumns = []string{
	"id", "family_id", "parent_id", "name", "role", "avatar",
	"current_points", "save_points", "spend_points", "donate_points", "invest_points",
	"currency", "conversion_rate", "show_denominations",
	"split_current", "split_save", "split_spend", "split_donate", "split_invest",
	"interest_rate", "interest_frequency", "interest_jar",
	"auto_chore_max", "auto_reward_max", "auto_move_max",
	"version", "created_at", "updated_at",
}

func accountRows(acct *models.Account) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(accountRowColumns).AddRow(
		acct.ID, acct.FamilyID, acct.ParentID, acct.Name, acct.Role, acct.Avatar,
		acct.Balances.Current, acct.Balances.Save, acct.Balances.Spend,
		acct.Balances.Donate, acct.Balances.Invest,
		acct.Currency, acct.ConversionRate, acct.ShowDenominations,
		acct.DefaultSplit.Current, acct.DefaultSplit.Save, acct.DefaultSplit.Spend,
		acct.DefaultSplit.Donate, acct.DefaultSplit.Invest,
		acct.InterestRule.Rate, acct.InterestRule.Frequency, string(acct.InterestRule.Jar),
		acct.AutoApprovalRules.ChoreClaimMax, acct.AutoApprovalRules.RewardClaimMax,
		acct.AutoApprovalRules.PointMoveMax,
		acct.Version, now, now,
	)
}

func expectGetAccount(mock sqlmock.Sqlmock, acct *models.Account) {
	mock.ExpectQuery("SELECT id, family_id, COALESCE\\(parent_id, ''\\), name, role").
		WithArgs(acct.ID).
		WillReturnRows(accountRows(acct))
}

func testChild(rules models.AutoApprovalRules) *models.Account {
	return &models.Account{
		ID:                "child1",
		FamilyID:          "fam1",
		ParentID:          "parent1",
		Name:              "Robin",
		Role:              models.RoleChild,
		Balances:          models.Balances{Current: 200, Save: 100},
		Currency:          "GBP",
		ConversionRate:    1,
		DefaultSplit:      models.DefaultSplit,
		AutoApprovalRules: rules,
		Version:           1,
	}
}

func testParent(rules models.AutoApprovalRules) *models.Account {
	return &models.Account{
		ID:                "parent1",
		FamilyID:          "fam1",
		Name:              "Alex",
		Role:              models.RoleParent,
		Currency:          "GBP",
		ConversionRate:    1,
		DefaultSplit:      models.DefaultSplit,
		AutoApprovalRules: rules,
		Version:           1,
	}
}

var requestRowColumns = []string{
	"id", "family_id", "child_id", "parent_id", "type", "name", "amount",
	"from_jar", "to_jar", "reason", "status",
	"chore_id", "goal_id", "reward_id",
	"acted_by", "acted_at", "created_at", "updated_at",
}

func requestRows(req *models.ApprovalRequest) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(requestRowColumns).AddRow(
		req.ID, req.FamilyID, req.ChildID, req.ParentID, req.Type, req.Name, req.Amount,
		string(req.FromJar), string(req.ToJar), req.Reason, req.Status,
		req.ChoreID, req.GoalID, req.RewardID,
		req.ActedBy, nullableTime(req.ActedAt), now, now,
	)
}
