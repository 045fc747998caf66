package services

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/moneypots/backend/internal/middleware"
	"github.com/moneypots/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func newClaimService(db *sql.DB) (*ClaimService, *fakeNotifier) {
	notifier := &fakeNotifier{}
	ledger := NewJarLedgerService(db)
	return NewClaimService(db, NewFulfiller(ledger), notifier), notifier
}

func childActor() middleware.AuthUser {
	return middleware.AuthUser{ID: "child1", FamilyID: "fam1", Role: models.RoleChild}
}

func TestClaimService_SubmitPoints(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	service, notifier := newClaimService(db)

	child := testChild(models.AutoApprovalRules{})
	parent := testParent(models.AutoApprovalRules{ChoreClaimMax: 50})

	t.Run("points claims always land pending", func(t *testing.T) {
		expectGetAccount(mock, child)
		expectGetAccount(mock, parent)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO approval_requests").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("INSERT INTO request_messages").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		result, err := service.Submit(childActor(), SubmitClaimRequest{
			UserID: "child1",
			Type:   models.ClaimPoints,
			Amount: 10,
			Note:   "pocket money please",
		})
		assert.NoError(t, err)
		assert.False(t, result.AutoApproved)
		assert.Equal(t, models.StatusPending, result.Request.Status)
		assert.Len(t, result.Request.Messages, 1)
		assert.Equal(t, models.RoleChild, result.Request.Messages[0].Sender)

		event := notifier.last()
		assert.Equal(t, models.NotifyRequestSubmitted, event.Type)
		assert.Equal(t, "parent1", event.UserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown claim type", func(t *testing.T) {
		_, err := service.Submit(childActor(), SubmitClaimRequest{
			UserID: "child1",
			Type:   "allowance",
			Amount: 10,
		})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("cross-family claim is rejected", func(t *testing.T) {
		other := testChild(models.AutoApprovalRules{})
		other.ID = "stranger"
		other.FamilyID = "fam2"
		expectGetAccount(mock, other)

		_, err := service.Submit(childActor(), SubmitClaimRequest{
			UserID: "stranger",
			Type:   models.ClaimPoints,
			Amount: 10,
		})
		assert.ErrorIs(t, err, ErrForbidden)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestClaimService_SubmitPointsMove(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	service, notifier := newClaimService(db)

	child := testChild(models.AutoApprovalRules{})
	parent := testParent(models.AutoApprovalRules{PointMoveMax: 100})

	t.Run("auto-approved move fulfills immediately", func(t *testing.T) {
		expectGetAccount(mock, child)
		expectGetAccount(mock, parent)

		mock.ExpectBegin()
		expectLockAccount(mock, "child1", balanceRows(200, 100, 0, 0, 0, 1))
		expectInsertTransaction(mock)
		expectUpdateBalances(mock, 1)
		mock.ExpectExec("INSERT INTO approval_requests").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		result, err := service.Submit(childActor(), SubmitClaimRequest{
			UserID: "child1",
			Type:   models.ClaimPointsMove,
			Amount: 60,
			From:   "save",
			To:     "spend",
		})
		assert.NoError(t, err)
		assert.True(t, result.AutoApproved)
		assert.Equal(t, models.StatusApproved, result.Request.Status)
		assert.Equal(t, "auto", result.Request.ActedBy)
		assert.Len(t, result.Transactions, 1)
		assert.Equal(t, models.JarSave, result.Transactions[0].FromJar)
		assert.Equal(t, models.JarSpend, result.Transactions[0].ToJar)

		event := notifier.last()
		assert.Equal(t, models.NotifyMoveAutoApproved, event.Type)
		assert.Equal(t, "child1", event.UserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("move alias is normalized", func(t *testing.T) {
		expectGetAccount(mock, child)
		expectGetAccount(mock, parent)

		mock.ExpectBegin()
		expectLockAccount(mock, "child1", balanceRows(200, 100, 0, 0, 0, 1))
		expectInsertTransaction(mock)
		expectUpdateBalances(mock, 1)
		mock.ExpectExec("INSERT INTO approval_requests").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		result, err := service.Submit(childActor(), SubmitClaimRequest{
			UserID: "child1",
			Type:   "move-points",
			Amount: 60,
			From:   "save",
			To:     "spend",
		})
		assert.NoError(t, err)
		assert.Equal(t, models.ClaimPointsMove, result.Request.Type)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("under threshold but short on funds falls back to pending", func(t *testing.T) {
		expectGetAccount(mock, child)
		expectGetAccount(mock, parent)

		// auto attempt rolls back on insufficient funds
		mock.ExpectBegin()
		expectLockAccount(mock, "child1", balanceRows(200, 10, 0, 0, 0, 1))
		mock.ExpectRollback()

		// then the claim lands in the parent queue
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO approval_requests").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		result, err := service.Submit(childActor(), SubmitClaimRequest{
			UserID: "child1",
			Type:   models.ClaimPointsMove,
			Amount: 60,
			From:   "save",
			To:     "spend",
		})
		assert.NoError(t, err)
		assert.False(t, result.AutoApproved)
		assert.Equal(t, models.StatusPending, result.Request.Status)
		assert.Equal(t, models.NotifyRequestSubmitted, notifier.last().Type)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("same jar move is rejected", func(t *testing.T) {
		expectGetAccount(mock, child)

		_, err := service.Submit(childActor(), SubmitClaimRequest{
			UserID: "child1",
			Type:   models.ClaimPointsMove,
			Amount: 10,
			From:   "save",
			To:     "save",
		})
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestClaimService_SubmitChore(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	service, notifier := newClaimService(db)

	child := testChild(models.AutoApprovalRules{})
	parent := testParent(models.AutoApprovalRules{ChoreClaimMax: 100})

	choreRow := func(approved bool) *sqlmock.Rows {
		return sqlmock.NewRows([]string{
			"id", "family_id", "parent_id", "child_id", "name", "description",
			"points", "frequency", "deadline", "completed", "approved", "completed_at", "approved_at",
			"use_default_split", "split_current", "split_save", "split_spend", "split_donate", "split_invest",
			"created_at", "updated_at",
		}).AddRow("chore1", "fam1", "parent1", "child1", "Wash dishes", "",
			100, "once", nil, false, approved, nil, nil,
			true, 0, 0, 0, 0, 0, nowRow(), nowRow())
	}

	t.Run("auto-approved chore splits across jars", func(t *testing.T) {
		expectGetAccount(mock, child)
		mock.ExpectQuery("SELECT id, family_id, parent_id, child_id, name").
			WithArgs("chore1").
			WillReturnRows(choreRow(false))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("chore1", models.StatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		expectGetAccount(mock, parent)

		mock.ExpectBegin()
		// the chore is reloaded inside the fulfillment transaction
		mock.ExpectQuery("SELECT id, family_id, parent_id, child_id, name").
			WithArgs("chore1").
			WillReturnRows(choreRow(false))
		expectLockAccount(mock, "child1", balanceRows(200, 100, 0, 0, 0, 1))
		for i := 0; i < 5; i++ {
			expectInsertTransaction(mock)
		}
		expectUpdateBalances(mock, 1)
		mock.ExpectExec("UPDATE chores SET completed = true, approved = true").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO approval_requests").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		result, err := service.Submit(childActor(), SubmitClaimRequest{
			UserID:  "child1",
			Type:    models.ClaimChore,
			ChoreID: "chore1",
		})
		assert.NoError(t, err)
		assert.True(t, result.AutoApproved)
		assert.Equal(t, int64(100), result.Request.Amount)
		assert.Len(t, result.Transactions, 5)
		assert.Equal(t, models.NotifyChoreAutoApproved, notifier.last().Type)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already approved chore is a duplicate", func(t *testing.T) {
		expectGetAccount(mock, child)
		mock.ExpectQuery("SELECT id, family_id, parent_id, child_id, name").
			WithArgs("chore1").
			WillReturnRows(choreRow(true))

		_, err := service.Submit(childActor(), SubmitClaimRequest{
			UserID:  "child1",
			Type:    models.ClaimChore,
			ChoreID: "chore1",
		})
		assert.ErrorIs(t, err, ErrDuplicateClaim)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pending request on the same chore is a duplicate", func(t *testing.T) {
		expectGetAccount(mock, child)
		mock.ExpectQuery("SELECT id, family_id, parent_id, child_id, name").
			WithArgs("chore1").
			WillReturnRows(choreRow(false))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("chore1", models.StatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := service.Submit(childActor(), SubmitClaimRequest{
			UserID:  "child1",
			Type:    models.ClaimChore,
			ChoreID: "chore1",
		})
		assert.ErrorIs(t, err, ErrDuplicateClaim)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
