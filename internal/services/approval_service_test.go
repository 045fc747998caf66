package services

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/moneypots/backend/internal/middleware"
	"github.com/moneypots/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func newApprovalService(db *sql.DB) (*ApprovalService, *fakeNotifier) {
	notifier := &fakeNotifier{}
	ledger := NewJarLedgerService(db)
	return NewApprovalService(db, NewFulfiller(ledger), notifier), notifier
}

func parentActor() middleware.AuthUser {
	return middleware.AuthUser{ID: "parent1", FamilyID: "fam1", Role: models.RoleParent}
}

func pendingRequest(claimType string, amount int64) *models.ApprovalRequest {
	return &models.ApprovalRequest{
		ID:       "req1",
		FamilyID: "fam1",
		ChildID:  "child1",
		ParentID: "parent1",
		Type:     claimType,
		Amount:   amount,
		Status:   models.StatusPending,
	}
}

func expectGetRequest(mock sqlmock.Sqlmock, req *models.ApprovalRequest) {
	mock.ExpectQuery("SELECT id, family_id, child_id, parent_id, type").
		WithArgs(req.ID).
		WillReturnRows(requestRows(req))
}

func rewardRow(available, purchased bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "family_id", "child_id", "name", "description",
		"cost", "category", "available", "purchased",
		"approved_at", "purchased_at", "created_at", "updated_at",
	}).AddRow("rw1", "fam1", "child1", "Cinema trip", "",
		80, "experience", available, purchased, nil, nil, nowRow(), nowRow())
}

func TestApprovalService_ApprovePoints(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	service, notifier := newApprovalService(db)

	child := testChild(models.AutoApprovalRules{})

	mock.ExpectBegin()
	expectGetRequest(mock, pendingRequest(models.ClaimPoints, 25))
	mock.ExpectExec("UPDATE approval_requests").
		WillReturnResult(sqlmock.NewResult(1, 1))
	expectGetAccount(mock, child)
	expectLockAccount(mock, "child1", balanceRows(200, 100, 0, 0, 0, 1))
	expectInsertTransaction(mock)
	expectUpdateBalances(mock, 1)
	mock.ExpectCommit()

	req, err := service.Resolve("req1", parentActor(), models.StatusApproved, "")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusApproved, req.Status)
	assert.Equal(t, "parent1", req.ActedBy)
	assert.NotNil(t, req.ActedAt)

	event := notifier.last()
	assert.Equal(t, models.NotifyRequestApproved, event.Type)
	assert.Equal(t, "child1", event.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalService_DenyReward(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	service, notifier := newApprovalService(db)

	req := pendingRequest(models.ClaimReward, 80)
	req.RewardID = "rw1"

	mock.ExpectBegin()
	expectGetRequest(mock, req)
	mock.ExpectQuery("INSERT INTO request_messages").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec("UPDATE approval_requests").
		WillReturnResult(sqlmock.NewResult(1, 1))
	// denial puts the reward back on the shelf
	mock.ExpectExec("UPDATE rewards SET available = true, purchased = false").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	resolved, err := service.Resolve("req1", parentActor(), models.StatusDenied, "maybe next month")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusDenied, resolved.Status)
	assert.Len(t, resolved.Messages, 1)
	assert.Equal(t, "maybe next month", resolved.Messages[0].Text)

	assert.Equal(t, models.NotifyRequestDenied, notifier.last().Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalService_ApproveReward(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	service, notifier := newApprovalService(db)

	child := testChild(models.AutoApprovalRules{})

	t.Run("debits current and marks purchased", func(t *testing.T) {
		req := pendingRequest(models.ClaimReward, 80)
		req.RewardID = "rw1"

		mock.ExpectBegin()
		expectGetRequest(mock, req)
		mock.ExpectExec("UPDATE approval_requests").
			WillReturnResult(sqlmock.NewResult(1, 1))
		expectGetAccount(mock, child)
		mock.ExpectQuery("SELECT id, family_id, child_id, name").
			WithArgs("rw1").
			WillReturnRows(rewardRow(false, false))
		expectLockAccount(mock, "child1", balanceRows(200, 0, 0, 0, 0, 1))
		expectInsertTransaction(mock)
		expectUpdateBalances(mock, 1)
		mock.ExpectExec("UPDATE rewards SET available = false, purchased = true").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		resolved, err := service.Resolve("req1", parentActor(), models.StatusApproved, "")
		assert.NoError(t, err)
		assert.Equal(t, models.StatusApproved, resolved.Status)
		assert.Equal(t, models.NotifyRequestApproved, notifier.last().Type)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient funds rolls the decision back", func(t *testing.T) {
		req := pendingRequest(models.ClaimReward, 80)
		req.RewardID = "rw1"

		mock.ExpectBegin()
		expectGetRequest(mock, req)
		mock.ExpectExec("UPDATE approval_requests").
			WillReturnResult(sqlmock.NewResult(1, 1))
		expectGetAccount(mock, child)
		mock.ExpectQuery("SELECT id, family_id, child_id, name").
			WithArgs("rw1").
			WillReturnRows(rewardRow(false, false))
		expectLockAccount(mock, "child1", balanceRows(30, 0, 0, 0, 0, 1))
		mock.ExpectRollback()

		_, err := service.Resolve("req1", parentActor(), models.StatusApproved, "")
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestApprovalService_TerminalStates(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	service, _ := newApprovalService(db)

	t.Run("already approved", func(t *testing.T) {
		req := pendingRequest(models.ClaimPoints, 25)
		req.Status = models.StatusApproved

		mock.ExpectBegin()
		expectGetRequest(mock, req)
		mock.ExpectRollback()

		_, err := service.Resolve("req1", parentActor(), models.StatusDenied, "")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already denied", func(t *testing.T) {
		req := pendingRequest(models.ClaimPoints, 25)
		req.Status = models.StatusDenied

		mock.ExpectBegin()
		expectGetRequest(mock, req)
		mock.ExpectRollback()

		_, err := service.Resolve("req1", parentActor(), models.StatusApproved, "")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other family's request", func(t *testing.T) {
		req := pendingRequest(models.ClaimPoints, 25)
		req.FamilyID = "fam2"

		mock.ExpectBegin()
		expectGetRequest(mock, req)
		mock.ExpectRollback()

		_, err := service.Resolve("req1", parentActor(), models.StatusApproved, "")
		assert.ErrorIs(t, err, ErrForbidden)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown request", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, family_id, child_id, parent_id, type").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(requestRowColumns))
		mock.ExpectRollback()

		_, err := service.Resolve("ghost", parentActor(), models.StatusApproved, "")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestApprovalService_ApprovePointsMove(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	service, _ := newApprovalService(db)

	child := testChild(models.AutoApprovalRules{})

	req := pendingRequest(models.ClaimPointsMove, 60)
	req.FromJar = models.JarSave
	req.ToJar = models.JarSpend

	mock.ExpectBegin()
	expectGetRequest(mock, req)
	mock.ExpectExec("UPDATE approval_requests").
		WillReturnResult(sqlmock.NewResult(1, 1))
	expectGetAccount(mock, child)
	expectLockAccount(mock, "child1", balanceRows(200, 100, 0, 0, 0, 1))
	expectInsertTransaction(mock)
	expectUpdateBalances(mock, 1)
	mock.ExpectCommit()

	resolved, err := service.Resolve("req1", parentActor(), models.StatusApproved, "")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusApproved, resolved.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
