package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/moneypots/backend/internal/middleware"
	"github.com/moneypots/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func postJSON(t *testing.T, target string, body any, actor middleware.AuthUser) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	assert.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	return req.WithContext(middleware.WithUser(req.Context(), actor))
}

func TestTransactionService_RecordManualTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	service := NewTransactionService(db, NewJarLedgerService(db))

	child := testChild(models.AutoApprovalRules{})

	t.Run("investment growth credits the invest jar", func(t *testing.T) {
		expectGetAccount(mock, child)
		mock.ExpectBegin()
		expectLockAccount(mock, "child1", balanceRows(200, 100, 0, 0, 50, 1))
		expectInsertTransaction(mock)
		expectUpdateBalances(mock, 1)
		mock.ExpectCommit()

		req := postJSON(t, "/api/v1/transactions", ManualTransactionRequest{
			UserID: "child1",
			Type:   models.TxInvestmentGrowth,
			Amount: 5,
		}, parentActor())
		rec := httptest.NewRecorder()
		service.RecordManualTransaction(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var txn models.Transaction
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&txn))
		assert.Equal(t, models.TxInvestmentGrowth, txn.Type)
		assert.Equal(t, models.JarInvest, txn.ToJar)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("withdrawal debits the named jar", func(t *testing.T) {
		expectGetAccount(mock, child)
		mock.ExpectBegin()
		expectLockAccount(mock, "child1", balanceRows(200, 100, 0, 0, 0, 1))
		expectInsertTransaction(mock)
		expectUpdateBalances(mock, 1)
		mock.ExpectCommit()

		req := postJSON(t, "/api/v1/transactions", ManualTransactionRequest{
			UserID: "child1",
			Type:   models.TxWithdrawal,
			Amount: 40,
			Jar:    "save",
		}, parentActor())
		rec := httptest.NewRecorder()
		service.RecordManualTransaction(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("parent adjustment moves no balance", func(t *testing.T) {
		expectGetAccount(mock, child)
		mock.ExpectBegin()
		expectLockAccount(mock, "child1", balanceRows(200, 100, 0, 0, 0, 1))
		expectInsertTransaction(mock)
		mock.ExpectCommit()

		req := postJSON(t, "/api/v1/transactions", ManualTransactionRequest{
			UserID:      "child1",
			Type:        models.TxParentAdjustment,
			Amount:      15,
			Description: "paid out in cash",
		}, parentActor())
		rec := httptest.NewRecorder()
		service.RecordManualTransaction(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var txn models.Transaction
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&txn))
		assert.Empty(t, txn.FromJar)
		assert.Empty(t, txn.ToJar)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cross-family target is forbidden", func(t *testing.T) {
		other := testChild(models.AutoApprovalRules{})
		other.ID = "stranger"
		other.FamilyID = "fam2"
		expectGetAccount(mock, other)

		req := postJSON(t, "/api/v1/transactions", ManualTransactionRequest{
			UserID: "stranger",
			Type:   models.TxInvestmentGrowth,
			Amount: 5,
		}, parentActor())
		rec := httptest.NewRecorder()
		service.RecordManualTransaction(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("withdrawal without a jar is rejected", func(t *testing.T) {
		expectGetAccount(mock, child)

		req := postJSON(t, "/api/v1/transactions", ManualTransactionRequest{
			UserID: "child1",
			Type:   models.TxWithdrawal,
			Amount: 40,
		}, parentActor())
		rec := httptest.NewRecorder()
		service.RecordManualTransaction(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown manual type fails validation", func(t *testing.T) {
		req := postJSON(t, "/api/v1/transactions", ManualTransactionRequest{
			UserID: "child1",
			Type:   "chore-completion",
			Amount: 40,
		}, parentActor())
		rec := httptest.NewRecorder()
		service.RecordManualTransaction(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestJarLedgerService_ListTransactions(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	ledger := NewJarLedgerService(db)

	mock.ExpectQuery("SELECT id, account_id, type, description, amount").
		WithArgs("child1", 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "account_id", "type", "description", "amount",
			"from_jar", "to_jar", "reference_id", "approved", "created_at",
		}).
			AddRow("t2", "child1", models.TxPointsMove, "move", 60, "save", "spend", "", true, nowRow()).
			AddRow("t1", "child1", models.TxChoreCompletion, "chore", 40, "", "current", "chore1", true, nowRow()))

	transactions, err := ledger.ListTransactions("child1", 50)
	assert.NoError(t, err)
	assert.Len(t, transactions, 2)
	assert.Equal(t, models.JarSave, transactions[0].FromJar)
	assert.Equal(t, models.JarCurrent, transactions[1].ToJar)
	assert.NoError(t, mock.ExpectationsWereMet())
}
