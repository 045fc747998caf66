package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/moneypots/backend/internal/middleware"
	"github.com/moneypots/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func getWithURLParam(target, key, value string, actor middleware.AuthUser) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(middleware.WithUser(ctx, actor))
}

func TestAccountService_GetAccount(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	service := NewAccountService(db)

	t.Run("returns the account with balances", func(t *testing.T) {
		child := testChild(models.AutoApprovalRules{ChoreClaimMax: 50})
		expectGetAccount(mock, child)

		rec := httptest.NewRecorder()
		service.GetAccount(rec, getWithURLParam("/api/v1/users/child1", "id", "child1", childActor()))

		assert.Equal(t, http.StatusOK, rec.Code)
		var acct models.Account
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&acct))
		assert.Equal(t, "child1", acct.ID)
		assert.Equal(t, int64(200), acct.Balances.Current)
		assert.Equal(t, int64(50), acct.AutoApprovalRules.ChoreClaimMax)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown account is 404", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, family_id, COALESCE\\(parent_id, ''\\), name, role").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(accountRowColumns))

		rec := httptest.NewRecorder()
		service.GetAccount(rec, getWithURLParam("/api/v1/users/ghost", "id", "ghost", childActor()))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountService_DeleteAccount(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	service := NewAccountService(db)

	t.Run("erases the account and every attached record", func(t *testing.T) {
		child := testChild(models.AutoApprovalRules{})
		expectGetAccount(mock, child)

		mock.ExpectBegin()
		for _, table := range []string{
			"request_messages", "approval_requests", "notifications",
			"transactions", "chores", "goals", "rewards", "accounts",
		} {
			mock.ExpectExec("DELETE FROM " + table).
				WithArgs("child1").
				WillReturnResult(sqlmock.NewResult(0, 1))
		}
		mock.ExpectCommit()

		req := getWithURLParam("/api/v1/users/child1", "id", "child1", parentActor())
		req.Method = http.MethodDelete
		rec := httptest.NewRecorder()
		service.DeleteAccount(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cross-family erasure is forbidden", func(t *testing.T) {
		other := testChild(models.AutoApprovalRules{})
		other.ID = "stranger"
		other.FamilyID = "fam2"
		expectGetAccount(mock, other)

		req := getWithURLParam("/api/v1/users/stranger", "id", "stranger", parentActor())
		req.Method = http.MethodDelete
		rec := httptest.NewRecorder()
		service.DeleteAccount(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
