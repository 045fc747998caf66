package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/moneypots/backend/internal/middleware"
	"github.com/moneypots/backend/internal/models"
)

// AccountService reads account records and handles full-account erasure.
// Balance mutation stays with the ledger.
type AccountService struct {
	db *sql.DB
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{db: db}
}

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}

const accountColumns = `id, family_id, COALESCE(parent_id, ''), name, role, COALESCE(avatar, ''),
	       current_points, save_points, spend_points, donate_points, invest_points,
	       currency, conversion_rate, show_denominations,
	       split_current, split_save, split_spend, split_donate, split_invest,
	       interest_rate, interest_frequency, interest_jar,
	       auto_chore_max, auto_reward_max, auto_move_max,
	       version, created_at, updated_at`

func scanAccount(row *sql.Row) (*models.Account, error) {
	var acct models.Account
	err := row.Scan(
		&acct.ID, &acct.FamilyID, &acct.ParentID, &acct.Name, &acct.Role, &acct.Avatar,
		&acct.Balances.Current, &acct.Balances.Save, &acct.Balances.Spend,
		&acct.Balances.Donate, &acct.Balances.Invest,
		&acct.Currency, &acct.ConversionRate, &acct.ShowDenominations,
		&acct.DefaultSplit.Current, &acct.DefaultSplit.Save, &acct.DefaultSplit.Spend,
		&acct.DefaultSplit.Donate, &acct.DefaultSplit.Invest,
		&acct.InterestRule.Rate, &acct.InterestRule.Frequency, &acct.InterestRule.Jar,
		&acct.AutoApprovalRules.ChoreClaimMax, &acct.AutoApprovalRules.RewardClaimMax,
		&acct.AutoApprovalRules.PointMoveMax,
		&acct.Version, &acct.CreatedAt, &acct.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func getAccount(q rowQuerier, accountID string) (*models.Account, error) {
	acct, err := scanAccount(q.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, accountID)
	}
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// GetAccount retrieves one account by id
// @Summary Get account
// @Description Retrieve an account with jar balances and family settings
// @Tags accounts
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [get]
func (s *AccountService) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	acct, err := getAccount(s.db, accountID)
	if err != nil {
		SendServiceError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, acct)
}

// ListAccounts lists accounts filtered by family and role
// @Summary List accounts
// @Description List accounts, optionally filtered by familyId and role
// @Tags accounts
// @Produce json
// @Param familyId query string false "Family ID"
// @Param role query string false "Role (parent or child)"
// @Success 200 {array} models.Account
// @Router /users [get]
func (s *AccountService) ListAccounts(w http.ResponseWriter, r *http.Request) {
	familyID := r.URL.Query().Get("familyId")
	role := r.URL.Query().Get("role")

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE 1=1`
	args := []any{}
	if familyID != "" {
		args = append(args, familyID)
		query += fmt.Sprintf(" AND family_id = $%d", len(args))
	}
	if role != "" {
		args = append(args, role)
		query += fmt.Sprintf(" AND role = $%d", len(args))
	}
	query += " ORDER BY created_at"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		SendErrorResponse(w, "Failed to list accounts", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		var acct models.Account
		if err := rows.Scan(
			&acct.ID, &acct.FamilyID, &acct.ParentID, &acct.Name, &acct.Role, &acct.Avatar,
			&acct.Balances.Current, &acct.Balances.Save, &acct.Balances.Spend,
			&acct.Balances.Donate, &acct.Balances.Invest,
			&acct.Currency, &acct.ConversionRate, &acct.ShowDenominations,
			&acct.DefaultSplit.Current, &acct.DefaultSplit.Save, &acct.DefaultSplit.Spend,
			&acct.DefaultSplit.Donate, &acct.DefaultSplit.Invest,
			&acct.InterestRule.Rate, &acct.InterestRule.Frequency, &acct.InterestRule.Jar,
			&acct.AutoApprovalRules.ChoreClaimMax, &acct.AutoApprovalRules.RewardClaimMax,
			&acct.AutoApprovalRules.PointMoveMax,
			&acct.Version, &acct.CreatedAt, &acct.UpdatedAt,
		); err != nil {
			SendErrorResponse(w, "Failed to list accounts", http.StatusInternalServerError, nil)
			return
		}
		accounts = append(accounts, acct)
	}

	SendJSON(w, http.StatusOK, accounts)
}

// DeleteAccount erases an account and everything attached to it
// @Summary Delete account
// @Description Full-account erasure: removes the account, its transactions, requests, chores, goals, rewards and notifications. The only path that deletes transaction rows.
// @Tags accounts
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [delete]
func (s *AccountService) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	acct, err := getAccount(s.db, accountID)
	if err != nil {
		SendServiceError(w, err)
		return
	}
	if acct.FamilyID != actor.FamilyID {
		SendServiceError(w, fmt.Errorf("%w: account belongs to another family", ErrForbidden))
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to delete account", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	statements := []string{
		`DELETE FROM request_messages WHERE request_id IN (SELECT id FROM approval_requests WHERE child_id = $1)`,
		`DELETE FROM approval_requests WHERE child_id = $1`,
		`DELETE FROM notifications WHERE user_id = $1`,
		`DELETE FROM transactions WHERE account_id = $1`,
		`DELETE FROM chores WHERE child_id = $1`,
		`DELETE FROM goals WHERE child_id = $1`,
		`DELETE FROM rewards WHERE child_id = $1`,
		`DELETE FROM accounts WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt, accountID); err != nil {
			log.Printf("[ACCOUNT] Erasure failed for %s: %v", accountID, err)
			SendErrorResponse(w, "Failed to delete account", http.StatusInternalServerError, nil)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[ACCOUNT] Erasure commit failed for %s: %v", accountID, err)
		SendErrorResponse(w, "Failed to delete account", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ACCOUNT] Erased account %s and all attached records", accountID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted", "id": accountID})
}
