package services

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/moneypots/backend/internal/middleware"
	"github.com/moneypots/backend/internal/models"
)

// TransactionService exposes the transaction log and lets parents record
// manual entries: investment growth, withdrawals and log-only adjustments.
type TransactionService struct {
	db        *sql.DB
	ledger    *JarLedgerService
	validator *ValidationHelper
}

func NewTransactionService(db *sql.DB, ledger *JarLedgerService) *TransactionService {
	return &TransactionService{db: db, ledger: ledger, validator: NewValidationHelper()}
}

// ManualTransactionRequest is the payload for a parent-recorded transaction.
type ManualTransactionRequest struct {
	UserID      string `json:"userId" validate:"required"`
	Type        string `json:"type" validate:"required,oneof=investment-growth withdrawal parent-adjustment"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Jar         string `json:"jar"`
	Description string `json:"description" validate:"max=500"`
}

// RecordManualTransaction records a parent-initiated transaction
// @Summary Record manual transaction
// @Description Investment growth credits the invest jar, withdrawals debit the named jar, and parent adjustments are recorded in the log without touching balances.
// @Tags transactions
// @Accept json
// @Produce json
// @Param transaction body ManualTransactionRequest true "Transaction"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /transactions [post]
func (s *TransactionService) RecordManualTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req ManualTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	acct, err := getAccount(s.db, req.UserID)
	if err != nil {
		SendServiceError(w, err)
		return
	}
	if acct.FamilyID != actor.FamilyID {
		SendServiceError(w, fmt.Errorf("%w: account belongs to another family", ErrForbidden))
		return
	}

	var txn *models.Transaction
	switch req.Type {
	case models.TxInvestmentGrowth:
		desc := req.Description
		if desc == "" {
			desc = fmt.Sprintf("Investment growth of %d points", req.Amount)
		}
		txn, err = s.ledger.Credit(req.UserID, models.JarInvest, req.Amount, TxMeta{
			Type:        models.TxInvestmentGrowth,
			Description: desc,
			Approved:    true,
		})
	case models.TxWithdrawal:
		if !models.ValidJar(req.Jar) {
			SendErrorResponse(w, "Withdrawals need a valid jar", http.StatusBadRequest, nil)
			return
		}
		desc := req.Description
		if desc == "" {
			desc = fmt.Sprintf("Withdrawal of %d points from %s jar", req.Amount, req.Jar)
		}
		txn, err = s.ledger.Debit(req.UserID, models.Jar(req.Jar), req.Amount, TxMeta{
			Type:        models.TxWithdrawal,
			Description: desc,
			Approved:    true,
		})
	case models.TxParentAdjustment:
		// Adjustments document something that happened outside the jars, so
		// they land in the log without moving any balance.
		txn, err = s.ledger.RecordUnapplied(req.UserID, req.Amount, TxMeta{
			Type:        models.TxParentAdjustment,
			Description: req.Description,
			Approved:    true,
		})
	}
	if err != nil {
		SendServiceError(w, err)
		return
	}

	log.Printf("[TRANSACTION] Manual %s of %d points for %s by %s", req.Type, req.Amount, req.UserID, actor.ID)
	SendJSON(w, http.StatusCreated, txn)
}

// ListTransactions lists an account's transaction log
// @Summary List transactions
// @Description Transaction log for one account, most recent first
// @Tags transactions
// @Produce json
// @Param userId path string true "Account ID"
// @Param limit query int false "Max rows (default 50)"
// @Success 200 {array} models.Transaction
// @Failure 403 {object} ErrorResponse
// @Router /transactions/{userId} [get]
func (s *TransactionService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	acct, err := getAccount(s.db, userID)
	if err != nil {
		SendServiceError(w, err)
		return
	}
	if acct.FamilyID != actor.FamilyID {
		SendServiceError(w, fmt.Errorf("%w: account belongs to another family", ErrForbidden))
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	transactions, err := s.ledger.ListTransactions(userID, limit)
	if err != nil {
		SendErrorResponse(w, "Failed to list transactions", http.StatusInternalServerError, nil)
		return
	}

	SendJSON(w, http.StatusOK, transactions)
}
