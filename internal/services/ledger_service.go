package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moneypots/backend/internal/models"
)

// TxMeta describes the transaction row recorded for a ledger mutation.
type TxMeta struct {
	Type        string
	Description string
	ReferenceID string
	Approved    bool
}

// JarLedgerService owns jar balances and the append-only transaction log.
// Every mutation locks the account row, updates the materialized balances and
// appends the transaction inside one database transaction, so either both
// commit or neither does. The row lock plus the optimistic version check
// serialize concurrent claims against the same account.
type JarLedgerService struct {
	db *sql.DB
}

func NewJarLedgerService(db *sql.DB) *JarLedgerService {
	return &JarLedgerService{db: db}
}

type lockedAccount struct {
	Balances models.Balances
	Version  int
}

// Credit increases jar by amount and records one transaction.
func (s *JarLedgerService) Credit(accountID string, jar models.Jar, amount int64, meta TxMeta) (*models.Transaction, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	txn, err := s.CreditTx(tx, accountID, jar, amount, meta)
	if err != nil {
		return nil, err
	}
	return txn, tx.Commit()
}

// CreditTx is Credit inside a caller-owned transaction.
func (s *JarLedgerService) CreditTx(tx *sql.Tx, accountID string, jar models.Jar, amount int64, meta TxMeta) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: credit amount must be positive, got %d", ErrInvalidAmount, amount)
	}

	acct, err := s.lockAccount(tx, accountID)
	if err != nil {
		return nil, err
	}

	acct.Balances.Add(jar, amount)
	txn := s.newTransaction(accountID, amount, "", jar, meta)
	if err := s.insertTransaction(tx, txn); err != nil {
		return nil, err
	}
	if err := s.updateBalances(tx, accountID, acct.Balances, acct.Version); err != nil {
		return nil, err
	}
	return txn, nil
}

// Debit decreases jar by amount and records one transaction. The balance is
// never allowed to go negative.
func (s *JarLedgerService) Debit(accountID string, jar models.Jar, amount int64, meta TxMeta) (*models.Transaction, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	txn, err := s.DebitTx(tx, accountID, jar, amount, meta)
	if err != nil {
		return nil, err
	}
	return txn, tx.Commit()
}

// DebitTx is Debit inside a caller-owned transaction.
func (s *JarLedgerService) DebitTx(tx *sql.Tx, accountID string, jar models.Jar, amount int64, meta TxMeta) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: debit amount must be positive, got %d", ErrInvalidAmount, amount)
	}

	acct, err := s.lockAccount(tx, accountID)
	if err != nil {
		return nil, err
	}
	if acct.Balances.Get(jar) < amount {
		return nil, fmt.Errorf("%w: %s jar holds %d, need %d", ErrInsufficientFunds, jar, acct.Balances.Get(jar), amount)
	}

	acct.Balances.Add(jar, -amount)
	txn := s.newTransaction(accountID, amount, jar, "", meta)
	if err := s.insertTransaction(tx, txn); err != nil {
		return nil, err
	}
	if err := s.updateBalances(tx, accountID, acct.Balances, acct.Version); err != nil {
		return nil, err
	}
	return txn, nil
}

// Transfer moves amount between two jars of the same account, recorded as a
// single transaction carrying both jars.
func (s *JarLedgerService) Transfer(accountID string, fromJar, toJar models.Jar, amount int64, meta TxMeta) (*models.Transaction, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	txn, err := s.TransferTx(tx, accountID, fromJar, toJar, amount, meta)
	if err != nil {
		return nil, err
	}
	return txn, tx.Commit()
}

// TransferTx is Transfer inside a caller-owned transaction.
func (s *JarLedgerService) TransferTx(tx *sql.Tx, accountID string, fromJar, toJar models.Jar, amount int64, meta TxMeta) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: transfer amount must be positive, got %d", ErrInvalidAmount, amount)
	}
	if fromJar == toJar {
		return nil, fmt.Errorf("%w: cannot transfer from %s jar to itself", ErrInvalidAmount, fromJar)
	}

	acct, err := s.lockAccount(tx, accountID)
	if err != nil {
		return nil, err
	}
	if acct.Balances.Get(fromJar) < amount {
		return nil, fmt.Errorf("%w: %s jar holds %d, need %d", ErrInsufficientFunds, fromJar, acct.Balances.Get(fromJar), amount)
	}

	acct.Balances.Add(fromJar, -amount)
	acct.Balances.Add(toJar, amount)
	txn := s.newTransaction(accountID, amount, fromJar, toJar, meta)
	if err := s.insertTransaction(tx, txn); err != nil {
		return nil, err
	}
	if err := s.updateBalances(tx, accountID, acct.Balances, acct.Version); err != nil {
		return nil, err
	}
	return txn, nil
}

// SplitCreditTx applies the split allocation of total as one credit
// transaction per jar with a non-zero share, all as one atomic unit. The
// account row is locked once and the balance row written once, so a failure
// on any jar leaves none of them applied.
func (s *JarLedgerService) SplitCreditTx(tx *sql.Tx, accountID string, total int64, split models.SplitConfig, metaFor func(jar models.Jar, amount int64) TxMeta) ([]*models.Transaction, error) {
	if total <= 0 {
		return nil, fmt.Errorf("%w: split credit total must be positive, got %d", ErrInvalidAmount, total)
	}

	acct, err := s.lockAccount(tx, accountID)
	if err != nil {
		return nil, err
	}

	allocations := Allocate(total, split)
	txns := make([]*models.Transaction, 0, len(allocations))
	for _, jar := range models.Jars {
		amount, ok := allocations[jar]
		if !ok {
			continue
		}
		acct.Balances.Add(jar, amount)
		txn := s.newTransaction(accountID, amount, "", jar, metaFor(jar, amount))
		if err := s.insertTransaction(tx, txn); err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	if err := s.updateBalances(tx, accountID, acct.Balances, acct.Version); err != nil {
		return nil, err
	}
	return txns, nil
}

// SplitCredit is SplitCreditTx with its own commit boundary.
func (s *JarLedgerService) SplitCredit(accountID string, total int64, split models.SplitConfig, metaFor func(jar models.Jar, amount int64) TxMeta) ([]*models.Transaction, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	txns, err := s.SplitCreditTx(tx, accountID, total, split, metaFor)
	if err != nil {
		return nil, err
	}
	return txns, tx.Commit()
}

// RecordUnapplied appends a transaction that deliberately moves no balance.
// Used for parent adjustments that document activity outside the jars.
func (s *JarLedgerService) RecordUnapplied(accountID string, amount int64, meta TxMeta) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidAmount, amount)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Lock the account so the log entry cannot outlive a concurrent erasure.
	if _, err := s.lockAccount(tx, accountID); err != nil {
		return nil, err
	}

	txn := s.newTransaction(accountID, amount, "", "", meta)
	if err := s.insertTransaction(tx, txn); err != nil {
		return nil, err
	}
	return txn, tx.Commit()
}

// ListTransactions returns the account's transaction log, most recent first.
func (s *JarLedgerService) ListTransactions(accountID string, limit int) ([]models.Transaction, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, type, description, amount,
		       COALESCE(from_jar, '') AS from_jar, COALESCE(to_jar, '') AS to_jar,
		       COALESCE(reference_id, '') AS reference_id, approved, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var txn models.Transaction
		if err := rows.Scan(
			&txn.ID, &txn.AccountID, &txn.Type, &txn.Description, &txn.Amount,
			&txn.FromJar, &txn.ToJar, &txn.ReferenceID, &txn.Approved, &txn.CreatedAt,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}
	return transactions, rows.Err()
}

func (s *JarLedgerService) lockAccount(tx *sql.Tx, accountID string) (*lockedAccount, error) {
	var acct lockedAccount
	err := tx.QueryRow(`
		SELECT current_points, save_points, spend_points, donate_points, invest_points, version
		FROM accounts
		WHERE id = $1
		FOR UPDATE`, accountID).Scan(
		&acct.Balances.Current, &acct.Balances.Save, &acct.Balances.Spend,
		&acct.Balances.Donate, &acct.Balances.Invest, &acct.Version)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, accountID)
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (s *JarLedgerService) updateBalances(tx *sql.Tx, accountID string, b models.Balances, version int) error {
	result, err := tx.Exec(`
		UPDATE accounts
		SET current_points = $1, save_points = $2, spend_points = $3,
		    donate_points = $4, invest_points = $5,
		    version = version + 1, updated_at = $6
		WHERE id = $7 AND version = $8`,
		b.Current, b.Save, b.Spend, b.Donate, b.Invest,
		time.Now(), accountID, version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for account %s", accountID)
	}
	return nil
}

func (s *JarLedgerService) insertTransaction(tx *sql.Tx, txn *models.Transaction) error {
	_, err := tx.Exec(`
		INSERT INTO transactions (id, account_id, type, description, amount, from_jar, to_jar, reference_id, approved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		txn.ID, txn.AccountID, txn.Type, txn.Description, txn.Amount,
		nullableJar(txn.FromJar), nullableJar(txn.ToJar), nullableString(txn.ReferenceID),
		txn.Approved, txn.CreatedAt)
	return err
}

func (s *JarLedgerService) newTransaction(accountID string, amount int64, fromJar, toJar models.Jar, meta TxMeta) *models.Transaction {
	return &models.Transaction{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Type:        meta.Type,
		Description: meta.Description,
		Amount:      amount,
		FromJar:     fromJar,
		ToJar:       toJar,
		ReferenceID: meta.ReferenceID,
		Approved:    meta.Approved,
		CreatedAt:   time.Now(),
	}
}

func nullableJar(jar models.Jar) sql.NullString {
	return nullableString(string(jar))
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
