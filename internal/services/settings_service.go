package services

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/moneypots/backend/internal/middleware"
	"github.com/moneypots/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// SettingsService applies family-wide configuration. Settings live denormalized
// on every account row, so an update fans out across the whole family in one
// transaction and a child's account always carries its family's current values.
type SettingsService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewSettingsService(db *sql.DB) *SettingsService {
	return &SettingsService{db: db, validator: NewValidationHelper()}
}

// UpdateSettingsRequest carries partial family settings. The parent's PIN is
// required whenever one is set.
type UpdateSettingsRequest struct {
	Pin               string                    `json:"pin"`
	Currency          *string                   `json:"currency" validate:"omitempty,len=3"`
	ConversionRate    *float64                  `json:"conversionRate" validate:"omitempty,gte=0.1,lte=100"`
	ShowDenominations *bool                     `json:"showDenominations"`
	DefaultSplit      *models.SplitConfig       `json:"defaultSplit"`
	AutoApprovalRules *models.AutoApprovalRules `json:"autoApprovalRules"`
	InterestRule      *models.InterestRule      `json:"interestRule"`
}

// UpdateSettings updates family settings across every member
// @Summary Update family settings
// @Description Update the default split, auto-approval thresholds, currency display or interest rule. Changes fan out to every account in the family.
// @Tags settings
// @Accept json
// @Produce json
// @Param settings body UpdateSettingsRequest true "Settings"
// @Success 200 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /settings [put]
func (s *SettingsService) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req UpdateSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	acct, err := s.Update(actor, req)
	if err != nil {
		SendServiceError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, acct)
}

// Update validates and fans the settings out, returning the acting parent's
// refreshed account.
func (s *SettingsService) Update(actor middleware.AuthUser, req UpdateSettingsRequest) (*models.Account, error) {
	if err := s.verifyPin(actor.ID, req.Pin); err != nil {
		return nil, err
	}

	if req.DefaultSplit != nil {
		if err := req.DefaultSplit.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSplit, err)
		}
	}
	if req.AutoApprovalRules != nil {
		rules := req.AutoApprovalRules
		if rules.ChoreClaimMax < 0 || rules.RewardClaimMax < 0 || rules.PointMoveMax < 0 {
			return nil, fmt.Errorf("%w: auto-approval thresholds cannot be negative", ErrInvalidAmount)
		}
	}
	if req.InterestRule != nil {
		if req.InterestRule.Rate < 0 {
			return nil, fmt.Errorf("%w: interest rate cannot be negative", ErrInvalidAmount)
		}
		if f := req.InterestRule.Frequency; f != "" && f != "weekly" && f != "monthly" {
			return nil, fmt.Errorf("%w: interest frequency must be weekly or monthly", ErrInvalidAmount)
		}
		if j := req.InterestRule.Jar; j != "" && !models.ValidJar(string(j)) {
			return nil, fmt.Errorf("%w: unknown interest jar %q", ErrInvalidAmount, j)
		}
	}

	now := time.Now()
	set := ""
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		if set != "" {
			set += ", "
		}
		set += fmt.Sprintf("%s = $%d", column, len(args))
	}

	if req.Currency != nil {
		add("currency", *req.Currency)
	}
	if req.ConversionRate != nil {
		add("conversion_rate", *req.ConversionRate)
	}
	if req.ShowDenominations != nil {
		add("show_denominations", *req.ShowDenominations)
	}
	if req.DefaultSplit != nil {
		add("split_current", req.DefaultSplit.Current)
		add("split_save", req.DefaultSplit.Save)
		add("split_spend", req.DefaultSplit.Spend)
		add("split_donate", req.DefaultSplit.Donate)
		add("split_invest", req.DefaultSplit.Invest)
	}
	if req.AutoApprovalRules != nil {
		add("auto_chore_max", req.AutoApprovalRules.ChoreClaimMax)
		add("auto_reward_max", req.AutoApprovalRules.RewardClaimMax)
		add("auto_move_max", req.AutoApprovalRules.PointMoveMax)
	}
	if req.InterestRule != nil {
		add("interest_rate", req.InterestRule.Rate)
		add("interest_frequency", req.InterestRule.Frequency)
		add("interest_jar", string(req.InterestRule.Jar))
	}
	if set == "" {
		return getAccount(s.db, actor.ID)
	}
	add("updated_at", now)
	args = append(args, actor.FamilyID)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`UPDATE accounts SET %s WHERE family_id = $%d`, set, len(args))
	result, err := tx.Exec(query, args...)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	acct, err := getAccount(tx, actor.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[SETTINGS] Family %s settings updated by %s (%d accounts)", actor.FamilyID, actor.ID, affected)
	return acct, nil
}

// verifyPin checks the supplied PIN against the parent's stored hash. Accounts
// without a PIN set skip the check.
func (s *SettingsService) verifyPin(accountID, pin string) error {
	var hash string
	err := s.db.QueryRow(`SELECT COALESCE(pin_hash, '') FROM accounts WHERE id = $1`, accountID).Scan(&hash)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: account %s", ErrNotFound, accountID)
	}
	if err != nil {
		return err
	}
	if hash == "" {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)); err != nil {
		return fmt.Errorf("%w: incorrect parent PIN", ErrForbidden)
	}
	return nil
}

// SetPinRequest is the payload for setting or changing the parent PIN.
type SetPinRequest struct {
	CurrentPin string `json:"currentPin"`
	NewPin     string `json:"newPin" validate:"required,len=4,numeric"`
}

// SetPin sets or changes the caller's parent PIN
// @Summary Set parent PIN
// @Description Set a 4-digit PIN guarding settings and manual adjustments. Changing an existing PIN requires the current one.
// @Tags settings
// @Accept json
// @Produce json
// @Param pin body SetPinRequest true "PIN"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /settings/pin [put]
func (s *SettingsService) SetPin(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req SetPinRequest
	if err := decodeJSON(r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if err := s.verifyPin(actor.ID, req.CurrentPin); err != nil {
		SendServiceError(w, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPin), bcrypt.DefaultCost)
	if err != nil {
		SendErrorResponse(w, "Failed to set PIN", http.StatusInternalServerError, nil)
		return
	}
	if _, err := s.db.Exec(`UPDATE accounts SET pin_hash = $1, updated_at = $2 WHERE id = $3`,
		string(hash), time.Now(), actor.ID); err != nil {
		SendErrorResponse(w, "Failed to set PIN", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[SETTINGS] PIN updated for account %s", actor.ID)
	SendJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
