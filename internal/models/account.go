package models

import (
	"fmt"
	"time"
)

// Jar is one of the five named sub-balances every account holds.
type Jar string

const (
	JarCurrent Jar = "current"
	JarSave    Jar = "save"
	JarSpend   Jar = "spend"
	JarDonate  Jar = "donate"
	JarInvest  Jar = "invest"
)

// Jars lists the canonical jars in display order.
var Jars = []Jar{JarCurrent, JarSave, JarSpend, JarDonate, JarInvest}

// ValidJar reports whether s names a canonical jar.
func ValidJar(s string) bool {
	switch Jar(s) {
	case JarCurrent, JarSave, JarSpend, JarDonate, JarInvest:
		return true
	}
	return false
}

const (
	RoleParent = "parent"
	RoleChild  = "child"
)

// Account is one family member with per-jar balances and the family settings
// that are fanned out across all members. Balances are a materialized cache of
// the transaction log; the ledger is the only writer.
type Account struct {
	ID                string            `json:"id" db:"id"`
	FamilyID          string            `json:"familyId" db:"family_id"`
	ParentID          string            `json:"parentId,omitempty" db:"parent_id"`
	Name              string            `json:"name" db:"name"`
	Role              string            `json:"role" db:"role"`
	Avatar            string            `json:"avatar,omitempty" db:"avatar"`
	Balances          Balances          `json:"balances"`
	Currency          string            `json:"currency" db:"currency"`
	ConversionRate    float64           `json:"conversionRate" db:"conversion_rate"`
	ShowDenominations bool              `json:"showDenominations" db:"show_denominations"`
	DefaultSplit      SplitConfig       `json:"defaultSplit"`
	InterestRule      InterestRule      `json:"interestRule"`
	AutoApprovalRules AutoApprovalRules `json:"autoApprovalRules"`
	Version           int               `json:"-" db:"version"` // for optimistic locking
	CreatedAt         time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time         `json:"updatedAt" db:"updated_at"`
}

// Balances holds the five jar balances, in points.
type Balances struct {
	Current int64 `json:"current" db:"current_points"`
	Save    int64 `json:"save" db:"save_points"`
	Spend   int64 `json:"spend" db:"spend_points"`
	Donate  int64 `json:"donate" db:"donate_points"`
	Invest  int64 `json:"invest" db:"invest_points"`
}

// Get returns the balance of the named jar.
func (b Balances) Get(jar Jar) int64 {
	switch jar {
	case JarCurrent:
		return b.Current
	case JarSave:
		return b.Save
	case JarSpend:
		return b.Spend
	case JarDonate:
		return b.Donate
	case JarInvest:
		return b.Invest
	}
	return 0
}

// Add applies a signed delta to the named jar.
func (b *Balances) Add(jar Jar, delta int64) {
	switch jar {
	case JarCurrent:
		b.Current += delta
	case JarSave:
		b.Save += delta
	case JarSpend:
		b.Spend += delta
	case JarDonate:
		b.Donate += delta
	case JarInvest:
		b.Invest += delta
	}
}

// SplitConfig maps each jar to a whole percentage of an awarded amount.
// The five percentages must sum to exactly 100.
type SplitConfig struct {
	Current int `json:"current" db:"split_current"`
	Save    int `json:"save" db:"split_save"`
	Spend   int `json:"spend" db:"split_spend"`
	Donate  int `json:"donate" db:"split_donate"`
	Invest  int `json:"invest" db:"split_invest"`
}

// DefaultSplit is the out-of-the-box family split.
var DefaultSplit = SplitConfig{Current: 40, Save: 30, Spend: 15, Donate: 10, Invest: 5}

// CurrentOnlySplit sends everything to the current jar. Used as the fallback
// when a chore has neither a custom split nor a family default.
var CurrentOnlySplit = SplitConfig{Current: 100}

// Percent returns the percentage configured for jar.
func (s SplitConfig) Percent(jar Jar) int {
	switch jar {
	case JarCurrent:
		return s.Current
	case JarSave:
		return s.Save
	case JarSpend:
		return s.Spend
	case JarDonate:
		return s.Donate
	case JarInvest:
		return s.Invest
	}
	return 0
}

// Validate checks that every entry is within [0,100] and the total is exactly 100.
func (s SplitConfig) Validate() error {
	total := 0
	for _, jar := range Jars {
		p := s.Percent(jar)
		if p < 0 || p > 100 {
			return fmt.Errorf("invalid percentage for %s: must be 0-100", jar)
		}
		total += p
	}
	if total != 100 {
		return fmt.Errorf("point split percentages must total exactly 100%%, got %d", total)
	}
	return nil
}

// InterestRule is a stored savings bonus configuration. Accrual itself is not
// scheduled by this service; the rule is display/configuration state only.
type InterestRule struct {
	Rate      float64 `json:"rate" db:"interest_rate"`
	Frequency string  `json:"frequency" db:"interest_frequency"` // weekly or monthly
	Jar       Jar     `json:"jar" db:"interest_jar"`
}

// AutoApprovalRules are the parent-configured thresholds under which a claim
// is fulfilled without review. A zero threshold disables auto-approval for
// that category.
type AutoApprovalRules struct {
	ChoreClaimMax  int64 `json:"choreClaimMax" db:"auto_chore_max"`
	RewardClaimMax int64 `json:"rewardClaimMax" db:"auto_reward_max"`
	PointMoveMax   int64 `json:"pointMoveMax" db:"auto_move_max"`
}
