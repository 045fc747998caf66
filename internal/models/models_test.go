package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBalances(t *testing.T) {
	b := Balances{Current: 100, Save: 50}

	t.Run("get by jar", func(t *testing.T) {
		assert.Equal(t, int64(100), b.Get(JarCurrent))
		assert.Equal(t, int64(50), b.Get(JarSave))
		assert.Equal(t, int64(0), b.Get(JarInvest))
	})

	t.Run("signed add", func(t *testing.T) {
		c := b
		c.Add(JarSave, -20)
		c.Add(JarSpend, 5)
		assert.Equal(t, int64(30), c.Save)
		assert.Equal(t, int64(5), c.Spend)
	})

	t.Run("unknown jar reads zero", func(t *testing.T) {
		assert.Equal(t, int64(0), b.Get(Jar("wallet")))
	})
}

func TestNormalizeClaimType(t *testing.T) {
	assert.Equal(t, ClaimPointsMove, NormalizeClaimType("move-points"))
	assert.Equal(t, ClaimPointsMove, NormalizeClaimType("points-move"))
	assert.Equal(t, ClaimChore, NormalizeClaimType("chore"))

	assert.True(t, ValidClaimType("move-points"))
	assert.True(t, ValidClaimType("goal-completion"))
	assert.False(t, ValidClaimType("allowance"))
}

func TestChoreSplitFor(t *testing.T) {
	family := SplitConfig{Current: 50, Save: 50}

	t.Run("custom split wins when default is off", func(t *testing.T) {
		custom := SplitConfig{Spend: 100}
		chore := Chore{UseDefaultSplit: false, CustomSplit: &custom}
		assert.Equal(t, custom, chore.SplitFor(family))
	})

	t.Run("family default when requested", func(t *testing.T) {
		chore := Chore{UseDefaultSplit: true}
		assert.Equal(t, family, chore.SplitFor(family))
	})

	t.Run("missing custom split falls back to family default", func(t *testing.T) {
		chore := Chore{UseDefaultSplit: false}
		assert.Equal(t, family, chore.SplitFor(family))
	})

	t.Run("invalid family default falls back to current only", func(t *testing.T) {
		chore := Chore{UseDefaultSplit: true}
		assert.Equal(t, CurrentOnlySplit, chore.SplitFor(SplitConfig{Current: 10}))
	})
}

func TestApprovalRequestResolved(t *testing.T) {
	req := ApprovalRequest{Status: StatusPending}
	assert.False(t, req.Resolved())

	req.Status = StatusApproved
	assert.True(t, req.Resolved())

	req.Status = StatusDenied
	assert.True(t, req.Resolved())
}

func TestValidJar(t *testing.T) {
	for _, jar := range Jars {
		assert.True(t, ValidJar(string(jar)))
	}
	assert.False(t, ValidJar("wallet"))
	assert.False(t, ValidJar(""))
}
