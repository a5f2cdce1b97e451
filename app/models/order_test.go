package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemsTotal(t *testing.T) {
	items := Items{
		{Name: "Masala dosa", Quantity: 2, Price: decimal.RequireFromString("45.50")},
		{Name: "Filter coffee", Quantity: 3, Price: decimal.RequireFromString("15")},
	}
	assert.True(t, decimal.RequireFromString("136").Equal(items.Total()))
	assert.True(t, Items(nil).Total().IsZero())
}

func TestItemsScan(t *testing.T) {
	var it Items
	require.NoError(t, it.Scan(`[{"name":"Tea","quantity":1,"price":"10"}]`))
	require.Len(t, it, 1)
	assert.Equal(t, "Tea", it[0].Name)

	require.NoError(t, it.Scan(nil))
	assert.Nil(t, it)
	assert.Error(t, it.Scan(42))
}

func TestTransitions(t *testing.T) {
	assert.True(t, CanTransition(StatusPendingApproval, StatusApproved))
	assert.True(t, CanTransition(StatusPendingApproval, StatusRejected))
	assert.True(t, CanTransition(StatusApproved, StatusReady))
	assert.False(t, CanTransition(StatusRejected, StatusApproved))
	assert.False(t, CanTransition(StatusCompleted, StatusReady))
	assert.False(t, CanTransition(StatusPendingApproval, StatusCompleted))

	assert.True(t, IsTerminal(StatusRejected))
	assert.True(t, IsTerminal(StatusCompleted))
	assert.True(t, IsTerminal(StatusCancelled))
	assert.False(t, IsTerminal(StatusReady))
	assert.False(t, IsTerminal("bogus"))
}

func TestCheckStatusUpdate(t *testing.T) {
	reason := func(s string) *string { return &s }

	assert.NoError(t, CheckStatusUpdate(StatusApproved, nil))
	assert.NoError(t, CheckStatusUpdate(StatusRejected, reason(ReasonOutOfStock)))
	assert.ErrorIs(t, CheckStatusUpdate(StatusRejected, nil), ErrReasonRequired)
	assert.ErrorIs(t, CheckStatusUpdate(StatusRejected, reason("Too busy")), ErrReasonRequired)
	assert.ErrorIs(t, CheckStatusUpdate(StatusApproved, reason(ReasonOther)), ErrReasonForbidden)
	assert.ErrorIs(t, CheckStatusUpdate("shipped", nil), ErrUnknownStatus)
}
