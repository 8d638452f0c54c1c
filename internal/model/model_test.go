package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDeriveIDs_Deterministic(t *testing.T) {
	assert.Equal(t, DeriveUserID(42), DeriveUserID(42))
	assert.NotEqual(t, DeriveUserID(42), DeriveUserID(43))

	userID := DeriveUserID(42)
	assert.Equal(t, DeriveAccessID(userID, AccessBot), DeriveAccessID(userID, AccessBot))
	assert.NotEqual(t, DeriveAccessID(userID, AccessBot), DeriveAccessID(userID, "OTHER"))

	assert.Equal(t, DeriveConfigID(userID, "vless_42_1"), DeriveConfigID(userID, "vless_42_1"))
	assert.NotEqual(t, DeriveConfigID(userID, "vless_42_1"), DeriveConfigID(userID, "vless_42_2"))
}

func TestDeriveOrderID_DistinctPerInstant(t *testing.T) {
	userID := DeriveUserID(42)
	configID := DeriveConfigID(userID, "vless_42_1")
	now := time.Now()

	assert.Equal(t, DeriveOrderID(userID, configID, now), DeriveOrderID(userID, configID, now))
	assert.NotEqual(t,
		DeriveOrderID(userID, configID, now),
		DeriveOrderID(userID, configID, now.Add(time.Nanosecond)))
}

func TestCode_String(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{CodeSuccess, "SUCCESS"},
		{CodeUniqueViolation, "UNIQUE_VIOLATION"},
		{CodeForeignKeyViolation, "FOREIGN_KEY_VIOLATION"},
		{CodeNotFound, "NOT_FOUND"},
		{CodeNoRowsInserted, "NO_ROWS_INSERTED"},
		{CodeDatabaseError, "DATABASE_ERROR"},
		{Code(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.code.String())
	}
}

func TestOrderStatus_Transitions(t *testing.T) {
	assert.True(t, OrderNew.CanTransition(OrderPaid))
	assert.True(t, OrderPaid.CanTransition(OrderNew))
	assert.True(t, OrderPaid.CanTransition(OrderClosed))

	assert.False(t, OrderNew.CanTransition(OrderClosed))
	assert.False(t, OrderClosed.CanTransition(OrderNew))
	assert.False(t, OrderClosed.CanTransition(OrderPaid))
	assert.False(t, OrderNew.CanTransition(OrderNew))
}

func TestOrderStatus_Valid(t *testing.T) {
	assert.True(t, OrderNew.Valid())
	assert.True(t, OrderPaid.Valid())
	assert.True(t, OrderClosed.Valid())
	assert.False(t, OrderStatus("PENDING").Valid())
}

func TestAccess_GrantedWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	active := Access{ValidFrom: now.AddDate(0, 0, -1), ValidTo: now.AddDate(0, 0, 1)}
	assert.True(t, active.Granted(now))
	assert.False(t, active.Expired(now))

	expired := Access{ValidFrom: now.AddDate(0, 0, -2), ValidTo: now.AddDate(0, 0, -1)}
	assert.False(t, expired.Granted(now))
	assert.True(t, expired.Expired(now))

	// The window is half-open: active at ValidFrom, inactive at ValidTo.
	edge := Access{ValidFrom: now, ValidTo: now.AddDate(0, 0, 1)}
	assert.True(t, edge.Granted(now))
	assert.False(t, edge.Granted(edge.ValidTo))

	blocked := Access{ValidFrom: BlockedFrom, ValidTo: BlockedTo}
	assert.False(t, blocked.Granted(now))
}

func TestCachedLink_Fresh(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	window := 72 * time.Hour

	assert.True(t, CachedLink{Link: "vless://x", CachedAt: now.Add(-time.Hour)}.Fresh(now, window))
	assert.False(t, CachedLink{Link: "vless://x", CachedAt: now.Add(-100 * time.Hour)}.Fresh(now, window))
	// An empty link is never fresh, whatever its timestamp says.
	assert.False(t, CachedLink{CachedAt: now}.Fresh(now, window))
}

func TestDeriveAccessID_DiffersPerUser(t *testing.T) {
	a := DeriveAccessID(uuid.New(), AccessBot)
	b := DeriveAccessID(uuid.New(), AccessBot)
	assert.NotEqual(t, a, b)
}
