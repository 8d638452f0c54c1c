package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Identity keys are name-based UUIDs derived from stable natural keys.
// Re-deriving the same inputs always yields the same key, so "insert if
// absent" is enforced by the primary key instead of a read-then-write
// existence check.

// DeriveUserID derives the user key from the immutable telegram id.
func DeriveUserID(telegramID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(strconv.FormatInt(telegramID, 10)))
}

// DeriveAccessID keys both an access request and the resulting grant,
// which is what lets accepting a request upsert the grant in place.
func DeriveAccessID(userID uuid.UUID, accessName string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(accessName+userID.String()))
}

// DeriveConfigID derives the service configuration key.
func DeriveConfigID(userID uuid.UUID, configName string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(userID.String()+configName))
}

// DeriveOrderID includes the creation instant so a configuration can
// accumulate closed orders over time.
func DeriveOrderID(userID, configID uuid.UUID, createdAt time.Time) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(userID.String()+configID.String()+createdAt.Format(time.RFC3339Nano)))
}
