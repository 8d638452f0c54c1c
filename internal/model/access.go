package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AccessBot is the access name gating use of the bot itself.
const AccessBot = "BOT"

// Blocking rewrites the validity window to this fixed past range instead
// of deleting the row, so the grant is unambiguously inactive but its
// history survives.
var (
	BlockedFrom = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	BlockedTo   = time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC)
)

// AccessStore defines persistence operations for access requests and
// grants. Grant consumes the pending request and the grant upsert in a
// single transaction: no pending request means nothing changes.
type AccessStore interface {
	CreateRequest(ctx context.Context, userID uuid.UUID, accessName string) (Code, error)
	GetRequest(ctx context.Context, userID uuid.UUID, accessName string) (AccessRequest, error)
	ListRequests(ctx context.Context, accessName string, limit int) ([]PendingRequest, error)
	DeleteRequest(ctx context.Context, userID uuid.UUID, accessName string) (Code, error)
	Grant(ctx context.Context, userID uuid.UUID, accessName string, validTo time.Time) (Code, error)
	Get(ctx context.Context, userID uuid.UUID, accessName string) (Access, error)
	Block(ctx context.Context, userID uuid.UUID, accessName string) (Code, error)
	Delete(ctx context.Context, userID uuid.UUID, accessName string) (Code, error)
}

// AccessRequest represents an unresolved ask for a grant. At most one
// exists per (user, access name), enforced by the primary key.
type AccessRequest struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	AccessName string
	CreatedAt  time.Time
}

// PendingRequest is a request joined with its requester, for admin
// review screens.
type PendingRequest struct {
	TelegramID int64
	Tag        string
	AccessName string
	CreatedAt  time.Time
}

// Access is a time-windowed grant. Absence of a row means never granted.
type Access struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	AccessName string
	ValidFrom  time.Time
	ValidTo    time.Time
}

// Granted reports whether the grant is active at now.
func (a Access) Granted(now time.Time) bool {
	return !now.Before(a.ValidFrom) && now.Before(a.ValidTo)
}

// Expired reports whether the grant's window has passed.
func (a Access) Expired(now time.Time) bool {
	return !now.Before(a.ValidTo)
}
