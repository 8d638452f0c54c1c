package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Panel is the remote provisioning system of record for tunnel
// credentials. Every call is an independent network round trip; failures
// are fatal to the enclosing operation and never retried here.
type Panel interface {
	// FreePort finds the lowest unused port in the panel's bounded
	// pool, or ErrNoFreePorts when the pool is exhausted.
	FreePort(ctx context.Context) (int, error)
	// EnsureInbound finds or creates the listening allocation and
	// returns its id.
	EnsureInbound(ctx context.Context, name string, port int) (int, error)
	CreateClient(ctx context.Context, inboundID int, email string, expiry time.Time) (uuid.UUID, error)
	Client(ctx context.Context, email string) (PanelClient, error)
	UpdateClientExpiry(ctx context.Context, email string, expiry time.Time) error
	DeleteClient(ctx context.Context, email string) error
	// ConnectionLink derives the client's connection string from the
	// inbound's transport parameters.
	ConnectionLink(ctx context.Context, email string) (string, error)
}

// PanelClient is the remote view of a provisioned credential.
type PanelClient struct {
	ID        uuid.UUID
	Email     string
	InboundID int
	Expiry    time.Time
}
