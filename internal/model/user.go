package model

import (
	"context"

	"github.com/google/uuid"
)

// UserStore defines persistence operations for users.
type UserStore interface {
	Create(ctx context.Context, user User) (Code, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (User, error)
	AdminIDs(ctx context.Context) ([]int64, error)
	SetAdmin(ctx context.Context, telegramID int64, admin bool) (Code, error)
}

// User represents a bot user. Users are created on first contact and
// never deleted; Admin is mutated only through promote/demote.
type User struct {
	ID         uuid.UUID
	TelegramID int64
	Name       string
	Tag        string
	Admin      bool
	LangCode   string
}
