package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wiregram/wiregram-server/internal/logger"
	"github.com/wiregram/wiregram-server/internal/model"
)

// Access manages users and the request -> grant -> expiry lifecycle of
// named access grants.
type Access struct {
	userStore   model.UserStore
	accessStore model.AccessStore
	logger      *logger.Logger
	now         func() time.Time
}

func NewAccess(
	userStore model.UserStore,
	accessStore model.AccessStore,
	logger *logger.Logger,
) *Access {
	return &Access{
		userStore:   userStore,
		accessStore: accessStore,
		logger:      logger,
		now:         time.Now,
	}
}

// EnsureUser creates the user on first contact. An existing user is
// left untouched: the duplicate insert lands on the unique telegram id
// and comes back as success.
func (s *Access) EnsureUser(ctx context.Context, user model.User) (model.User, error) {
	existing, err := s.userStore.GetByTelegramID(ctx, user.TelegramID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	code, err := s.userStore.Create(ctx, user)
	if err != nil {
		s.logger.Error("failed to create user", "telegram_id", user.TelegramID, "error", err)
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	if code != model.CodeSuccess && code != model.CodeUniqueViolation {
		return model.User{}, fmt.Errorf("failed to create user: %s", code)
	}

	return s.userStore.GetByTelegramID(ctx, user.TelegramID)
}

// User resolves a user by telegram id. Unknown users get ErrNotFound.
func (s *Access) User(ctx context.Context, telegramID int64) (model.User, error) {
	return s.userStore.GetByTelegramID(ctx, telegramID)
}

// Promote and Demote flip the admin flag out of band; no request
// workflow is involved.
func (s *Access) Promote(ctx context.Context, telegramID int64) (model.Code, error) {
	return s.userStore.SetAdmin(ctx, telegramID, true)
}

func (s *Access) Demote(ctx context.Context, telegramID int64) (model.Code, error) {
	return s.userStore.SetAdmin(ctx, telegramID, false)
}

// Request records that the user wants the named access. The first call
// succeeds; while the request is pending every further call reports a
// unique violation, which is the de-duplication mechanism.
func (s *Access) Request(ctx context.Context, telegramID int64, accessName string) (model.Code, error) {
	user, err := s.userStore.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return model.CodeNotFound, fmt.Errorf("failed to resolve user: %w", err)
	}

	code, err := s.accessStore.CreateRequest(ctx, user.ID, accessName)
	if err != nil {
		s.logger.Error("failed to create access request",
			"telegram_id", telegramID,
			"access_name", accessName,
			"error", err)
	}
	return code, err
}

// Accept grants the named access for the given number of days, consuming
// the pending request atomically. With no pending request nothing
// changes and the caller sees NOT_FOUND. The validity window always
// restarts from now; renewing an active grant does not stack.
func (s *Access) Accept(ctx context.Context, telegramID int64, accessName string, days int) (model.Code, error) {
	user, err := s.userStore.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return model.CodeNotFound, fmt.Errorf("failed to resolve user: %w", err)
	}

	code, err := s.accessStore.Grant(ctx, user.ID, accessName, s.now().AddDate(0, 0, days))
	if err != nil {
		s.logger.Error("failed to grant access",
			"telegram_id", telegramID,
			"access_name", accessName,
			"error", err)
	}
	return code, err
}

// Decline removes the pending request without granting anything.
func (s *Access) Decline(ctx context.Context, telegramID int64, accessName string) (model.Code, error) {
	user, err := s.userStore.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return model.CodeNotFound, fmt.Errorf("failed to resolve user: %w", err)
	}

	return s.accessStore.DeleteRequest(ctx, user.ID, accessName)
}

// Get returns the current grant; absence is ErrNotFound, not a fault.
func (s *Access) Get(ctx context.Context, telegramID int64, accessName string) (model.Access, error) {
	user, err := s.userStore.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return model.Access{}, fmt.Errorf("failed to resolve user: %w", err)
	}

	return s.accessStore.Get(ctx, user.ID, accessName)
}

// GetRequest returns the pending request, if any.
func (s *Access) GetRequest(ctx context.Context, telegramID int64, accessName string) (model.AccessRequest, error) {
	user, err := s.userStore.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return model.AccessRequest{}, fmt.Errorf("failed to resolve user: %w", err)
	}

	return s.accessStore.GetRequest(ctx, user.ID, accessName)
}

// PendingRequests lists unresolved requests for the named access.
func (s *Access) PendingRequests(ctx context.Context, accessName string, limit int) ([]model.PendingRequest, error) {
	return s.accessStore.ListRequests(ctx, accessName, limit)
}

// Granted reports whether the user currently holds the named access.
func (s *Access) Granted(ctx context.Context, telegramID int64, accessName string) (bool, error) {
	access, err := s.Get(ctx, telegramID, accessName)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return access.Granted(s.now()), nil
}

// Block leaves the grant row in place with its window moved into the
// past. Preferred over Delete: non-destructive and auditable.
func (s *Access) Block(ctx context.Context, telegramID int64, accessName string) (model.Code, error) {
	user, err := s.userStore.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return model.CodeNotFound, fmt.Errorf("failed to resolve user: %w", err)
	}

	return s.accessStore.Block(ctx, user.ID, accessName)
}

// Revoke removes the grant row entirely.
func (s *Access) Revoke(ctx context.Context, telegramID int64, accessName string) (model.Code, error) {
	user, err := s.userStore.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return model.CodeNotFound, fmt.Errorf("failed to resolve user: %w", err)
	}

	return s.accessStore.Delete(ctx, user.ID, accessName)
}
