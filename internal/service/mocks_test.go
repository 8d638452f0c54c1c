package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/wiregram/wiregram-server/internal/logger"
	"github.com/wiregram/wiregram-server/internal/model"
	"github.com/wiregram/wiregram-server/internal/testutil"
)

func testLogger() *logger.Logger {
	return testutil.MakeNoopLogger()
}

// MockUserStore mocks the UserStore interface
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Create(ctx context.Context, user model.User) (model.Code, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(model.Code), args.Error(1)
}

func (m *MockUserStore) GetByTelegramID(ctx context.Context, telegramID int64) (model.User, error) {
	args := m.Called(ctx, telegramID)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserStore) AdminIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockUserStore) SetAdmin(ctx context.Context, telegramID int64, admin bool) (model.Code, error) {
	args := m.Called(ctx, telegramID, admin)
	return args.Get(0).(model.Code), args.Error(1)
}

// MockAccessStore mocks the AccessStore interface
type MockAccessStore struct {
	mock.Mock
}

func (m *MockAccessStore) CreateRequest(ctx context.Context, userID uuid.UUID, accessName string) (model.Code, error) {
	args := m.Called(ctx, userID, accessName)
	return args.Get(0).(model.Code), args.Error(1)
}

func (m *MockAccessStore) GetRequest(ctx context.Context, userID uuid.UUID, accessName string) (model.AccessRequest, error) {
	args := m.Called(ctx, userID, accessName)
	return args.Get(0).(model.AccessRequest), args.Error(1)
}

func (m *MockAccessStore) ListRequests(ctx context.Context, accessName string, limit int) ([]model.PendingRequest, error) {
	args := m.Called(ctx, accessName, limit)
	return args.Get(0).([]model.PendingRequest), args.Error(1)
}

func (m *MockAccessStore) DeleteRequest(ctx context.Context, userID uuid.UUID, accessName string) (model.Code, error) {
	args := m.Called(ctx, userID, accessName)
	return args.Get(0).(model.Code), args.Error(1)
}

func (m *MockAccessStore) Grant(ctx context.Context, userID uuid.UUID, accessName string, validTo time.Time) (model.Code, error) {
	args := m.Called(ctx, userID, accessName, validTo)
	return args.Get(0).(model.Code), args.Error(1)
}

func (m *MockAccessStore) Get(ctx context.Context, userID uuid.UUID, accessName string) (model.Access, error) {
	args := m.Called(ctx, userID, accessName)
	return args.Get(0).(model.Access), args.Error(1)
}

func (m *MockAccessStore) Block(ctx context.Context, userID uuid.UUID, accessName string) (model.Code, error) {
	args := m.Called(ctx, userID, accessName)
	return args.Get(0).(model.Code), args.Error(1)
}

func (m *MockAccessStore) Delete(ctx context.Context, userID uuid.UUID, accessName string) (model.Code, error) {
	args := m.Called(ctx, userID, accessName)
	return args.Get(0).(model.Code), args.Error(1)
}

// MockServiceConfigStore mocks the ServiceConfigStore interface
type MockServiceConfigStore struct {
	mock.Mock
}

func (m *MockServiceConfigStore) Create(ctx context.Context, cfg model.ServiceConfig) (model.Code, error) {
	args := m.Called(ctx, cfg)
	return args.Get(0).(model.Code), args.Error(1)
}

func (m *MockServiceConfigStore) Get(ctx context.Context, userID uuid.UUID, configName string) (model.ServiceConfig, error) {
	args := m.Called(ctx, userID, configName)
	return args.Get(0).(model.ServiceConfig), args.Error(1)
}

func (m *MockServiceConfigStore) List(ctx context.Context, userID uuid.UUID) ([]model.ServiceConfig, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.ServiceConfig), args.Error(1)
}

func (m *MockServiceConfigStore) UpdateCache(ctx context.Context, userID uuid.UUID, configName string, cached model.CachedLink) (model.Code, error) {
	args := m.Called(ctx, userID, configName, cached)
	return args.Get(0).(model.Code), args.Error(1)
}

func (m *MockServiceConfigStore) Delete(ctx context.Context, userID uuid.UUID, configName string) (model.Code, error) {
	args := m.Called(ctx, userID, configName)
	return args.Get(0).(model.Code), args.Error(1)
}

func (m *MockServiceConfigStore) ListExpiring(ctx context.Context, within time.Duration) ([]model.ExpiringConfig, error) {
	args := m.Called(ctx, within)
	return args.Get(0).([]model.ExpiringConfig), args.Error(1)
}

// MockOrderStore mocks the OrderStore interface
type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) Open(ctx context.Context, cfg model.ServiceConfig, extensionDays int) (model.Code, error) {
	args := m.Called(ctx, cfg, extensionDays)
	return args.Get(0).(model.Code), args.Error(1)
}

func (m *MockOrderStore) Get(ctx context.Context, userID, configID uuid.UUID, status model.OrderStatus) (model.Order, error) {
	args := m.Called(ctx, userID, configID, status)
	return args.Get(0).(model.Order), args.Error(1)
}

func (m *MockOrderStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderStore) ListPaid(ctx context.Context, limit int) ([]model.PaidOrder, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]model.PaidOrder), args.Error(1)
}

func (m *MockOrderStore) UpdateStatus(ctx context.Context, userID, configID uuid.UUID, from, to model.OrderStatus) (model.Code, error) {
	args := m.Called(ctx, userID, configID, from, to)
	return args.Get(0).(model.Code), args.Error(1)
}

func (m *MockOrderStore) Close(ctx context.Context, userID, configID uuid.UUID) (model.Code, error) {
	args := m.Called(ctx, userID, configID)
	return args.Get(0).(model.Code), args.Error(1)
}

func (m *MockOrderStore) Delete(ctx context.Context, userID, configID uuid.UUID, status model.OrderStatus) (model.Code, error) {
	args := m.Called(ctx, userID, configID, status)
	return args.Get(0).(model.Code), args.Error(1)
}

// MockPanel mocks the Panel interface
type MockPanel struct {
	mock.Mock
}

func (m *MockPanel) FreePort(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockPanel) EnsureInbound(ctx context.Context, name string, port int) (int, error) {
	args := m.Called(ctx, name, port)
	return args.Int(0), args.Error(1)
}

func (m *MockPanel) CreateClient(ctx context.Context, inboundID int, email string, expiry time.Time) (uuid.UUID, error) {
	args := m.Called(ctx, inboundID, email, expiry)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockPanel) Client(ctx context.Context, email string) (model.PanelClient, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(model.PanelClient), args.Error(1)
}

func (m *MockPanel) UpdateClientExpiry(ctx context.Context, email string, expiry time.Time) error {
	args := m.Called(ctx, email, expiry)
	return args.Error(0)
}

func (m *MockPanel) DeleteClient(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockPanel) ConnectionLink(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}
