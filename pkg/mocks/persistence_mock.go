package mocks

import (
	"context"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence. Each
// accessor returns the repository registered with On.
type MockPersistence struct {
	mock.Mock
}

var _ persistence.Persistence = (*MockPersistence)(nil)

func (m *MockPersistence) FlowRepository() persistence.FlowRepository {
	return m.Called().Get(0).(persistence.FlowRepository)
}

func (m *MockPersistence) ContactRepository() persistence.ContactRepository {
	return m.Called().Get(0).(persistence.ContactRepository)
}

func (m *MockPersistence) ConversationRepository() persistence.ConversationRepository {
	return m.Called().Get(0).(persistence.ConversationRepository)
}

func (m *MockPersistence) MessageRepository() persistence.MessageRepository {
	return m.Called().Get(0).(persistence.MessageRepository)
}

func (m *MockPersistence) SettingRepository() persistence.SettingRepository {
	return m.Called().Get(0).(persistence.SettingRepository)
}

func (m *MockPersistence) LeadLogRepository() persistence.LeadLogRepository {
	return m.Called().Get(0).(persistence.LeadLogRepository)
}

func (m *MockPersistence) BehaviorConfigRepository() persistence.BehaviorConfigRepository {
	return m.Called().Get(0).(persistence.BehaviorConfigRepository)
}

func (m *MockPersistence) FlowSessionRepository() persistence.FlowSessionRepository {
	return m.Called().Get(0).(persistence.FlowSessionRepository)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// MockFlowRepository is a mock implementation of persistence.FlowRepository interface.
type MockFlowRepository struct {
	mock.Mock
}

func (m *MockFlowRepository) ListFlows(ctx context.Context, opts persistence.ListFlowsOptions) (*persistence.FlowListResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*persistence.FlowListResult), args.Error(1)
}

func (m *MockFlowRepository) GetByID(ctx context.Context, id string) (*models.Flow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Flow), args.Error(1)
}

func (m *MockFlowRepository) Save(ctx context.Context, flow *models.Flow) error {
	args := m.Called(ctx, flow)

	return args.Error(0)
}

func (m *MockFlowRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockFlowRepository) ActiveByDepartment(ctx context.Context, department models.Department) (*models.Flow, error) {
	args := m.Called(ctx, department)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Flow), args.Error(1)
}

func (m *MockFlowRepository) Activate(ctx context.Context, id string) (*models.Flow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Flow), args.Error(1)
}

// MockConversationRepository is a mock implementation of persistence.ConversationRepository interface.
type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversationRepository) OpenByPhone(
	ctx context.Context,
	phone string,
	department models.Department,
) (*models.Conversation, error) {
	args := m.Called(ctx, phone, department)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversationRepository) Save(ctx context.Context, conversation *models.Conversation) error {
	args := m.Called(ctx, conversation)

	return args.Error(0)
}

func (m *MockConversationRepository) ListAwaitingReply(
	ctx context.Context,
	before time.Time,
	maxAttempts int,
) ([]*models.Conversation, error) {
	args := m.Called(ctx, before, maxAttempts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Conversation), args.Error(1)
}

// MockContactRepository is a mock implementation of persistence.ContactRepository interface.
type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) GetByID(ctx context.Context, id string) (*models.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Contact), args.Error(1)
}

func (m *MockContactRepository) GetByPhone(ctx context.Context, phone string) (*models.Contact, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Contact), args.Error(1)
}

func (m *MockContactRepository) Save(ctx context.Context, contact *models.Contact) error {
	args := m.Called(ctx, contact)

	return args.Error(0)
}
