package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"marketchat/internal/domain"
)

// Mock repositories

type MockItemRepo struct {
	mock.Mock
}

func (m *MockItemRepo) Create(ctx context.Context, it *domain.Item) error {
	args := m.Called(ctx, it)
	return args.Error(0)
}

func (m *MockItemRepo) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Item), args.Error(1)
}

type MockConversationRepo struct {
	mock.Mock
}

func (m *MockConversationRepo) Create(ctx context.Context, c *domain.Conversation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepo) FindByTriple(ctx context.Context, itemID, buyerID, sellerID int64) (*domain.Conversation, error) {
	args := m.Called(ctx, itemID, buyerID, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Conversation), args.Error(1)
}

type MockMessageRepo struct {
	mock.Mock
}

func (m *MockMessageRepo) Append(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepo) ListForConversation(ctx context.Context, conversationID, beforeID int64, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, conversationID, beforeID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageRepo) MarkAllRead(ctx context.Context, conversationID, userID int64, at time.Time) (int64, error) {
	args := m.Called(ctx, conversationID, userID, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepo) CountUnread(ctx context.Context, conversationID, userID int64) (int, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Int(0), args.Error(1)
}

// fakeRegistry records fan-out calls and simulates presence.

type sentPayload struct {
	UserID  int64
	Payload any
}

type fakeRegistry struct {
	mu        sync.Mutex
	online    map[int64]int // userID -> live connection count
	delivered []sentPayload
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{online: make(map[int64]int)}
}

func (f *fakeRegistry) setOnline(userID int64, conns int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[userID] = conns
}

func (f *fakeRegistry) SendTo(userID int64, payload any) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, sentPayload{UserID: userID, Payload: payload})
	return f.online[userID]
}

func (f *fakeRegistry) IsOnline(userID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[userID] > 0
}

func (f *fakeRegistry) sent() []sentPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentPayload(nil), f.delivered...)
}
