package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"marketchat/internal/domain"
	"marketchat/internal/moderation"
	"marketchat/internal/service"
	"marketchat/internal/wire"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newMessageService(convs *MockConversationRepo, msgs *MockMessageRepo, registry *fakeRegistry) *service.MessageService {
	return service.NewMessageService(convs, msgs, moderation.NewBlocklistChecker(nil), registry, testLogger)
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()
	conv := &domain.Conversation{ID: 5, ItemID: 10, BuyerID: 1, SellerID: 2}

	t.Run("EmptyContent", func(t *testing.T) {
		msgs := new(MockMessageRepo)
		svc := newMessageService(new(MockConversationRepo), msgs, newFakeRegistry())

		_, _, err := svc.Send(ctx, 1, 5, "   \n ")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		msgs.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("OversizedContent", func(t *testing.T) {
		svc := newMessageService(new(MockConversationRepo), new(MockMessageRepo), newFakeRegistry())

		_, _, err := svc.Send(ctx, 1, 5, strings.Repeat("a", service.MaxContentLength+1))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("MaxLengthContentAccepted", func(t *testing.T) {
		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, int64(5)).Return(conv, nil)
		msgs := new(MockMessageRepo)
		msgs.On("Append", mock.Anything, mock.Anything).Return(nil)
		svc := newMessageService(convs, msgs, newFakeRegistry())

		_, _, err := svc.Send(ctx, 1, 5, strings.Repeat("a", service.MaxContentLength))
		require.NoError(t, err)
	})

	t.Run("ModerationReject", func(t *testing.T) {
		msgs := new(MockMessageRepo)
		svc := newMessageService(new(MockConversationRepo), msgs, newFakeRegistry())

		_, _, err := svc.Send(ctx, 1, 5, "just pay by Wire Transfer please")
		var modErr *domain.ModerationError
		require.ErrorAs(t, err, &modErr)
		assert.Equal(t, "wire transfer", modErr.Term)
		msgs.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("ConversationMissing", func(t *testing.T) {
		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, int64(5)).Return(nil, nil)
		svc := newMessageService(convs, new(MockMessageRepo), newFakeRegistry())

		_, _, err := svc.Send(ctx, 1, 5, "hello")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("NonParticipant", func(t *testing.T) {
		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, int64(5)).Return(conv, nil)
		svc := newMessageService(convs, new(MockMessageRepo), newFakeRegistry())

		_, _, err := svc.Send(ctx, 99, 5, "hello")
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("PersistsAndFansOut", func(t *testing.T) {
		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, int64(5)).Return(conv, nil)
		msgs := new(MockMessageRepo)
		msgs.On("Append", mock.Anything, mock.MatchedBy(func(m *domain.Message) bool {
			return m.ConversationID == 5 && m.SenderID == 1 && m.Content == "Is this still available?"
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Message).ID = 301
		}).Return(nil)
		registry := newFakeRegistry()
		registry.setOnline(2, 2)
		svc := newMessageService(convs, msgs, registry)

		msg, delivered, err := svc.Send(ctx, 1, 5, "Is this still available?")
		require.NoError(t, err)
		assert.Equal(t, int64(301), msg.ID)
		assert.Equal(t, 2, delivered)

		sent := registry.sent()
		require.Len(t, sent, 1)
		assert.Equal(t, int64(2), sent[0].UserID)
		env := sent[0].Payload.(wire.Envelope)
		assert.Equal(t, wire.TypeNewMessage, env.Type)
		assert.Equal(t, int64(5), env.ConversationID)
		assert.Equal(t, int64(1), env.SenderID)
		require.NotNil(t, env.Message)
		assert.Equal(t, "Is this still available?", env.Message.Content)
	})

	t.Run("RecipientOfflineIsNotAnError", func(t *testing.T) {
		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, int64(5)).Return(conv, nil)
		msgs := new(MockMessageRepo)
		msgs.On("Append", mock.Anything, mock.Anything).Return(nil)
		svc := newMessageService(convs, msgs, newFakeRegistry())

		msg, delivered, err := svc.Send(ctx, 2, 5, "still there?")
		require.NoError(t, err)
		assert.NotNil(t, msg)
		assert.Zero(t, delivered)
	})

	t.Run("StoreFailureAbortsFanOut", func(t *testing.T) {
		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, int64(5)).Return(conv, nil)
		msgs := new(MockMessageRepo)
		msgs.On("Append", mock.Anything, mock.Anything).Return(errors.New("disk full"))
		registry := newFakeRegistry()
		registry.setOnline(2, 1)
		svc := newMessageService(convs, msgs, registry)

		_, _, err := svc.Send(ctx, 1, 5, "hello")
		require.Error(t, err)
		assert.Empty(t, registry.sent())
	})
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	conv := &domain.Conversation{ID: 5, ItemID: 10, BuyerID: 1, SellerID: 2}

	t.Run("NotifiesPeerWhenAnythingFlipped", func(t *testing.T) {
		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, int64(5)).Return(conv, nil)
		msgs := new(MockMessageRepo)
		msgs.On("MarkAllRead", mock.Anything, int64(5), int64(2), mock.Anything).Return(int64(3), nil)
		registry := newFakeRegistry()
		registry.setOnline(1, 1)
		svc := newMessageService(convs, msgs, registry)

		require.NoError(t, svc.MarkRead(ctx, 2, 5))

		sent := registry.sent()
		require.Len(t, sent, 1)
		assert.Equal(t, int64(1), sent[0].UserID)
		env := sent[0].Payload.(wire.Envelope)
		assert.Equal(t, wire.TypeMarkRead, env.Type)
		assert.Equal(t, int64(2), env.SenderID)
	})

	t.Run("RepeatIsSilentNoOp", func(t *testing.T) {
		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, int64(5)).Return(conv, nil)
		msgs := new(MockMessageRepo)
		msgs.On("MarkAllRead", mock.Anything, int64(5), int64(2), mock.Anything).Return(int64(0), nil)
		registry := newFakeRegistry()
		svc := newMessageService(convs, msgs, registry)

		require.NoError(t, svc.MarkRead(ctx, 2, 5))
		assert.Empty(t, registry.sent())
	})

	t.Run("NonParticipant", func(t *testing.T) {
		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, int64(5)).Return(conv, nil)
		svc := newMessageService(convs, new(MockMessageRepo), newFakeRegistry())

		assert.ErrorIs(t, svc.MarkRead(ctx, 99, 5), domain.ErrForbidden)
	})
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	conv := &domain.Conversation{ID: 5, ItemID: 10, BuyerID: 1, SellerID: 2}

	t.Run("ClampsLimitToPageSize", func(t *testing.T) {
		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, int64(5)).Return(conv, nil)
		msgs := new(MockMessageRepo)
		msgs.On("ListForConversation", mock.Anything, int64(5), int64(0), 50).Return([]*domain.Message{}, nil)
		svc := newMessageService(convs, msgs, newFakeRegistry())

		_, err := svc.History(ctx, 1, 5, 0, 5000)
		require.NoError(t, err)
		msgs.AssertExpectations(t)
	})

	t.Run("NonParticipant", func(t *testing.T) {
		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, int64(5)).Return(conv, nil)
		svc := newMessageService(convs, new(MockMessageRepo), newFakeRegistry())

		_, err := svc.History(ctx, 99, 5, 0, 10)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestTypingRelay(t *testing.T) {
	ctx := context.Background()
	conv := &domain.Conversation{ID: 5, ItemID: 10, BuyerID: 1, SellerID: 2}

	t.Run("ForwardedWhenPeerOnline", func(t *testing.T) {
		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, int64(5)).Return(conv, nil)
		registry := newFakeRegistry()
		registry.setOnline(2, 1)
		relay := service.NewPresenceRelay(convs, registry)

		require.NoError(t, relay.Typing(ctx, 1, 5, true))

		sent := registry.sent()
		require.Len(t, sent, 1)
		env := sent[0].Payload.(wire.Envelope)
		assert.Equal(t, wire.TypeTyping, env.Type)
		assert.Equal(t, int64(1), env.SenderID)
		assert.True(t, env.IsTyping)
	})

	t.Run("DroppedWhenPeerOffline", func(t *testing.T) {
		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, int64(5)).Return(conv, nil)
		registry := newFakeRegistry()
		relay := service.NewPresenceRelay(convs, registry)

		require.NoError(t, relay.Typing(ctx, 1, 5, true))
		assert.Empty(t, registry.sent())
	})

	t.Run("NonParticipant", func(t *testing.T) {
		convs := new(MockConversationRepo)
		convs.On("GetByID", mock.Anything, int64(5)).Return(conv, nil)
		relay := service.NewPresenceRelay(convs, newFakeRegistry())

		assert.ErrorIs(t, relay.Typing(ctx, 99, 5, true), domain.ErrForbidden)
	})
}
