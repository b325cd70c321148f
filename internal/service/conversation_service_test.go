package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"marketchat/internal/domain"
	"marketchat/internal/service"
)

func TestCreateOrGet(t *testing.T) {
	ctx := context.Background()

	activeItem := &domain.Item{ID: 10, SellerID: 2, Title: "city bike", Status: domain.ItemStatusActive}

	t.Run("BuyerEqualsSeller", func(t *testing.T) {
		svc := service.NewConversationService(new(MockItemRepo), new(MockConversationRepo), newFakeRegistry())

		conv, created, err := svc.CreateOrGet(ctx, 2, 10, 2)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Nil(t, conv)
		assert.False(t, created)
	})

	t.Run("ItemMissing", func(t *testing.T) {
		items := new(MockItemRepo)
		items.On("GetByID", mock.Anything, int64(10)).Return(nil, nil)
		svc := service.NewConversationService(items, new(MockConversationRepo), newFakeRegistry())

		_, _, err := svc.CreateOrGet(ctx, 1, 10, 2)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ItemDeleted", func(t *testing.T) {
		items := new(MockItemRepo)
		items.On("GetByID", mock.Anything, int64(10)).Return(&domain.Item{
			ID: 10, SellerID: 2, Status: domain.ItemStatusDeleted,
		}, nil)
		svc := service.NewConversationService(items, new(MockConversationRepo), newFakeRegistry())

		_, _, err := svc.CreateOrGet(ctx, 1, 10, 2)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("SellerMismatch", func(t *testing.T) {
		items := new(MockItemRepo)
		items.On("GetByID", mock.Anything, int64(10)).Return(activeItem, nil)
		svc := service.NewConversationService(items, new(MockConversationRepo), newFakeRegistry())

		_, _, err := svc.CreateOrGet(ctx, 1, 10, 99)
		assert.ErrorIs(t, err, domain.ErrSellerMismatch)
	})

	t.Run("CreatesOnFirstContact", func(t *testing.T) {
		items := new(MockItemRepo)
		items.On("GetByID", mock.Anything, int64(10)).Return(activeItem, nil)
		convs := new(MockConversationRepo)
		convs.On("FindByTriple", mock.Anything, int64(10), int64(1), int64(2)).Return(nil, nil)
		convs.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.Conversation) bool {
			return c.ItemID == 10 && c.BuyerID == 1 && c.SellerID == 2
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Conversation).ID = 77
		}).Return(nil)
		svc := service.NewConversationService(items, convs, newFakeRegistry())

		conv, created, err := svc.CreateOrGet(ctx, 1, 10, 2)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, int64(77), conv.ID)
		convs.AssertExpectations(t)
	})

	t.Run("IdempotentOnRepeat", func(t *testing.T) {
		items := new(MockItemRepo)
		items.On("GetByID", mock.Anything, int64(10)).Return(activeItem, nil)
		existing := &domain.Conversation{ID: 77, ItemID: 10, BuyerID: 1, SellerID: 2}
		convs := new(MockConversationRepo)
		convs.On("FindByTriple", mock.Anything, int64(10), int64(1), int64(2)).Return(existing, nil)
		svc := service.NewConversationService(items, convs, newFakeRegistry())

		conv, created, err := svc.CreateOrGet(ctx, 1, 10, 2)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, int64(77), conv.ID)
		convs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("LostCreationRaceResolvesToWinner", func(t *testing.T) {
		items := new(MockItemRepo)
		items.On("GetByID", mock.Anything, int64(10)).Return(activeItem, nil)
		winner := &domain.Conversation{ID: 42, ItemID: 10, BuyerID: 1, SellerID: 2}
		convs := new(MockConversationRepo)
		convs.On("FindByTriple", mock.Anything, int64(10), int64(1), int64(2)).Return(nil, nil).Once()
		convs.On("Create", mock.Anything, mock.Anything).Return(assert.AnError)
		convs.On("FindByTriple", mock.Anything, int64(10), int64(1), int64(2)).Return(winner, nil).Once()
		svc := service.NewConversationService(items, convs, newFakeRegistry())

		conv, created, err := svc.CreateOrGet(ctx, 1, 10, 2)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, int64(42), conv.ID)
	})
}

func TestGetConversation(t *testing.T) {
	ctx := context.Background()
	conv := &domain.Conversation{ID: 5, ItemID: 10, BuyerID: 1, SellerID: 2}

	convs := new(MockConversationRepo)
	convs.On("GetByID", mock.Anything, int64(5)).Return(conv, nil)
	convs.On("GetByID", mock.Anything, int64(6)).Return(nil, nil)
	svc := service.NewConversationService(new(MockItemRepo), convs, newFakeRegistry())

	t.Run("Participant", func(t *testing.T) {
		got, err := svc.Get(ctx, 5, 1)
		require.NoError(t, err)
		assert.Equal(t, conv, got)
	})

	t.Run("NonParticipant", func(t *testing.T) {
		_, err := svc.Get(ctx, 5, 99)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := svc.Get(ctx, 6, 1)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestListForUser(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	convs := new(MockConversationRepo)
	convs.On("ListForUser", mock.Anything, int64(1)).Return([]*domain.Conversation{
		{ID: 5, ItemID: 10, BuyerID: 1, SellerID: 2, LastMessageAt: now, BuyerUnread: 3},
		{ID: 6, ItemID: 11, BuyerID: 4, SellerID: 1, LastMessageAt: now, SellerUnread: 1},
	}, nil)

	registry := newFakeRegistry()
	registry.setOnline(2, 1)
	svc := service.NewConversationService(new(MockItemRepo), convs, registry)

	views, err := svc.ListForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, int64(2), views[0].PeerID)
	assert.Equal(t, 3, views[0].Unread)
	assert.True(t, views[0].PeerOnline)

	assert.Equal(t, int64(4), views[1].PeerID)
	assert.Equal(t, 1, views[1].Unread)
	assert.False(t, views[1].PeerOnline)
}
