package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lumen-backend/internal/models"
)

type chatFixture struct {
	svc      *MessagingService
	store    *MockConversationStore
	readers  *MockReaderStore
	notifier *recordingNotifier
	pusher   *recordingPusher
	conv     *models.Conversation
}

func newChatFixture() *chatFixture {
	f := &chatFixture{
		store:    new(MockConversationStore),
		readers:  new(MockReaderStore),
		notifier: &recordingNotifier{},
		pusher:   &recordingPusher{online: map[string]bool{}},
		conv:     &models.Conversation{ID: uuid.New(), ClientID: uuid.New(), ReaderID: uuid.New()},
	}
	f.svc = NewMessagingService(f.store, f.readers, f.notifier, zap.NewNop())
	f.svc.SetPusher(f.pusher)
	f.store.On("FindByID", mock.Anything, f.conv.ID).Return(f.conv, nil)
	return f
}

func TestSend_OnlineRecipientGetsFrame(t *testing.T) {
	f := newChatFixture()
	f.pusher.online[f.conv.ReaderID.String()] = true
	f.store.On("AddMessage", mock.Anything, mock.AnythingOfType("*models.Message")).Return(nil)

	m, err := f.svc.Send(context.Background(), f.conv.ClientID, f.conv.ID, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", m.Body)
	assert.Equal(t, 1, f.pusher.sent(f.conv.ReaderID.String(), FrameChatMessage))
	assert.Equal(t, 1, f.pusher.sent(f.conv.ClientID.String(), FrameChatMessage))
	assert.Empty(t, f.notifier.to(f.conv.ReaderID))
}

func TestSend_OfflineRecipientIsNotified(t *testing.T) {
	f := newChatFixture()
	f.store.On("AddMessage", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.Send(context.Background(), f.conv.ReaderID, f.conv.ID, "are you there?")
	require.NoError(t, err)
	assert.Equal(t, []string{models.NotifyMessage}, f.notifier.to(f.conv.ClientID))
}

func TestSend_Rejections(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()

	_, err := f.svc.Send(ctx, uuid.New(), f.conv.ID, "hi")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Send(ctx, f.conv.ClientID, f.conv.ID, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Send(ctx, f.conv.ClientID, f.conv.ID, strings.Repeat("é", maxMessageLength+1))
	assert.ErrorIs(t, err, ErrValidation)

	f.store.AssertNotCalled(t, "AddMessage", mock.Anything, mock.Anything)
}

func TestOpen_RequiresApprovedReader(t *testing.T) {
	f := newChatFixture()
	pending := &models.ReaderProfile{UserID: uuid.New(), Status: models.ReaderPending}
	f.readers.On("FindByID", mock.Anything, pending.UserID).Return(pending, nil)

	_, err := f.svc.Open(context.Background(), uuid.New(), pending.UserID)
	assert.ErrorIs(t, err, ErrNotFound)

	self := uuid.New()
	_, err = f.svc.Open(context.Background(), self, self)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestHandleFrame(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	data, _ := json.Marshal(chatFrame{ConversationID: f.conv.ID})

	require.NoError(t, f.svc.HandleFrame(ctx, f.conv.ClientID.String(), FrameTyping, data))
	assert.Equal(t, 1, f.pusher.sent(f.conv.ReaderID.String(), FrameTyping))

	f.store.On("MarkRead", mock.Anything, f.conv.ID, f.conv.ClientID).Return(int64(2), nil)
	require.NoError(t, f.svc.HandleFrame(ctx, f.conv.ClientID.String(), FrameChatRead, data))
	assert.Equal(t, 1, f.pusher.sent(f.conv.ReaderID.String(), FrameChatRead))

	err := f.svc.HandleFrame(ctx, f.conv.ClientID.String(), "dance", data)
	assert.ErrorIs(t, err, ErrValidation)

	err = f.svc.HandleFrame(ctx, f.conv.ClientID.String(), FrameTyping, json.RawMessage(`{`))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))
	long := strings.Repeat("a", 200)
	assert.Equal(t, strings.Repeat("a", 120)+"...", preview(long))
}
