package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"lumen-backend/internal/models"
)

type MockUserStore struct{ mock.Mock }

func (m *MockUserStore) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) FindByFirebaseUID(ctx context.Context, uid string) (*models.User, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) Upsert(ctx context.Context, u *models.User, firstRole models.Role) (bool, error) {
	args := m.Called(ctx, u, firstRole)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) UpdateProfile(ctx context.Context, id uuid.UUID, displayName, avatarURL *string) (*models.User, error) {
	args := m.Called(ctx, id, displayName, avatarURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) UpdateAccess(ctx context.Context, id uuid.UUID, role *models.Role, status *models.UserStatus) (*models.User, error) {
	args := m.Called(ctx, id, role, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockUserStore) List(ctx context.Context, f models.UserFilter) ([]models.User, int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]models.User), args.Get(1).(int64), args.Error(2)
}

func (m *MockUserStore) FindAdmins(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.User), args.Error(1)
}

type MockReaderStore struct{ mock.Mock }

func (m *MockReaderStore) Create(ctx context.Context, p *models.ReaderProfile) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockReaderStore) FindByID(ctx context.Context, id uuid.UUID) (*models.ReaderProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReaderProfile), args.Error(1)
}

func (m *MockReaderStore) Update(ctx context.Context, p *models.ReaderProfile) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockReaderStore) SetOnline(ctx context.Context, id uuid.UUID, online bool) error {
	return m.Called(ctx, id, online).Error(0)
}

func (m *MockReaderStore) SetStatus(ctx context.Context, id uuid.UUID, status models.ReaderStatus) (*models.ReaderProfile, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReaderProfile), args.Error(1)
}

func (m *MockReaderStore) List(ctx context.Context, f models.ReaderFilter) ([]models.ReaderProfile, int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]models.ReaderProfile), args.Get(1).(int64), args.Error(2)
}

type MockAvailabilityStore struct{ mock.Mock }

func (m *MockAvailabilityStore) Rules(ctx context.Context, readerID uuid.UUID) ([]models.AvailabilityRule, error) {
	args := m.Called(ctx, readerID)
	return args.Get(0).([]models.AvailabilityRule), args.Error(1)
}

func (m *MockAvailabilityStore) ReplaceRules(ctx context.Context, readerID uuid.UUID, rules []models.AvailabilityRule) error {
	return m.Called(ctx, readerID, rules).Error(0)
}

func (m *MockAvailabilityStore) Exceptions(ctx context.Context, readerID uuid.UUID, from, to time.Time) ([]models.AvailabilityException, error) {
	args := m.Called(ctx, readerID, from, to)
	return args.Get(0).([]models.AvailabilityException), args.Error(1)
}

func (m *MockAvailabilityStore) AddException(ctx context.Context, e *models.AvailabilityException) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockAvailabilityStore) DeleteException(ctx context.Context, readerID, id uuid.UUID) error {
	return m.Called(ctx, readerID, id).Error(0)
}

type MockSessionStore struct{ mock.Mock }

func (m *MockSessionStore) Create(ctx context.Context, s *models.Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockSessionStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionStore) ActiveBetween(ctx context.Context, readerID uuid.UUID, from, to time.Time) ([]models.Session, error) {
	args := m.Called(ctx, readerID, from, to)
	return args.Get(0).([]models.Session), args.Error(1)
}

func (m *MockSessionStore) List(ctx context.Context, f models.SessionFilter) ([]models.Session, int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]models.Session), args.Get(1).(int64), args.Error(2)
}

func (m *MockSessionStore) Transition(ctx context.Context, s *models.Session, from models.SessionStatus, entries []models.LedgerEntry, feeCents int64) error {
	return m.Called(ctx, s, from, entries, feeCents).Error(0)
}

type MockWalletStore struct{ mock.Mock }

func (m *MockWalletStore) Apply(ctx context.Context, e models.LedgerEntry) (*models.Transaction, error) {
	args := m.Called(ctx, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockWalletStore) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWalletStore) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]models.Transaction), args.Error(1)
}

func (m *MockWalletStore) FindByReference(ctx context.Context, ref string) (*models.Transaction, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockWalletStore) List(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]models.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockWalletStore) Summary(ctx context.Context, from, to time.Time) ([]models.TransactionSummary, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]models.TransactionSummary), args.Error(1)
}

type MockProductStore struct{ mock.Mock }

func (m *MockProductStore) Create(ctx context.Context, p *models.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProductStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductStore) Update(ctx context.Context, p *models.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProductStore) SetFile(ctx context.Context, id uuid.UUID, key, name string, size int64, contentType string) error {
	return m.Called(ctx, id, key, name, size, contentType).Error(0)
}

func (m *MockProductStore) List(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]models.Product), args.Get(1).(int64), args.Error(2)
}

func (m *MockProductStore) HasPurchased(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, productID)
	return args.Bool(0), args.Error(1)
}

type MockMarketplaceStore struct{ mock.Mock }

func (m *MockMarketplaceStore) CartItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.CartItem), args.Error(1)
}

func (m *MockMarketplaceStore) CartCoupon(ctx context.Context, userID uuid.UUID) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockMarketplaceStore) SetCartItem(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	return m.Called(ctx, userID, productID, quantity).Error(0)
}

func (m *MockMarketplaceStore) RemoveCartItem(ctx context.Context, userID, productID uuid.UUID) error {
	return m.Called(ctx, userID, productID).Error(0)
}

func (m *MockMarketplaceStore) SetCartCoupon(ctx context.Context, userID uuid.UUID, code *string) error {
	return m.Called(ctx, userID, code).Error(0)
}

func (m *MockMarketplaceStore) FindCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Coupon), args.Error(1)
}

func (m *MockMarketplaceStore) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockMarketplaceStore) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Coupon), args.Error(1)
}

func (m *MockMarketplaceStore) SetCouponActive(ctx context.Context, code string, active bool) error {
	return m.Called(ctx, code, active).Error(0)
}

func (m *MockMarketplaceStore) Checkout(ctx context.Context, o *models.Order, entries []models.LedgerEntry, feeCents int64) error {
	return m.Called(ctx, o, entries, feeCents).Error(0)
}

func (m *MockMarketplaceStore) Orders(ctx context.Context, userID uuid.UUID, p models.Page) ([]models.Order, int64, error) {
	args := m.Called(ctx, userID, p)
	return args.Get(0).([]models.Order), args.Get(1).(int64), args.Error(2)
}

type MockNotificationStore struct{ mock.Mock }

func (m *MockNotificationStore) Create(ctx context.Context, n *models.Notification) (int64, error) {
	args := m.Called(ctx, n)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationStore) List(ctx context.Context, userID uuid.UUID, f models.NotificationFilter) ([]models.Notification, int64, error) {
	args := m.Called(ctx, userID, f)
	return args.Get(0).([]models.Notification), args.Get(1).(int64), args.Error(2)
}

func (m *MockNotificationStore) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationStore) MarkRead(ctx context.Context, userID, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationStore) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *MockNotificationStore) Delete(ctx context.Context, userID, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationStore) Preferences(ctx context.Context, userID uuid.UUID) (models.NotificationPreferences, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.NotificationPreferences), args.Error(1)
}

func (m *MockNotificationStore) SavePreferences(ctx context.Context, p *models.NotificationPreferences) error {
	return m.Called(ctx, p).Error(0)
}

type MockReviewStore struct{ mock.Mock }

func (m *MockReviewStore) Create(ctx context.Context, rv *models.Review) error {
	return m.Called(ctx, rv).Error(0)
}

func (m *MockReviewStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *MockReviewStore) FindBySession(ctx context.Context, sessionID uuid.UUID) (*models.Review, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *MockReviewStore) List(ctx context.Context, f models.ReviewFilter) ([]models.Review, int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]models.Review), args.Get(1).(int64), args.Error(2)
}

func (m *MockReviewStore) Respond(ctx context.Context, id uuid.UUID, response string) (*models.Review, error) {
	args := m.Called(ctx, id, response)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *MockReviewStore) SetStatus(ctx context.Context, id uuid.UUID, status models.ReviewStatus) (*models.Review, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

// recordingNotifier and recordingPublisher capture side effects without
// expectations.

type notice struct {
	UserID uuid.UUID
	Kind   string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (r *recordingNotifier) Notify(_ context.Context, userID uuid.UUID, kind, _, _ string, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice{UserID: userID, Kind: kind})
}

func (r *recordingNotifier) to(userID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []string
	for _, n := range r.notices {
		if n.UserID == userID {
			kinds = append(kinds, n.Kind)
		}
	}
	return kinds
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingPublisher) Publish(_ context.Context, eventType string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return nil
}

type frame struct {
	UserID string
	Type   string
	Data   any
}

type recordingPusher struct {
	mu     sync.Mutex
	frames []frame
	online map[string]bool
}

func (r *recordingPusher) SendTypedMessage(userID, msgType string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame{UserID: userID, Type: msgType, Data: data})
	return nil
}

func (r *recordingPusher) IsUserConnected(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online[userID]
}

func (r *recordingPusher) sent(userID, msgType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.frames {
		if f.UserID == userID && f.Type == msgType {
			n++
		}
	}
	return n
}

type MockGiftStore struct{ mock.Mock }

func (m *MockGiftStore) Create(ctx context.Context, g *models.Gift) error {
	return m.Called(ctx, g).Error(0)
}

func (m *MockGiftStore) Update(ctx context.Context, g *models.Gift) error {
	return m.Called(ctx, g).Error(0)
}

func (m *MockGiftStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Gift, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Gift), args.Error(1)
}

func (m *MockGiftStore) List(ctx context.Context, activeOnly bool) ([]models.Gift, error) {
	args := m.Called(ctx, activeOnly)
	return args.Get(0).([]models.Gift), args.Error(1)
}

func (m *MockGiftStore) Send(ctx context.Context, gt *models.GiftTransaction, entries []models.LedgerEntry) error {
	return m.Called(ctx, gt, entries).Error(0)
}

func (m *MockGiftStore) Received(ctx context.Context, readerID uuid.UUID, p models.Page) ([]models.GiftTransaction, int64, error) {
	args := m.Called(ctx, readerID, p)
	return args.Get(0).([]models.GiftTransaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockGiftStore) Sent(ctx context.Context, senderID uuid.UUID, p models.Page) ([]models.GiftTransaction, int64, error) {
	args := m.Called(ctx, senderID, p)
	return args.Get(0).([]models.GiftTransaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockGiftStore) Leaderboard(ctx context.Context, since time.Time, limit int) ([]models.LeaderboardEntry, error) {
	args := m.Called(ctx, since, limit)
	return args.Get(0).([]models.LeaderboardEntry), args.Error(1)
}

func (m *MockGiftStore) ReaderNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(map[uuid.UUID]string), args.Error(1)
}

type MockConversationStore struct{ mock.Mock }

func (m *MockConversationStore) Open(ctx context.Context, clientID, readerID uuid.UUID) (*models.Conversation, error) {
	args := m.Called(ctx, clientID, readerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversationStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversationStore) ListForUser(ctx context.Context, userID uuid.UUID, p models.Page) ([]models.Conversation, int64, error) {
	args := m.Called(ctx, userID, p)
	return args.Get(0).([]models.Conversation), args.Get(1).(int64), args.Error(2)
}

func (m *MockConversationStore) Messages(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, before, limit)
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockConversationStore) AddMessage(ctx context.Context, msg *models.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockConversationStore) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Get(0).(int64), args.Error(1)
}

type MockSupportStore struct{ mock.Mock }

func (m *MockSupportStore) Create(ctx context.Context, t *models.Ticket, first *models.TicketMessage) error {
	return m.Called(ctx, t, first).Error(0)
}

func (m *MockSupportStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockSupportStore) List(ctx context.Context, f models.TicketFilter) ([]models.Ticket, int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]models.Ticket), args.Get(1).(int64), args.Error(2)
}

func (m *MockSupportStore) AddMessage(ctx context.Context, msg *models.TicketMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockSupportStore) Update(ctx context.Context, id uuid.UUID, status *models.TicketStatus, assigneeID *uuid.UUID) (*models.Ticket, error) {
	args := m.Called(ctx, id, status, assigneeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}
