package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"lumen-backend/internal/models"
)

// The stores below are implemented by the repositories package. Services
// depend on these narrow interfaces so they can be tested with mocks.

type UserStore interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByFirebaseUID(ctx context.Context, uid string) (*models.User, error)
	Upsert(ctx context.Context, u *models.User, firstRole models.Role) (bool, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, displayName, avatarURL *string) (*models.User, error)
	UpdateAccess(ctx context.Context, id uuid.UUID, role *models.Role, status *models.UserStatus) (*models.User, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f models.UserFilter) ([]models.User, int64, error)
	FindAdmins(ctx context.Context) ([]models.User, error)
}

type ReaderStore interface {
	Create(ctx context.Context, p *models.ReaderProfile) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ReaderProfile, error)
	Update(ctx context.Context, p *models.ReaderProfile) error
	SetOnline(ctx context.Context, id uuid.UUID, online bool) error
	SetStatus(ctx context.Context, id uuid.UUID, status models.ReaderStatus) (*models.ReaderProfile, error)
	List(ctx context.Context, f models.ReaderFilter) ([]models.ReaderProfile, int64, error)
}

type AvailabilityStore interface {
	Rules(ctx context.Context, readerID uuid.UUID) ([]models.AvailabilityRule, error)
	ReplaceRules(ctx context.Context, readerID uuid.UUID, rules []models.AvailabilityRule) error
	Exceptions(ctx context.Context, readerID uuid.UUID, from, to time.Time) ([]models.AvailabilityException, error)
	AddException(ctx context.Context, e *models.AvailabilityException) error
	DeleteException(ctx context.Context, readerID, id uuid.UUID) error
}

type SessionStore interface {
	Create(ctx context.Context, s *models.Session) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ActiveBetween(ctx context.Context, readerID uuid.UUID, from, to time.Time) ([]models.Session, error)
	List(ctx context.Context, f models.SessionFilter) ([]models.Session, int64, error)
	Transition(ctx context.Context, s *models.Session, from models.SessionStatus, entries []models.LedgerEntry, feeCents int64) error
}

type WalletStore interface {
	Apply(ctx context.Context, e models.LedgerEntry) (*models.Transaction, error)
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error)
	FindByReference(ctx context.Context, ref string) (*models.Transaction, error)
	List(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, int64, error)
	Summary(ctx context.Context, from, to time.Time) ([]models.TransactionSummary, error)
}

type ConversationStore interface {
	Open(ctx context.Context, clientID, readerID uuid.UUID) (*models.Conversation, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID, p models.Page) ([]models.Conversation, int64, error)
	Messages(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]models.Message, error)
	AddMessage(ctx context.Context, m *models.Message) error
	MarkRead(ctx context.Context, conversationID, userID uuid.UUID) (int64, error)
}

type ProductStore interface {
	Create(ctx context.Context, p *models.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Update(ctx context.Context, p *models.Product) error
	SetFile(ctx context.Context, id uuid.UUID, key, name string, size int64, contentType string) error
	List(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, error)
	HasPurchased(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

type MarketplaceStore interface {
	CartItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	CartCoupon(ctx context.Context, userID uuid.UUID) (string, error)
	SetCartItem(ctx context.Context, userID, productID uuid.UUID, quantity int) error
	RemoveCartItem(ctx context.Context, userID, productID uuid.UUID) error
	SetCartCoupon(ctx context.Context, userID uuid.UUID, code *string) error
	FindCoupon(ctx context.Context, code string) (*models.Coupon, error)
	CreateCoupon(ctx context.Context, c *models.Coupon) error
	ListCoupons(ctx context.Context) ([]models.Coupon, error)
	SetCouponActive(ctx context.Context, code string, active bool) error
	Checkout(ctx context.Context, o *models.Order, entries []models.LedgerEntry, feeCents int64) error
	Orders(ctx context.Context, userID uuid.UUID, p models.Page) ([]models.Order, int64, error)
}

type GiftStore interface {
	Create(ctx context.Context, g *models.Gift) error
	Update(ctx context.Context, g *models.Gift) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Gift, error)
	List(ctx context.Context, activeOnly bool) ([]models.Gift, error)
	Send(ctx context.Context, gt *models.GiftTransaction, entries []models.LedgerEntry) error
	Received(ctx context.Context, readerID uuid.UUID, p models.Page) ([]models.GiftTransaction, int64, error)
	Sent(ctx context.Context, senderID uuid.UUID, p models.Page) ([]models.GiftTransaction, int64, error)
	Leaderboard(ctx context.Context, since time.Time, limit int) ([]models.LeaderboardEntry, error)
	ReaderNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

type ReviewStore interface {
	Create(ctx context.Context, rv *models.Review) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	FindBySession(ctx context.Context, sessionID uuid.UUID) (*models.Review, error)
	List(ctx context.Context, f models.ReviewFilter) ([]models.Review, int64, error)
	Respond(ctx context.Context, id uuid.UUID, response string) (*models.Review, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.ReviewStatus) (*models.Review, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) (int64, error)
	List(ctx context.Context, userID uuid.UUID, f models.NotificationFilter) ([]models.Notification, int64, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) (int64, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, int64, error)
	Delete(ctx context.Context, userID, id uuid.UUID) (int64, error)
	Preferences(ctx context.Context, userID uuid.UUID) (models.NotificationPreferences, error)
	SavePreferences(ctx context.Context, p *models.NotificationPreferences) error
}

type SupportStore interface {
	Create(ctx context.Context, t *models.Ticket, first *models.TicketMessage) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	List(ctx context.Context, f models.TicketFilter) ([]models.Ticket, int64, error)
	AddMessage(ctx context.Context, m *models.TicketMessage) error
	Update(ctx context.Context, id uuid.UUID, status *models.TicketStatus, assigneeID *uuid.UUID) (*models.Ticket, error)
}

type AnalyticsStore interface {
	Overview(ctx context.Context, from, to time.Time) (*models.Overview, error)
	Revenue(ctx context.Context, from, to time.Time, interval string) ([]models.RevenuePoint, error)
	TopReaders(ctx context.Context, from, to time.Time, limit int) ([]models.TopReader, error)
}

// Counters is the Redis side: notification unread counters and the gift
// leaderboard.
type Counters interface {
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, bool, error)
	SetUnreadCount(ctx context.Context, userID uuid.UUID, n int64) error
	DeleteUnreadCount(ctx context.Context, userID uuid.UUID) error
	AddGift(ctx context.Context, readerID uuid.UUID, cents int64) error
	LeaderboardSeeded(ctx context.Context) (bool, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	SeedLeaderboard(ctx context.Context, entries []models.LeaderboardEntry) error
}

// Pusher delivers realtime frames to connected users. ws.Hub implements it.
type Pusher interface {
	SendTypedMessage(userID, msgType string, data any) error
}

// Presence is implemented by pushers that know who is connected.
type Presence interface {
	IsUserConnected(userID string) bool
}

// Publisher emits domain events. events.Publisher implementations satisfy it.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Notifier is what other services use to tell a user something happened.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind, title, body string, data map[string]any)
}

type nopPusher struct{}

func (nopPusher) SendTypedMessage(string, string, any) error { return nil }
