package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lumen-backend/internal/config"
	"lumen-backend/internal/events"
	"lumen-backend/internal/models"
	"lumen-backend/internal/pricing"
	"lumen-backend/internal/storage"
)

const maxCartQuantity = 10

type MarketplaceService struct {
	products  ProductStore
	market    MarketplaceStore
	readers   ReaderStore
	files     storage.Store
	notifier  Notifier
	publisher Publisher
	cfg       config.MarketplaceConfig
	storeCfg  config.StorageConfig
	log       *zap.Logger
	now       func() time.Time
}

func NewMarketplaceService(products ProductStore, market MarketplaceStore, readers ReaderStore, files storage.Store,
	notifier Notifier, publisher Publisher, cfg config.MarketplaceConfig, storeCfg config.StorageConfig, log *zap.Logger) *MarketplaceService {
	return &MarketplaceService{
		products:  products,
		market:    market,
		readers:   readers,
		files:     files,
		notifier:  notifier,
		publisher: publisher,
		cfg:       cfg,
		storeCfg:  storeCfg,
		log:       log.Named("marketplace"),
		now:       time.Now,
	}
}

type ProductRequest struct {
	Title       string               `json:"title" binding:"required,min=2,max=200"`
	Description string               `json:"description" binding:"max=10000"`
	Kind        models.ProductKind   `json:"kind" binding:"required,oneof=ebook audio video course other"`
	PriceCents  int64                `json:"price_cents" binding:"min=0,max=10000000"`
	Status      models.ProductStatus `json:"status" binding:"omitempty,oneof=draft active archived"`
}

type CouponRequest struct {
	Code           string     `json:"code" binding:"required,min=3,max=40,alphanum"`
	PercentBps     int64      `json:"percent_bps" binding:"min=0,max=10000"`
	AmountOffCents int64      `json:"amount_off_cents" binding:"min=0"`
	MaxRedemptions *int       `json:"max_redemptions" binding:"omitempty,min=1"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

type Download struct {
	URL       string    `json:"url"`
	FileName  string    `json:"file_name"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Products

func (s *MarketplaceService) CreateProduct(ctx context.Context, readerID uuid.UUID, req ProductRequest) (*models.Product, error) {
	reader, err := s.readers.FindByID(ctx, readerID)
	if err != nil {
		return nil, err
	}
	if reader == nil || reader.Status != models.ReaderApproved {
		return nil, ErrForbidden
	}
	p := &models.Product{ReaderID: readerID}
	if err := applyProduct(p, req); err != nil {
		return nil, err
	}
	if p.Status == models.ProductActive {
		return nil, invalid("upload a file before activating the product")
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func applyProduct(p *models.Product, req ProductRequest) error {
	if !req.Kind.Valid() {
		return invalid("unknown kind %q", req.Kind)
	}
	if req.Status != "" && !req.Status.Valid() {
		return invalid("unknown status %q", req.Status)
	}
	if req.PriceCents < 0 {
		return invalid("price_cents must not be negative")
	}
	p.Title = req.Title
	p.Description = req.Description
	p.Kind = req.Kind
	p.PriceCents = req.PriceCents
	if req.Status != "" {
		p.Status = req.Status
	}
	p.Prepare()
	if p.Title == "" {
		return invalid("title must not be blank")
	}
	return nil
}

func (s *MarketplaceService) owned(ctx context.Context, readerID, id uuid.UUID) (*models.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	if p.ReaderID != readerID {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *MarketplaceService) UpdateProduct(ctx context.Context, readerID, id uuid.UUID, req ProductRequest) (*models.Product, error) {
	p, err := s.owned(ctx, readerID, id)
	if err != nil {
		return nil, err
	}
	if err := applyProduct(p, req); err != nil {
		return nil, err
	}
	if p.Status == models.ProductActive && !p.HasFile() {
		return nil, invalid("upload a file before activating the product")
	}
	if err := s.products.Update(ctx, p); err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// ArchiveProduct hides a product from the catalog. Buyers keep their
// downloads.
func (s *MarketplaceService) ArchiveProduct(ctx context.Context, readerID, id uuid.UUID) error {
	p, err := s.owned(ctx, readerID, id)
	if err != nil {
		return err
	}
	p.Status = models.ProductArchived
	return translate(s.products.Update(ctx, p))
}

// Upload stores the product file and replaces any previous one.
func (s *MarketplaceService) Upload(ctx context.Context, readerID, id uuid.UUID, filename, contentType string, size int64, body io.Reader) (*models.Product, error) {
	p, err := s.owned(ctx, readerID, id)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, invalid("file is empty")
	}
	if limit := s.storeCfg.MaxUploadBytes; limit > 0 && size > limit {
		return nil, invalid("file exceeds %d bytes", limit)
	}
	key, err := storage.ProductKey(readerID.String(), p.ID.String(), contentType)
	if err != nil {
		return nil, translate(err)
	}
	if err := s.files.Put(ctx, key, contentType, body, size); err != nil {
		return nil, translate(err)
	}
	previous := p.FileKey
	if err := s.products.SetFile(ctx, p.ID, key, filename, size, contentType); err != nil {
		_ = s.files.Delete(ctx, key)
		return nil, translate(err)
	}
	if previous != "" && previous != key {
		if err := s.files.Delete(ctx, previous); err != nil {
			s.log.Warn("delete old file", zap.String("key", previous), zap.Error(err))
		}
	}
	p.FileKey, p.FileName, p.FileSize, p.ContentType = key, filename, size, contentType
	s.log.Info("product file uploaded", zap.String("product_id", p.ID.String()), zap.Int64("size", size))
	return p, nil
}

func (s *MarketplaceService) Product(ctx context.Context, viewer *models.User, id uuid.UUID) (*models.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	if p.Status != models.ProductActive && (viewer == nil || (viewer.ID != p.ReaderID && viewer.Role != models.RoleAdmin)) {
		return nil, ErrNotFound
	}
	return p, nil
}

// Browse lists active products.
func (s *MarketplaceService) Browse(ctx context.Context, f models.ProductFilter) (models.List[models.Product], error) {
	f.Status = models.ProductActive
	return s.listProducts(ctx, f)
}

// MyProducts lists a reader's own products in any status.
func (s *MarketplaceService) MyProducts(ctx context.Context, readerID uuid.UUID, f models.ProductFilter) (models.List[models.Product], error) {
	f.ReaderID = &readerID
	return s.listProducts(ctx, f)
}

func (s *MarketplaceService) listProducts(ctx context.Context, f models.ProductFilter) (models.List[models.Product], error) {
	if f.Kind != "" && !f.Kind.Valid() {
		return models.List[models.Product]{}, invalid("unknown kind %q", f.Kind)
	}
	if f.Status != "" && !f.Status.Valid() {
		return models.List[models.Product]{}, invalid("unknown status %q", f.Status)
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return models.List[models.Product]{}, invalid("min_price must not exceed max_price")
	}
	items, total, err := s.products.List(ctx, f)
	if err != nil {
		return models.List[models.Product]{}, err
	}
	return models.NewList(items, total, f.Page), nil
}

// Download returns a short-lived link for the product owner or a buyer.
func (s *MarketplaceService) Download(ctx context.Context, user *models.User, id uuid.UUID) (*Download, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	if p.ReaderID != user.ID && user.Role != models.RoleAdmin {
		bought, err := s.products.HasPurchased(ctx, user.ID, id)
		if err != nil {
			return nil, err
		}
		if !bought {
			return nil, ErrForbidden
		}
	}
	if !p.HasFile() {
		return nil, fmt.Errorf("%w: product has no file", ErrNotFound)
	}
	ttl := s.storeCfg.DownloadURLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	url, err := s.files.PresignGet(ctx, p.FileKey, p.FileName, ttl)
	if err != nil {
		return nil, translate(err)
	}
	return &Download{URL: url, FileName: p.FileName, ExpiresAt: s.now().Add(ttl).UTC()}, nil
}

// Cart

// Cart returns the cart with totals. Items that are no longer for sale are
// listed but not priced.
func (s *MarketplaceService) Cart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	items, err := s.market.CartItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	code, err := s.market.CartCoupon(ctx, userID)
	if err != nil {
		return nil, err
	}
	cart, _, err := s.price(ctx, items, code)
	return cart, err
}

// price computes totals for the sellable items. The second result holds the
// items in the same order as the totals lines.
func (s *MarketplaceService) price(ctx context.Context, items []models.CartItem, code string) (*models.Cart, []models.CartItem, error) {
	if items == nil {
		items = []models.CartItem{}
	}
	sellable := make([]models.CartItem, 0, len(items))
	lines := make([]pricing.LineItem, 0, len(items))
	for _, it := range items {
		if it.Status != models.ProductActive {
			continue
		}
		sellable = append(sellable, it)
		lines = append(lines, pricing.LineItem{UnitPrice: it.PriceCents, Quantity: it.Quantity})
	}

	var coupon *pricing.Coupon
	if code != "" {
		c, err := s.market.FindCoupon(ctx, code)
		if err != nil {
			return nil, nil, err
		}
		if c != nil && c.Usable(s.now()) {
			coupon = c.Pricing()
		} else {
			code = ""
		}
	}

	totals, err := pricing.CartTotals(lines, coupon, s.cfg.TaxRateBps)
	if err != nil {
		return nil, nil, translate(err)
	}
	return &models.Cart{Items: items, CouponCode: code, Totals: totals}, sellable, nil
}

func (s *MarketplaceService) SetCartItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 1 || quantity > maxCartQuantity {
		return nil, invalid("quantity must be between 1 and %d", maxCartQuantity)
	}
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.Status != models.ProductActive {
		return nil, ErrNotFound
	}
	if p.ReaderID == userID {
		return nil, invalid("cannot buy your own product")
	}
	if err := s.market.SetCartItem(ctx, userID, productID, quantity); err != nil {
		return nil, translate(err)
	}
	return s.Cart(ctx, userID)
}

func (s *MarketplaceService) RemoveCartItem(ctx context.Context, userID, productID uuid.UUID) (*models.Cart, error) {
	if err := s.market.RemoveCartItem(ctx, userID, productID); err != nil {
		return nil, translate(err)
	}
	return s.Cart(ctx, userID)
}

// ApplyCoupon attaches a coupon to the cart; an empty code removes it.
func (s *MarketplaceService) ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*models.Cart, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		if err := s.market.SetCartCoupon(ctx, userID, nil); err != nil {
			return nil, err
		}
		return s.Cart(ctx, userID)
	}
	c, err := s.market.FindCoupon(ctx, code)
	if err != nil {
		return nil, err
	}
	if c == nil || !c.Usable(s.now()) {
		return nil, invalid("coupon %s is not valid", code)
	}
	if err := s.market.SetCartCoupon(ctx, userID, &code); err != nil {
		return nil, translate(err)
	}
	return s.Cart(ctx, userID)
}

// Checkout charges the buyer the cart total. Each seller earns its
// discounted line amounts minus the platform fee; the fee and the tax go to
// the platform.
func (s *MarketplaceService) Checkout(ctx context.Context, buyer *models.User) (*models.Order, error) {
	items, err := s.market.CartItems(ctx, buyer.ID)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.Status != models.ProductActive {
			return nil, invalid("%q is no longer available, remove it from the cart", it.Title)
		}
	}
	if len(items) == 0 {
		return nil, invalid("cart is empty")
	}
	code, err := s.market.CartCoupon(ctx, buyer.ID)
	if err != nil {
		return nil, err
	}
	cart, sellable, err := s.price(ctx, items, code)
	if err != nil {
		return nil, err
	}
	t := cart.Totals

	order := &models.Order{
		UserID:        buyer.ID,
		SubtotalCents: t.Subtotal,
		DiscountCents: t.Discount,
		TaxCents:      t.Tax,
		TotalCents:    t.Total,
	}
	if cart.CouponCode != "" {
		c := cart.CouponCode
		order.CouponCode = &c
	}

	fee := t.Tax
	earnings := map[uuid.UUID]int64{}
	var sellers []uuid.UUID
	titles := make([]string, 0, len(sellable))
	for i, it := range sellable {
		line := t.Lines[i]
		earning, lineFee := pricing.SplitFee(line.Net, s.cfg.PlatformFeeBps)
		fee += lineFee
		if _, seen := earnings[it.ReaderID]; !seen {
			sellers = append(sellers, it.ReaderID)
		}
		earnings[it.ReaderID] += earning
		titles = append(titles, it.Title)
		order.Items = append(order.Items, models.OrderItem{
			ProductID:      it.ProductID,
			ReaderID:       it.ReaderID,
			Title:          it.Title,
			UnitPriceCents: it.PriceCents,
			Quantity:       it.Quantity,
			DiscountCents:  line.Discount,
			FeeCents:       lineFee,
			EarningCents:   earning,
		})
	}

	entries := []models.LedgerEntry{}
	if t.Total > 0 {
		entries = append(entries, models.LedgerEntry{
			UserID:      buyer.ID,
			Type:        models.TxProductPurchase,
			AmountCents: -t.Total,
			Description: fmt.Sprintf("order of %d item(s)", len(order.Items)),
		})
	}
	for _, id := range sellers {
		if earnings[id] == 0 {
			continue
		}
		entries = append(entries, models.LedgerEntry{
			UserID:      id,
			Type:        models.TxProductEarning,
			AmountCents: earnings[id],
			Description: "product sales",
		})
	}

	if err := s.market.Checkout(ctx, order, entries, fee); err != nil {
		return nil, translate(err)
	}
	s.log.Info("order placed", zap.String("order_id", order.ID.String()), zap.String("user_id", buyer.ID.String()),
		zap.Int64("total_cents", order.TotalCents), zap.Int64("fee_cents", fee))

	s.notifier.Notify(ctx, buyer.ID, models.NotifyOrder, "Order complete",
		"Your purchase is ready to download.", obj{"order_id": order.ID, "total_cents": order.TotalCents})
	for _, id := range sellers {
		s.notifier.Notify(ctx, id, models.NotifyProductSold, "You made a sale",
			fmt.Sprintf("%d cents were added to your balance.", earnings[id]), obj{"order_id": order.ID})
	}
	if err := s.publisher.Publish(ctx, events.OrderCompleted, events.OrderPayload{
		OrderID:    order.ID.String(),
		UserID:     buyer.ID.String(),
		TotalCents: order.TotalCents,
		Titles:     titles,
	}); err != nil {
		s.log.Warn("publish failed", zap.String("event", events.OrderCompleted), zap.Error(err))
	}
	return order, nil
}

func (s *MarketplaceService) Orders(ctx context.Context, userID uuid.UUID, p models.Page) (models.List[models.Order], error) {
	items, total, err := s.market.Orders(ctx, userID, p)
	if err != nil {
		return models.List[models.Order]{}, err
	}
	return models.NewList(items, total, p), nil
}

// Coupons (admin)

func (s *MarketplaceService) CreateCoupon(ctx context.Context, req CouponRequest) (*models.Coupon, error) {
	if (req.PercentBps == 0) == (req.AmountOffCents == 0) {
		return nil, invalid("set exactly one of percent_bps and amount_off_cents")
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, invalid("expires_at must be in the future")
	}
	c := &models.Coupon{
		Code:           req.Code,
		PercentBps:     req.PercentBps,
		AmountOffCents: req.AmountOffCents,
		MaxRedemptions: req.MaxRedemptions,
		ExpiresAt:      req.ExpiresAt,
		Active:         true,
	}
	if err := s.market.CreateCoupon(ctx, c); err != nil {
		return nil, translate(err)
	}
	return c, nil
}

func (s *MarketplaceService) Coupons(ctx context.Context) ([]models.Coupon, error) {
	out, err := s.market.ListCoupons(ctx)
	if out == nil {
		out = []models.Coupon{}
	}
	return out, err
}

func (s *MarketplaceService) SetCouponActive(ctx context.Context, code string, active bool) error {
	return translate(s.market.SetCouponActive(ctx, strings.ToUpper(strings.TrimSpace(code)), active))
}
