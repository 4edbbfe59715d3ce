package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"lumen-backend/internal/pricing"
)

type ProductKind string

const (
	ProductEbook  ProductKind = "ebook"
	ProductAudio  ProductKind = "audio"
	ProductVideo  ProductKind = "video"
	ProductCourse ProductKind = "course"
	ProductOther  ProductKind = "other"
)

func (k ProductKind) Valid() bool {
	switch k {
	case ProductEbook, ProductAudio, ProductVideo, ProductCourse, ProductOther:
		return true
	}
	return false
}

type ProductStatus string

const (
	ProductDraft    ProductStatus = "draft"
	ProductActive   ProductStatus = "active"
	ProductArchived ProductStatus = "archived"
)

func (s ProductStatus) Valid() bool {
	return s == ProductDraft || s == ProductActive || s == ProductArchived
}

// Product is a piece of digital content sold by a reader. The file itself
// lives in object storage under FileKey.
type Product struct {
	ID          uuid.UUID     `json:"id"`
	ReaderID    uuid.UUID     `json:"reader_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Kind        ProductKind   `json:"kind"`
	PriceCents  int64         `json:"price_cents"`
	Status      ProductStatus `json:"status"`
	FileKey     string        `json:"-"`
	FileName    string        `json:"file_name,omitempty"`
	FileSize    int64         `json:"file_size,omitempty"`
	ContentType string        `json:"content_type,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (p *Product) Prepare() {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	if p.Status == "" {
		p.Status = ProductDraft
	}
}

func (p *Product) HasFile() bool {
	return p.FileKey != ""
}

type ProductFilter struct {
	Kind     ProductKind
	ReaderID *uuid.UUID
	MinPrice *int64
	MaxPrice *int64
	Query    string
	Status   ProductStatus
	Page
}

type CartItem struct {
	ProductID  uuid.UUID     `json:"product_id"`
	ReaderID   uuid.UUID     `json:"reader_id"`
	Title      string        `json:"title"`
	PriceCents int64         `json:"price_cents"`
	Status     ProductStatus `json:"-"`
	Quantity   int           `json:"quantity"`
	AddedAt    time.Time     `json:"added_at"`
}

type Cart struct {
	Items      []CartItem     `json:"items"`
	CouponCode string         `json:"coupon_code,omitempty"`
	Totals     pricing.Totals `json:"totals"`
}

type Coupon struct {
	ID             uuid.UUID  `json:"id"`
	Code           string     `json:"code"`
	PercentBps     int64      `json:"percent_bps"`
	AmountOffCents int64      `json:"amount_off_cents"`
	MaxRedemptions *int       `json:"max_redemptions,omitempty"`
	Redemptions    int        `json:"redemptions"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (c *Coupon) Prepare() {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
}

func (c *Coupon) Usable(now time.Time) bool {
	if !c.Active {
		return false
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return false
	}
	if c.MaxRedemptions != nil && c.Redemptions >= *c.MaxRedemptions {
		return false
	}
	return true
}

func (c *Coupon) Pricing() *pricing.Coupon {
	return &pricing.Coupon{Code: c.Code, PercentBps: c.PercentBps, AmountOff: c.AmountOffCents}
}

type Order struct {
	ID            uuid.UUID   `json:"id"`
	UserID        uuid.UUID   `json:"user_id"`
	SubtotalCents int64       `json:"subtotal_cents"`
	DiscountCents int64       `json:"discount_cents"`
	TaxCents      int64       `json:"tax_cents"`
	TotalCents    int64       `json:"total_cents"`
	CouponCode    *string     `json:"coupon_code,omitempty"`
	Status        string      `json:"status"`
	Items         []OrderItem `json:"items"`
	CreatedAt     time.Time   `json:"created_at"`
}

func (o *Order) Prepare() {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = "paid"
	}
	for i := range o.Items {
		if o.Items[i].ID == uuid.Nil {
			o.Items[i].ID = uuid.New()
		}
		o.Items[i].OrderID = o.ID
	}
}

type OrderItem struct {
	ID             uuid.UUID `json:"id"`
	OrderID        uuid.UUID `json:"order_id"`
	ProductID      uuid.UUID `json:"product_id"`
	ReaderID       uuid.UUID `json:"reader_id"`
	Title          string    `json:"title"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
	DiscountCents  int64     `json:"discount_cents"`
	FeeCents       int64     `json:"fee_cents"`
	EarningCents   int64     `json:"earning_cents"`
}
