// Package pricing holds the money arithmetic shared by bookings, gifts and
// checkout. Amounts are integer cents; rates are basis points.
package pricing

import (
	"errors"
	"fmt"
)

const bpsDenominator = 10000

var (
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrBadQuantity    = errors.New("quantity must be at least 1")
	ErrBadRate        = errors.New("rate must be between 0 and 10000 basis points")
)

// Percent returns amount * bps / 10000 rounded half-up.
func Percent(amount, bps int64) int64 {
	return (amount*bps + bpsDenominator/2) / bpsDenominator
}

// SplitFee divides a gross amount into the seller's earning and the platform
// fee. The two always add up to gross.
func SplitFee(gross, feeBps int64) (earning, fee int64) {
	fee = Percent(gross, feeBps)
	return gross - fee, fee
}

// SessionPrice is the per-minute rate times the booked minutes.
func SessionPrice(ratePerMinute int64, minutes int) (int64, error) {
	if ratePerMinute < 0 {
		return 0, ErrNegativeAmount
	}
	if minutes <= 0 {
		return 0, fmt.Errorf("minutes must be positive, got %d", minutes)
	}
	return ratePerMinute * int64(minutes), nil
}

type LineItem struct {
	UnitPrice int64
	Quantity  int
}

// Coupon discounts either by a percentage or by a fixed amount. When both are
// set the percentage is applied first.
type Coupon struct {
	Code       string
	PercentBps int64
	AmountOff  int64
}

type Line struct {
	Gross    int64 `json:"gross_cents"`
	Discount int64 `json:"discount_cents"`
	Net      int64 `json:"net_cents"`
}

type Totals struct {
	Subtotal int64  `json:"subtotal_cents"`
	Discount int64  `json:"discount_cents"`
	Tax      int64  `json:"tax_cents"`
	Total    int64  `json:"total_cents"`
	Coupon   string `json:"coupon,omitempty"`
	Lines    []Line `json:"lines"`
}

// CartTotals computes total = Σ(price × qty) − discount + tax. The discount
// is capped at the subtotal and spread over the lines in proportion to their
// gross amount; tax is charged on the discounted subtotal.
func CartTotals(items []LineItem, coupon *Coupon, taxBps int64) (Totals, error) {
	if taxBps < 0 || taxBps > bpsDenominator {
		return Totals{}, ErrBadRate
	}

	t := Totals{Lines: make([]Line, len(items))}
	for i, it := range items {
		if it.UnitPrice < 0 {
			return Totals{}, ErrNegativeAmount
		}
		if it.Quantity < 1 {
			return Totals{}, ErrBadQuantity
		}
		gross := it.UnitPrice * int64(it.Quantity)
		t.Lines[i] = Line{Gross: gross, Net: gross}
		t.Subtotal += gross
	}

	if coupon != nil {
		d, err := couponDiscount(*coupon, t.Subtotal)
		if err != nil {
			return Totals{}, err
		}
		t.Discount = d
		t.Coupon = coupon.Code
		allocate(t.Lines, d, t.Subtotal)
	}

	t.Tax = Percent(t.Subtotal-t.Discount, taxBps)
	t.Total = t.Subtotal - t.Discount + t.Tax
	return t, nil
}

func couponDiscount(c Coupon, subtotal int64) (int64, error) {
	if c.PercentBps < 0 || c.PercentBps > bpsDenominator {
		return 0, ErrBadRate
	}
	if c.AmountOff < 0 {
		return 0, ErrNegativeAmount
	}
	d := Percent(subtotal, c.PercentBps) + c.AmountOff
	if d > subtotal {
		d = subtotal
	}
	return d, nil
}

// allocate spreads discount across lines proportionally; rounding leftovers
// go to the largest line so the parts sum exactly.
func allocate(lines []Line, discount, subtotal int64) {
	if discount == 0 || subtotal == 0 {
		return
	}
	var given int64
	largest := 0
	for i := range lines {
		share := discount * lines[i].Gross / subtotal
		lines[i].Discount = share
		given += share
		if lines[i].Gross > lines[largest].Gross {
			largest = i
		}
	}
	lines[largest].Discount += discount - given
	for i := range lines {
		lines[i].Net = lines[i].Gross - lines[i].Discount
	}
}
