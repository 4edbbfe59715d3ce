package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentRoundsHalfUp(t *testing.T) {
	assert.Equal(t, int64(200), Percent(1000, 2000))
	assert.Equal(t, int64(1), Percent(5, 1000))   // 0.5 -> 1
	assert.Equal(t, int64(0), Percent(4, 1000))   // 0.4 -> 0
	assert.Equal(t, int64(83), Percent(999, 825)) // 82.4175
}

func TestSplitFeeAddsUp(t *testing.T) {
	for _, gross := range []int64{0, 1, 99, 1000, 123457} {
		earning, fee := SplitFee(gross, 2000)
		assert.Equal(t, gross, earning+fee)
	}
	earning, fee := SplitFee(4500, 2000)
	assert.Equal(t, int64(3600), earning)
	assert.Equal(t, int64(900), fee)
}

func TestSessionPrice(t *testing.T) {
	p, err := SessionPrice(299, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(8970), p)

	_, err = SessionPrice(299, 0)
	assert.Error(t, err)
	_, err = SessionPrice(-1, 10)
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestCartTotals(t *testing.T) {
	tests := []struct {
		name   string
		items  []LineItem
		coupon *Coupon
		taxBps int64
		want   Totals
	}{
		{
			name:  "no coupon no tax",
			items: []LineItem{{UnitPrice: 1500, Quantity: 2}, {UnitPrice: 999, Quantity: 1}},
			want:  Totals{Subtotal: 3999, Total: 3999},
		},
		{
			name:   "percent coupon and tax",
			items:  []LineItem{{UnitPrice: 2000, Quantity: 1}, {UnitPrice: 1000, Quantity: 3}},
			coupon: &Coupon{Code: "TEN", PercentBps: 1000},
			taxBps: 800,
			// subtotal 5000, discount 500, tax 8% of 4500 = 360
			want: Totals{Subtotal: 5000, Discount: 500, Tax: 360, Total: 4860, Coupon: "TEN"},
		},
		{
			name:   "fixed coupon capped at subtotal",
			items:  []LineItem{{UnitPrice: 300, Quantity: 1}},
			coupon: &Coupon{Code: "BIG", AmountOff: 1000},
			taxBps: 1000,
			want:   Totals{Subtotal: 300, Discount: 300, Tax: 0, Total: 0, Coupon: "BIG"},
		},
		{
			name:  "empty cart",
			items: nil,
			want:  Totals{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CartTotals(tt.items, tt.coupon, tt.taxBps)
			require.NoError(t, err)

			assert.Equal(t, tt.want.Subtotal, got.Subtotal)
			assert.Equal(t, tt.want.Discount, got.Discount)
			assert.Equal(t, tt.want.Tax, got.Tax)
			assert.Equal(t, tt.want.Total, got.Total)
			assert.Equal(t, tt.want.Coupon, got.Coupon)

			// total = Σ(price × qty) − discount + tax
			var sum int64
			for _, it := range tt.items {
				sum += it.UnitPrice * int64(it.Quantity)
			}
			assert.Equal(t, sum-got.Discount+got.Tax, got.Total)
		})
	}
}

func TestCartTotalsAllocatesDiscountExactly(t *testing.T) {
	items := []LineItem{
		{UnitPrice: 333, Quantity: 1},
		{UnitPrice: 333, Quantity: 1},
		{UnitPrice: 334, Quantity: 1},
	}

	got, err := CartTotals(items, &Coupon{Code: "X", AmountOff: 100}, 0)
	require.NoError(t, err)

	var discount, net int64
	for _, l := range got.Lines {
		discount += l.Discount
		net += l.Net
		assert.Equal(t, l.Gross-l.Discount, l.Net)
	}
	assert.Equal(t, int64(100), discount)
	assert.Equal(t, got.Subtotal-got.Discount, net)
}

func TestCartTotalsRejectsBadInput(t *testing.T) {
	_, err := CartTotals([]LineItem{{UnitPrice: 100, Quantity: 0}}, nil, 0)
	assert.ErrorIs(t, err, ErrBadQuantity)

	_, err = CartTotals([]LineItem{{UnitPrice: -1, Quantity: 1}}, nil, 0)
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = CartTotals(nil, nil, 20000)
	assert.ErrorIs(t, err, ErrBadRate)

	_, err = CartTotals([]LineItem{{UnitPrice: 100, Quantity: 1}}, &Coupon{PercentBps: 12000}, 0)
	assert.ErrorIs(t, err, ErrBadRate)
}
