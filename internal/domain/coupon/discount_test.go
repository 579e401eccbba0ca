package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestApplyDiscount(t *testing.T) {
	tests := []struct {
		name    string
		total   string
		percent string
		want    string
	}{
		{name: "twenty percent", total: "150", percent: "20", want: "120"},
		{name: "zero percent", total: "150", percent: "0", want: "150"},
		{name: "full discount", total: "99.99", percent: "100", want: "0"},
		{name: "fractional percent", total: "200", percent: "12.5", want: "175"},
		{name: "zero total", total: "0", percent: "50", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyDiscount(
				decimal.RequireFromString(tt.total),
				decimal.RequireFromString(tt.percent),
			)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got),
				"expected %s, got %s", tt.want, got)
		})
	}
}

func TestApplyDiscount_NotCompounding(t *testing.T) {
	total := decimal.NewFromInt(100)
	once := ApplyDiscount(total, decimal.NewFromInt(10))

	// A single application takes exactly ten off, not 10% of 10% etc.
	assert.True(t, decimal.NewFromInt(90).Equal(once))
}

func TestValidPercent(t *testing.T) {
	for _, tt := range []struct {
		percent string
		want    bool
	}{
		{percent: "0", want: true},
		{percent: "20", want: true},
		{percent: "12.5", want: true},
		{percent: "100", want: true},
		{percent: "100.01", want: false},
		{percent: "150", want: false},
		{percent: "-1", want: false},
	} {
		t.Run(tt.percent, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidPercent(decimal.RequireFromString(tt.percent)))
		})
	}
}
