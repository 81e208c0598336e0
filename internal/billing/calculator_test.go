package billing_test

import (
	"testing"

	"github.com/cantina-pos/api/internal/billing"
	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func TestComputeTotals_TwoLineItems(t *testing.T) {
	items := []billing.LineItem{
		{UnitPrice: dec(t, "5.00"), Quantity: 2},
		{UnitPrice: dec(t, "3.50"), Quantity: 1},
	}

	totals := billing.ComputeTotals(items, decimal.NewFromInt(16))

	if got := totals.Subtotal.StringFixed(2); got != "13.50" {
		t.Errorf("subtotal: got %s, want 13.50", got)
	}
	if got := totals.Tax.StringFixed(2); got != "2.16" {
		t.Errorf("tax: got %s, want 2.16", got)
	}
	if got := totals.Total.StringFixed(2); got != "15.66" {
		t.Errorf("total: got %s, want 15.66", got)
	}
}

func TestComputeTotals_Empty(t *testing.T) {
	totals := billing.ComputeTotals(nil, decimal.NewFromInt(16))
	if !totals.Subtotal.IsZero() || !totals.Tax.IsZero() || !totals.Total.IsZero() {
		t.Errorf("expected all zero, got %+v", totals)
	}
}

func TestComputeTotals_RoundsAtOutputOnly(t *testing.T) {
	// Three items at 0.333 each: raw subtotal 0.999, tax 0.15984.
	// Rounding per line first would give a different subtotal.
	items := []billing.LineItem{
		{UnitPrice: dec(t, "0.333"), Quantity: 3},
	}

	totals := billing.ComputeTotals(items, decimal.NewFromInt(16))

	if got := totals.Subtotal.StringFixed(2); got != "1.00" {
		t.Errorf("subtotal: got %s, want 1.00", got)
	}
	if got := totals.Tax.StringFixed(2); got != "0.16" {
		t.Errorf("tax: got %s, want 0.16", got)
	}
	if got := totals.Total.StringFixed(2); got != "1.16" {
		t.Errorf("total: got %s, want 1.16", got)
	}
}

func TestSuggestedTips_OnSubtotalOnly(t *testing.T) {
	cfg := billing.TipConfig{
		Options:     billing.DefaultTipOptions,
		AllowCustom: true,
	}

	subtotal := dec(t, "50.00")
	tax := dec(t, "8.00")
	tips := billing.SuggestedTips(subtotal, tax, cfg)

	if len(tips) != 3 {
		t.Fatalf("expected 3 suggestions, got %d", len(tips))
	}

	wantAmounts := []string{"5.00", "7.50", "10.00"}
	wantTotals := []string{"63.00", "65.50", "68.00"}
	for i, tip := range tips {
		if got := tip.Amount.StringFixed(2); got != wantAmounts[i] {
			t.Errorf("option %d amount: got %s, want %s", i, got, wantAmounts[i])
		}
		if got := tip.TotalWithTip.StringFixed(2); got != wantTotals[i] {
			t.Errorf("option %d total with tip: got %s, want %s", i, got, wantTotals[i])
		}
	}
}

func TestResolveTip_PercentOnly(t *testing.T) {
	tip := billing.ResolveTip(dec(t, "50.00"), decimal.Zero, decimal.NewFromInt(15), false, true)

	if got := tip.Amount.StringFixed(2); got != "7.50" {
		t.Errorf("amount: got %s, want 7.50", got)
	}
	if !tip.Percent.Equal(decimal.NewFromInt(15)) {
		t.Errorf("percent: got %s, want 15", tip.Percent)
	}
	if tip.Custom {
		t.Error("percent-derived tip should not be custom")
	}
}

func TestResolveTip_AmountOnly(t *testing.T) {
	tip := billing.ResolveTip(dec(t, "50.00"), dec(t, "10.00"), decimal.Zero, true, false)

	if got := tip.Amount.StringFixed(2); got != "10.00" {
		t.Errorf("amount: got %s, want 10.00", got)
	}
	if got := tip.Percent.StringFixed(2); got != "20.00" {
		t.Errorf("back-computed percent: got %s, want 20.00", got)
	}
	if !tip.Custom {
		t.Error("amount tip should be custom")
	}
}

func TestResolveTip_AmountWinsOverPercent(t *testing.T) {
	tip := billing.ResolveTip(dec(t, "100.00"), dec(t, "12.00"), decimal.NewFromInt(15), true, true)

	if got := tip.Amount.StringFixed(2); got != "12.00" {
		t.Errorf("amount: got %s, want 12.00", got)
	}
	if got := tip.Percent.StringFixed(2); got != "12.00" {
		t.Errorf("percent: got %s, want 12.00", got)
	}
	if !tip.Custom {
		t.Error("explicit amount should be custom even when a percent is given")
	}
}

func TestResolveTip_Neither(t *testing.T) {
	tip := billing.ResolveTip(dec(t, "50.00"), decimal.Zero, decimal.Zero, false, false)

	if !tip.Amount.IsZero() || !tip.Percent.IsZero() || tip.Custom {
		t.Errorf("expected zero tip, got %+v", tip)
	}
}

func TestResolveTip_ZeroSubtotal(t *testing.T) {
	tip := billing.ResolveTip(decimal.Zero, dec(t, "5.00"), decimal.Zero, true, false)

	if got := tip.Amount.StringFixed(2); got != "5.00" {
		t.Errorf("amount: got %s, want 5.00", got)
	}
	if !tip.Percent.IsZero() {
		t.Errorf("percent on zero subtotal: got %s, want 0", tip.Percent)
	}
}
