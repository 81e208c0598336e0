package billing_test

import (
	"errors"
	"testing"

	"github.com/cantina-pos/api/internal/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func splitItem(t *testing.T, subtotal string) billing.SplitItem {
	t.Helper()
	return billing.SplitItem{
		OrderID:  uuid.New(),
		ItemID:   uuid.New(),
		Name:     "Taco Plate",
		Subtotal: dec(t, subtotal),
	}
}

func TestSplitBill_ThreeEqualShares(t *testing.T) {
	assignments := [][]billing.SplitItem{
		{splitItem(t, "10.00")},
		{splitItem(t, "10.00")},
		{splitItem(t, "10.00")},
	}

	shares, err := billing.SplitBill(3, assignments)
	if err != nil {
		t.Fatalf("split bill: %v", err)
	}
	if len(shares) != 3 {
		t.Fatalf("expected 3 shares, got %d", len(shares))
	}

	sum := decimal.Zero
	for i, share := range shares {
		if got := share.Subtotal.StringFixed(2); got != "10.00" {
			t.Errorf("share %d subtotal: got %s, want 10.00", i, got)
		}
		if got := share.Tax.StringFixed(2); got != "1.60" {
			t.Errorf("share %d tax: got %s, want 1.60", i, got)
		}
		if got := share.Total.StringFixed(2); got != "11.60" {
			t.Errorf("share %d total: got %s, want 11.60", i, got)
		}
		if !share.Tip.IsZero() {
			t.Errorf("share %d tip: got %s, want 0", i, share.Tip)
		}
		sum = sum.Add(share.Total)
	}

	// Sum of share totals equals the table total at the split tax rate.
	if got := sum.StringFixed(2); got != "34.80" {
		t.Errorf("sum of share totals: got %s, want 34.80", got)
	}
}

func TestSplitBill_UnevenShares(t *testing.T) {
	assignments := [][]billing.SplitItem{
		{splitItem(t, "12.50"), splitItem(t, "4.00")},
		{splitItem(t, "8.25")},
	}

	shares, err := billing.SplitBill(2, assignments)
	if err != nil {
		t.Fatalf("split bill: %v", err)
	}

	if got := shares[0].Subtotal.StringFixed(2); got != "16.50" {
		t.Errorf("share 0 subtotal: got %s, want 16.50", got)
	}
	if got := shares[0].Total.StringFixed(2); got != "19.14" {
		t.Errorf("share 0 total: got %s, want 19.14", got)
	}
	if got := shares[1].Total.StringFixed(2); got != "9.57" {
		t.Errorf("share 1 total: got %s, want 9.57", got)
	}
}

func TestSplitBill_EmptyShareAllowed(t *testing.T) {
	assignments := [][]billing.SplitItem{
		{splitItem(t, "20.00")},
		{},
	}

	shares, err := billing.SplitBill(2, assignments)
	if err != nil {
		t.Fatalf("split bill: %v", err)
	}
	if !shares[1].Subtotal.IsZero() || !shares[1].Total.IsZero() {
		t.Errorf("empty share should be zero, got %+v", shares[1])
	}
}

func TestSplitBill_ShareCountMismatch(t *testing.T) {
	assignments := [][]billing.SplitItem{
		{splitItem(t, "10.00")},
		{splitItem(t, "10.00")},
	}

	_, err := billing.SplitBill(3, assignments)
	if !errors.Is(err, billing.ErrShareCountMismatch) {
		t.Errorf("got %v, want ErrShareCountMismatch", err)
	}
}

func TestSplitBill_ShareCountRange(t *testing.T) {
	one := [][]billing.SplitItem{{splitItem(t, "10.00")}}
	if _, err := billing.SplitBill(1, one); !errors.Is(err, billing.ErrShareCountRange) {
		t.Errorf("shareCount=1: got %v, want ErrShareCountRange", err)
	}

	many := make([][]billing.SplitItem, 21)
	if _, err := billing.SplitBill(21, many); !errors.Is(err, billing.ErrShareCountRange) {
		t.Errorf("shareCount=21: got %v, want ErrShareCountRange", err)
	}
}
