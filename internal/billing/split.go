package billing

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SplitTaxPercent is the tax rate applied to each split share. It has
// always been a fixed 16% independent of the configured tax rate, and
// existing receipts depend on it staying that way.
var SplitTaxPercent = decimal.NewFromInt(16)

const (
	MinShareCount = 2
	MaxShareCount = 20
)

// Errors returned by SplitBill.
var (
	ErrShareCountRange    = errors.New("share count must be between 2 and 20")
	ErrShareCountMismatch = errors.New("number of shares does not match share count")
)

// SplitItem is one priced line item assigned to a share, identified by
// its order and line-item IDs.
type SplitItem struct {
	OrderID  uuid.UUID
	ItemID   uuid.UUID
	Name     string
	Subtotal decimal.Decimal
}

// Share is one person's portion of a split bill. Tip is zero at split
// time; tips are settled on the payment as a whole.
type Share struct {
	Items    []SplitItem
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Tip      decimal.Decimal
	Total    decimal.Decimal
}

// SplitBill partitions assigned line items into shareCount shares and
// prices each one. Items are taken as assigned; nothing checks that
// every line item at the table lands in exactly one share.
func SplitBill(shareCount int, assignments [][]SplitItem) ([]Share, error) {
	if shareCount < MinShareCount || shareCount > MaxShareCount {
		return nil, ErrShareCountRange
	}
	if len(assignments) != shareCount {
		return nil, ErrShareCountMismatch
	}

	hundred := decimal.NewFromInt(100)
	shares := make([]Share, len(assignments))
	for i, items := range assignments {
		subtotal := decimal.Zero
		for _, item := range items {
			subtotal = subtotal.Add(item.Subtotal)
		}
		tax := subtotal.Mul(SplitTaxPercent).Div(hundred)
		shares[i] = Share{
			Items:    items,
			Subtotal: subtotal.Round(2),
			Tax:      tax.Round(2),
			Tip:      decimal.Zero,
			Total:    subtotal.Add(tax).Round(2),
		}
	}
	return shares, nil
}
