// Package billing holds the money arithmetic for orders and payments:
// order totals, suggested tips, tip resolution, and bill splitting.
// Everything operates on shopspring decimals and rounds to 2 decimal
// places only at the output boundary, never at intermediate steps.
package billing

import "github.com/shopspring/decimal"

// DefaultTaxPercent is applied when no tax configuration row exists yet.
var DefaultTaxPercent = decimal.NewFromInt(16)

// DefaultTipOptions are the suggested tip percentages before any
// configuration has been saved.
var DefaultTipOptions = [3]decimal.Decimal{
	decimal.NewFromInt(10),
	decimal.NewFromInt(15),
	decimal.NewFromInt(20),
}

// TaxConfig is the tax portion of the restaurant configuration. Callers
// fetch it per request and pass it down; the calculator never reads
// ambient state.
type TaxConfig struct {
	Percent    decimal.Decimal
	ApplyToAll bool
}

// TipConfig holds the three suggested tip percentages and whether a
// custom tip may be entered at checkout.
type TipConfig struct {
	Options     [3]decimal.Decimal
	AllowCustom bool
}

// LineItem is a priced order line as seen by the calculator.
type LineItem struct {
	UnitPrice decimal.Decimal
	Quantity  int32
}

// Totals is an order's money summary, each field rounded to 2 decimal places.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals sums the line items and applies the tax percentage.
// taxPercent must already be validated to [0,100] by the configuration
// boundary.
func ComputeTotals(items []LineItem, taxPercent decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity)))
	}
	tax := subtotal.Mul(taxPercent).Div(decimal.NewFromInt(100))
	total := subtotal.Add(tax)
	return Totals{
		Subtotal: subtotal.Round(2),
		Tax:      tax.Round(2),
		Total:    total.Round(2),
	}
}

// LineSubtotal returns price*quantity rounded to 2 decimal places.
func LineSubtotal(unitPrice decimal.Decimal, quantity int32) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt32(quantity)).Round(2)
}

// TipSuggestion is one suggested tip option at checkout.
type TipSuggestion struct {
	Percent      decimal.Decimal
	Amount       decimal.Decimal
	TotalWithTip decimal.Decimal
}

// SuggestedTips computes the configured tip options for a bill. Tips are
// always a percentage of the tax-exclusive subtotal; the total with tip
// still includes tax.
func SuggestedTips(subtotal, tax decimal.Decimal, cfg TipConfig) []TipSuggestion {
	suggestions := make([]TipSuggestion, 0, len(cfg.Options))
	for _, pct := range cfg.Options {
		amount := subtotal.Mul(pct).Div(decimal.NewFromInt(100))
		suggestions = append(suggestions, TipSuggestion{
			Percent:      pct,
			Amount:       amount.Round(2),
			TotalWithTip: subtotal.Add(tax).Add(amount).Round(2),
		})
	}
	return suggestions
}

// Tip is a resolved tip on a payment.
type Tip struct {
	Amount  decimal.Decimal
	Percent decimal.Decimal
	Custom  bool
}

// ResolveTip reconciles an explicit tip amount with a tip percentage.
// When an amount is given it wins and the effective percentage is
// back-computed from the subtotal; when only a percentage is given the
// amount is derived from it. hasAmount/hasPercent distinguish "zero"
// from "absent".
func ResolveTip(subtotal, amount, percent decimal.Decimal, hasAmount, hasPercent bool) Tip {
	hundred := decimal.NewFromInt(100)

	if hasAmount {
		effective := decimal.Zero
		if subtotal.IsPositive() {
			effective = amount.Mul(hundred).Div(subtotal)
		}
		return Tip{
			Amount:  amount.Round(2),
			Percent: effective.Round(2),
			Custom:  true,
		}
	}

	if hasPercent {
		derived := subtotal.Mul(percent).Div(hundred)
		return Tip{
			Amount:  derived.Round(2),
			Percent: percent,
			Custom:  false,
		}
	}

	return Tip{Amount: decimal.Zero, Percent: decimal.Zero, Custom: false}
}
