// Package calc computes invoice line and aggregate amounts.
//
// All monetary values are int64 minor units (paise). Rate math runs on
// shopspring decimals and rounds half-up to the minor unit, so the same
// inputs always produce the same outputs.
package calc

import "github.com/shopspring/decimal"

// TaxType selects how an item's tax splits into components.
type TaxType string

const (
	// TaxTypeGST splits the rate evenly into CGST and SGST.
	TaxTypeGST TaxType = "GST"
	// TaxTypeIGST applies the full rate as IGST.
	TaxTypeIGST TaxType = "IGST"
	// TaxTypeNone applies no tax.
	TaxTypeNone TaxType = "None"
)

// DiscountType selects how the invoice-level discount is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// ItemInput is one raw invoice line. Quantity and prices are assumed
// already validated by the caller.
type ItemInput struct {
	Name      string
	Quantity  float64
	UnitPrice int64
	UnitCost  *int64
	TaxRate   float64
	TaxType   TaxType
}

// Discount is the invoice-level discount spec. For percentage the value
// is a percent of the raw subtotal; for fixed it is a minor-unit amount.
type Discount struct {
	Value float64
	Type  DiscountType
}

// ItemResult is a fully computed invoice line.
type ItemResult struct {
	ItemInput

	Subtotal  int64
	Cgst      int64
	Sgst      int64
	Igst      int64
	TaxAmount int64
	Total     int64
}

// Result carries the invoice-level aggregates. Subtotal is the
// post-discount subtotal; Total = Subtotal + TotalTax. Discount applies
// to the invoice-level subtotal only, never to per-line taxable value.
type Result struct {
	Items []ItemResult

	RawSubtotal    int64
	DiscountAmount int64
	Subtotal       int64
	Cgst           int64
	Sgst           int64
	Igst           int64
	TotalTax       int64
	Total          int64
	Profit         int64
}

var (
	oneHundred = decimal.NewFromInt(100)
	twoHundred = decimal.NewFromInt(200)
)

// ComputeItem computes a single line. Tax components round to the minor
// unit independently; the line total is subtotal plus the rounded tax.
func ComputeItem(in ItemInput) ItemResult {
	qty := decimal.NewFromFloat(in.Quantity)
	price := decimal.NewFromInt(in.UnitPrice)
	rate := decimal.NewFromFloat(in.TaxRate)

	subtotal := qty.Mul(price).Round(0)

	var cgst, sgst, igst decimal.Decimal
	switch in.TaxType {
	case TaxTypeGST:
		half := subtotal.Mul(rate).Div(twoHundred).Round(0)
		cgst, sgst = half, half
	case TaxTypeIGST:
		igst = subtotal.Mul(rate).Div(oneHundred).Round(0)
	}

	tax := cgst.Add(sgst).Add(igst)

	return ItemResult{
		ItemInput: in,
		Subtotal:  subtotal.IntPart(),
		Cgst:      cgst.IntPart(),
		Sgst:      sgst.IntPart(),
		Igst:      igst.IntPart(),
		TaxAmount: tax.IntPart(),
		Total:     subtotal.Add(tax).IntPart(),
	}
}

// Compute derives all invoice aggregates from raw items and a discount.
// Zero items yield all-zero aggregates. Items without a unit cost
// contribute zero profit.
func Compute(items []ItemInput, discount Discount) Result {
	res := Result{Items: make([]ItemResult, 0, len(items))}

	profit := decimal.Zero
	for _, in := range items {
		line := ComputeItem(in)
		res.Items = append(res.Items, line)

		res.RawSubtotal += line.Subtotal
		res.Cgst += line.Cgst
		res.Sgst += line.Sgst
		res.Igst += line.Igst
		res.TotalTax += line.TaxAmount

		if in.UnitCost != nil {
			margin := decimal.NewFromInt(in.UnitPrice - *in.UnitCost)
			profit = profit.Add(decimal.NewFromFloat(in.Quantity).Mul(margin))
		}
	}

	res.DiscountAmount = discountAmount(res.RawSubtotal, discount)
	res.Subtotal = res.RawSubtotal - res.DiscountAmount
	res.Total = res.Subtotal + res.TotalTax
	res.Profit = profit.Round(0).IntPart()
	return res
}

func discountAmount(rawSubtotal int64, discount Discount) int64 {
	if discount.Value == 0 {
		return 0
	}
	value := decimal.NewFromFloat(discount.Value)
	if discount.Type == DiscountPercentage {
		return decimal.NewFromInt(rawSubtotal).Mul(value).Div(oneHundred).Round(0).IntPart()
	}
	return value.Round(0).IntPart()
}
