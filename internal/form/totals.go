package form

import (
	"github.com/shopspring/decimal"

	"invoicedesk/internal/core"
)

var hundred = decimal.NewFromInt(100)

// RecomputeTotals derives the totals block from the item rows.
//
// For each row the gross is quantity x rate and the discount is
// gross x discount%. The row amount is the entered amount when present,
// otherwise gross minus discount. Taxes apply to the row amount. Freight
// and other charges are kept as entered and
// net = amount + freight + other + sgst + cgst + igst.
func (d Draft) RecomputeTotals() Draft {
	out := d.clone()

	var qty, gross, discount, amount, sgst, cgst, igst decimal.Decimal
	for _, it := range out.Invoice.Items {
		q := dec(it.Quantity)
		g := q.Mul(dec(it.RatePerQuantity))
		disc := g.Mul(dec(it.DiscountPercent)).Div(hundred)

		amt := g.Sub(disc)
		if it.Amount != nil {
			amt = dec(it.Amount)
		}

		qty = qty.Add(q)
		gross = gross.Add(g)
		discount = discount.Add(disc)
		amount = amount.Add(amt)
		sgst = sgst.Add(amt.Mul(dec(it.SGSTPercent)).Div(hundred))
		cgst = cgst.Add(amt.Mul(dec(it.CGSTPercent)).Div(hundred))
		igst = igst.Add(amt.Mul(dec(it.IGSTPercent)).Div(hundred))
	}

	t := &out.Invoice.Totals
	t.TotalQuantity = num(qty)
	t.TotalAmount = money(amount)
	t.TotalDiscountAmount = money(discount)
	if gross.IsPositive() {
		t.TotalDiscountPercent = money(discount.Div(gross).Mul(hundred))
	} else {
		t.TotalDiscountPercent = nil
	}
	t.TotalSGSTAmount = money(sgst)
	t.TotalCGSTAmount = money(cgst)
	t.TotalIGSTAmount = money(igst)

	net := amount.Add(dec(t.FreightCharges)).Add(dec(t.TotalOtherCharges)).
		Add(sgst).Add(cgst).Add(igst)
	t.NetAmount = money(net)
	return out
}

func dec(f *float64) decimal.Decimal {
	if f == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*f)
}

func money(d decimal.Decimal) *float64 {
	return core.FloatPtr(d.Round(2).InexactFloat64())
}

func num(d decimal.Decimal) *float64 {
	return core.FloatPtr(d.Round(3).InexactFloat64())
}
