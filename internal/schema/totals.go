package schema

import "github.com/shopspring/decimal"

// NewItem builds an invoice line whose total includes its tax.
func NewItem(productID int64, quantity, price, taxPercent decimal.Decimal) InvoiceItem {
	it := InvoiceItem{
		ProductID: productID,
		Quantity:  quantity,
		Price:     price,
		Tax:       taxPercent,
	}
	it.Total = it.Subtotal().Add(it.TaxAmount()).Round(2)
	return it
}

// Subtotal is quantity × price.
func (it InvoiceItem) Subtotal() decimal.Decimal {
	return it.Quantity.Mul(it.Price)
}

// TaxAmount is the line subtotal × tax%.
func (it InvoiceItem) TaxAmount() decimal.Decimal {
	return it.Subtotal().Mul(it.Tax).Div(hundred)
}

// ApplyTotals sets subtotal, tax and total from the items. Only invoice
// creators call it; stores keep whatever totals they are given.
func (inv *Invoice) ApplyTotals() {
	subtotal, tax := decimal.Zero, decimal.Zero
	for _, it := range inv.Items {
		subtotal = subtotal.Add(it.Subtotal())
		tax = tax.Add(it.TaxAmount())
	}
	subtotal, tax = subtotal.Round(2), tax.Round(2)
	inv.Subtotal = Money(subtotal)
	inv.Tax = Money(tax)
	inv.Total = Money(subtotal.Add(tax))
}

// Balance is the unpaid remainder of the invoice.
func (inv *Invoice) Balance() decimal.Decimal {
	return inv.Total.Decimal.Sub(inv.AmountPaid)
}

// IsPaid reports whether the invoice is marked paid.
func (inv *Invoice) IsPaid() bool {
	return inv.Status == StatusPaid
}

// PaymentStatus derives an invoice status from the amount paid so far.
func PaymentStatus(total, paid decimal.Decimal) string {
	switch {
	case paid.GreaterThanOrEqual(total):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartial
	}
	return StatusUnpaid
}
