package sales

import (
	"github.com/shopspring/decimal"

	"github.com/ferretek/ferretek/internal/catalog"
)

// TaxPolicy computes the tax owed on a sale subtotal after discount.
type TaxPolicy interface {
	Tax(taxable decimal.Decimal) decimal.Decimal
}

// ZeroTax is the default policy: amounts already include tax.
type ZeroTax struct{}

func (ZeroTax) Tax(decimal.Decimal) decimal.Decimal { return decimal.Zero }

// RateTax applies a flat percentage, e.g. 19 for IVA.
type RateTax struct {
	Percent decimal.Decimal
}

func (t RateTax) Tax(taxable decimal.Decimal) decimal.Decimal {
	return taxable.Mul(t.Percent).Div(decimal.NewFromInt(100)).Round(2)
}

// Calculator turns request lines into authoritative sale items and totals.
// It is a pure function of its inputs plus a catalog snapshot; it never
// touches stock and must run before any write.
type Calculator struct {
	tax TaxPolicy
}

// NewCalculator builds Calculator. A nil policy means zero tax.
func NewCalculator(tax TaxPolicy) *Calculator {
	if tax == nil {
		tax = ZeroTax{}
	}
	return &Calculator{tax: tax}
}

// Price resolves unit prices and computes line subtotals and aggregate
// totals. A client-supplied unit price is honored only when allowOverride is
// set; otherwise a differing override is rejected rather than silently
// replaced. Decimal arithmetic keeps repeated additions exact.
func (c *Calculator) Price(lines []RequestLine, products map[int64]catalog.Product, allowOverride bool) ([]Item, Totals, error) {
	items := make([]Item, 0, len(lines))
	subtotal := decimal.Zero
	discountTotal := decimal.Zero

	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, Totals{}, &InvalidLineError{ProductID: line.ProductID, Reason: "quantity must be positive"}
		}
		if line.Discount < 0 {
			return nil, Totals{}, &InvalidLineError{ProductID: line.ProductID, Reason: "discount must not be negative"}
		}
		product, ok := products[line.ProductID]
		if !ok {
			return nil, Totals{}, &InvalidLineError{ProductID: line.ProductID, Reason: "product not found"}
		}

		unitPrice := decimal.NewFromFloat(product.Pricing.SellingPrice)
		if line.UnitPrice != nil {
			override := decimal.NewFromFloat(*line.UnitPrice)
			if override.IsNegative() {
				return nil, Totals{}, &InvalidLineError{ProductID: line.ProductID, Reason: "unit price must not be negative"}
			}
			if !override.Equal(unitPrice) && !allowOverride {
				return nil, Totals{}, ErrPriceOverride
			}
			unitPrice = override
		}

		quantity := decimal.NewFromInt(line.Quantity)
		discount := decimal.NewFromFloat(line.Discount)
		lineSubtotal := unitPrice.Mul(quantity)
		lineTotal := lineSubtotal.Sub(discount)
		if lineTotal.IsNegative() {
			return nil, Totals{}, &InvalidLineError{ProductID: line.ProductID, Reason: "discount exceeds line subtotal"}
		}

		price, _ := unitPrice.Float64()
		sub, _ := lineTotal.Float64()
		items = append(items, Item{
			ProductID:   product.ID,
			ProductName: product.Name,
			SKU:         product.SKU,
			Quantity:    line.Quantity,
			UnitPrice:   price,
			Discount:    line.Discount,
			Subtotal:    sub,
		})
		subtotal = subtotal.Add(lineSubtotal)
		discountTotal = discountTotal.Add(discount)
	}

	taxable := subtotal.Sub(discountTotal)
	tax := c.tax.Tax(taxable)
	total := taxable.Add(tax)

	sub, _ := subtotal.Float64()
	disc, _ := discountTotal.Float64()
	taxF, _ := tax.Float64()
	tot, _ := total.Float64()
	return items, Totals{Subtotal: sub, Discount: disc, Tax: taxF, Total: tot}, nil
}
