// Package pricing holds the bag arithmetic. Functions never modify their
// arguments; every mutation returns a new slice.
package pricing

import (
	"slices"

	"github.com/fjod/style_cart/internal/cart/domain"
	"github.com/shopspring/decimal"
)

// Subtotal is the sum of unit price times quantity over all lines.
func Subtotal(lines []domain.CartLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// ItemCount is the number of units in the bag.
func ItemCount(lines []domain.CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

// AddLine adds line to the bag, merging quantities when the product is already
// there. A non-positive quantity adds nothing.
func AddLine(lines []domain.CartLine, line domain.CartLine) []domain.CartLine {
	if line.Quantity <= 0 {
		return slices.Clone(lines)
	}
	out := slices.Clone(lines)
	for i := range out {
		if out[i].ID == line.ID {
			out[i].Quantity += line.Quantity
			return out
		}
	}
	return append(out, line)
}

// SetQuantity updates the quantity of line id. A quantity of zero or less
// removes the line; an unknown id leaves the bag as it was.
func SetQuantity(lines []domain.CartLine, id int64, quantity int) []domain.CartLine {
	if quantity <= 0 {
		return RemoveLine(lines, id)
	}
	out := slices.Clone(lines)
	for i := range out {
		if out[i].ID == id {
			out[i].Quantity = quantity
			break
		}
	}
	return out
}

func RemoveLine(lines []domain.CartLine, id int64) []domain.CartLine {
	return slices.DeleteFunc(slices.Clone(lines), func(l domain.CartLine) bool {
		return l.ID == id
	})
}
