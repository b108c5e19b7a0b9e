package domain

import (
	"slices"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryMen         Category = "men"
	CategoryWomen       Category = "women"
	CategoryKids        Category = "kids"
	CategoryAccessories Category = "accessories"
)

type ItemType string

const (
	ItemTypeShoes       ItemType = "shoes"
	ItemTypeBags        ItemType = "bags"
	ItemTypeDresses     ItemType = "dresses"
	ItemTypeAccessories ItemType = "accessories"
)

type Availability string

const (
	InStock    Availability = "in-stock"
	OutOfStock Availability = "out-of-stock"
)

// TagBestseller marks products that the bestsellers sort pulls to the front.
const TagBestseller = "bestseller"

type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Category     Category        `json:"category"`
	ItemType     ItemType        `json:"item_type"`
	Availability Availability    `json:"availability"`
	Tags         []string        `json:"tags,omitempty"`
}

func (p Product) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}
