package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/fjod/style_cart/internal/catalog/domain"
)

// ViewCache stores the ordered product ids of a computed catalog view.
type ViewCache interface {
	Get(ctx context.Context, fingerprint string) ([]int64, error)
	Set(ctx context.Context, fingerprint string, ids []int64) error
	Delete(ctx context.Context, fingerprint string) error
}

var ErrCacheMiss = errors.New("cache miss")

// Fingerprint identifies the view a filter produces. Filters that differ only
// in set order, duplicates or query case share a fingerprint.
func Fingerprint(f domain.FilterState) string {
	n := f.Normalized()

	var b strings.Builder
	b.WriteString(n.Query)
	b.WriteByte(0)
	writeSet(&b, n.Categories)
	writeSet(&b, n.Availability)
	writeSet(&b, n.ItemTypes)
	b.WriteString(string(n.Sort))

	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

// CatalogVersion hashes every field the filter and sort rules read, so a view
// cached against one catalog is never served against a repriced one.
func CatalogVersion(products []domain.Product) string {
	d := xxhash.New()
	for _, p := range products {
		_, _ = d.WriteString(strconv.FormatInt(p.ID, 10))
		_, _ = d.WriteString("\x00" + p.Name + "\x00" + p.Price.String())
		_, _ = d.WriteString("\x00" + string(p.Category) + "\x00" + string(p.ItemType) + "\x00" + string(p.Availability))
		_, _ = d.WriteString("\x00" + strings.Join(p.Tags, ",") + "\x01")
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

// ViewKey is the cache key of the view filter produces over the catalog
// identified by version.
func ViewKey(f domain.FilterState, version string) string {
	return Fingerprint(f) + ":" + version
}

func writeSet[T ~string](b *strings.Builder, values []T) {
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(string(v))
	}
	b.WriteByte(0)
}
