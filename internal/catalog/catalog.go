// Package catalog defines the read-only product view the cart and checkout
// code depend on, and the filter used to list products.
package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/safar/tackle-shop/internal/models"
)

// Index is the read side of the product catalog. Implementations return
// models.ErrProductNotFound from Lookup when the id is unknown.
type Index interface {
	Lookup(ctx context.Context, productID int64) (*models.Product, error)
	List(ctx context.Context, filter Filter) ([]models.Product, error)
}

// CategoryFilter is one entry of a category selection: either a Single
// category or a Group of categories. The interface is sealed.
type CategoryFilter interface {
	categoryFilter()
}

type Single string

// Group matches any of its categories.
type Group []string

func (Single) categoryFilter() {}
func (Group) categoryFilter()  {}

// MatchCategory reports whether category is selected by f. A nil filter
// selects everything.
func MatchCategory(f CategoryFilter, category string) bool {
	switch f := f.(type) {
	case nil:
		return true
	case Single:
		return string(f) == category
	case Group:
		for _, c := range f {
			if c == category {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Filter narrows List. Categories entries are OR-combined; the entry set,
// StoreID and Query are AND-combined. Zero values mean "any".
type Filter struct {
	Categories []CategoryFilter
	StoreID    int64
	Query      string
}

// CategorySet flattens all category entries into a sorted, de-duplicated list.
func (f Filter) CategorySet() []string {
	seen := make(map[string]struct{})
	for _, entry := range f.Categories {
		switch e := entry.(type) {
		case Single:
			seen[string(e)] = struct{}{}
		case Group:
			for _, c := range e {
				seen[c] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Match applies the filter to a single product.
func (f Filter) Match(p *models.Product) bool {
	if f.StoreID != 0 && p.StoreID != f.StoreID {
		return false
	}

	if len(f.Categories) > 0 {
		matched := false
		for _, entry := range f.Categories {
			if MatchCategory(entry, p.Category) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Description), q)
}

// ParseCategories turns query values into filter entries: a value holding a
// comma becomes a Group, anything else a Single. Blank values are dropped.
func ParseCategories(values []string) []CategoryFilter {
	var out []CategoryFilter
	for _, v := range values {
		parts := strings.Split(v, ",")
		var group Group
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				group = append(group, p)
			}
		}
		switch {
		case len(group) == 0:
			continue
		case len(parts) == 1:
			out = append(out, Single(group[0]))
		default:
			out = append(out, group)
		}
	}
	return out
}
