package order

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/vasiliy-maslov/storefront-orders/internal/catalog"
)

// ValidatedItem is a line item checked against the catalog, carrying the product title to snapshot.
type ValidatedItem struct {
	LineItem
	ProductName string
}

// Validated is the result of checking a cart against the catalog.
type Validated struct {
	Items []ValidatedItem
	// FulfillmentPartner is set only when every partnered product shares one partner.
	FulfillmentPartner *string
}

// NormalizeLineItems resolves variant ids into product, size and color so validation sees a single
// line shape.
func NormalizeLineItems(ctx context.Context, lookup catalog.Repository, inputs []LineItemInput) ([]LineItem, error) {
	var variantIDs []string
	for _, in := range inputs {
		if id := strings.TrimSpace(in.VariantID); id != "" && !slices.Contains(variantIDs, id) {
			variantIDs = append(variantIDs, id)
		}
	}

	variants := map[string]catalog.Variant{}
	if len(variantIDs) > 0 {
		var err error
		variants, err = lookup.GetVariants(ctx, variantIDs)
		if err != nil {
			return nil, fmt.Errorf("validator: failed to fetch variants: %w", err)
		}
	}

	items := make([]LineItem, 0, len(inputs))
	for _, in := range inputs {
		item := LineItem{
			ProductID: strings.TrimSpace(in.ProductID),
			Size:      strings.TrimSpace(in.Size),
			Color:     strings.TrimSpace(in.Color),
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
		}

		if id := strings.TrimSpace(in.VariantID); id != "" {
			v, ok := variants[id]
			if !ok {
				return nil, invalid("variant_id", "variant not found: "+id)
			}
			item.ProductID = v.ProductID
			item.Size = v.Size
			item.Color = v.Color
		}

		items = append(items, item)
	}

	return items, nil
}

// ValidateAndResolve checks every line against the catalog and picks the order's fulfillment partner.
// It fails on the first invalid line; nothing is partially processed.
func ValidateAndResolve(ctx context.Context, lookup catalog.Repository, items []LineItem) (Validated, error) {
	productIDs := make([]string, 0, len(items))
	for i, item := range items {
		if item.ProductID == "" || item.Size == "" || item.Color == "" {
			return Validated{}, invalid("line_items", fmt.Sprintf("line item %d: productId, size and color are required", i+1))
		}
		if item.Quantity <= 0 {
			return Validated{}, invalid("quantity", fmt.Sprintf("line item %d: quantity must be positive", i+1))
		}
		if !item.UnitPrice.IsPositive() {
			return Validated{}, invalid("price", fmt.Sprintf("line item %d: price must be positive", i+1))
		}
		if !slices.Contains(productIDs, item.ProductID) {
			productIDs = append(productIDs, item.ProductID)
		}
	}

	products, err := lookup.GetProducts(ctx, productIDs)
	if err != nil {
		return Validated{}, fmt.Errorf("validator: failed to fetch products: %w", err)
	}

	result := Validated{Items: make([]ValidatedItem, 0, len(items))}
	partners := make([]*string, 0, len(items))

	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return Validated{}, invalid("product_id", "product not found: "+item.ProductID)
		}
		if !slices.Contains(product.Sizes, item.Size) {
			return Validated{}, invalid("size", fmt.Sprintf("invalid size %q for %s. Available sizes: %s",
				item.Size, product.Title, strings.Join(product.Sizes, ", ")))
		}
		if !slices.Contains(product.Colors, item.Color) {
			return Validated{}, invalid("color", fmt.Sprintf("invalid color %q for %s. Available colors: %s",
				item.Color, product.Title, strings.Join(product.Colors, ", ")))
		}

		partners = append(partners, product.FulfillmentPartner)
		result.Items = append(result.Items, ValidatedItem{LineItem: item, ProductName: product.Title})
	}

	result.FulfillmentPartner = ResolvePartner(partners)

	return result, nil
}

// ResolvePartner returns the single distinct partner among partners, ignoring unassigned products.
// Zero or several distinct partners leave the order for manual assignment.
func ResolvePartner(partners []*string) *string {
	var distinct []string
	for _, p := range partners {
		if p == nil {
			continue
		}
		name := strings.TrimSpace(*p)
		if name != "" && !slices.Contains(distinct, name) {
			distinct = append(distinct, name)
		}
	}

	if len(distinct) != 1 {
		return nil
	}
	return &distinct[0]
}
