package catalog

import "github.com/lib/pq"

// Product is the read-only slice of a catalog product order processing needs.
type Product struct {
	ID                 string         `db:"id"`
	Title              string         `db:"title"`
	Sizes              pq.StringArray `db:"sizes"`
	Colors             pq.StringArray `db:"colors"`
	FulfillmentPartner *string        `db:"fulfillment_partner"`
}

// Variant maps a purchasable variant id onto its product, size and color.
type Variant struct {
	ID        string `db:"id"`
	ProductID string `db:"product_id"`
	Size      string `db:"size"`
	Color     string `db:"color"`
}
