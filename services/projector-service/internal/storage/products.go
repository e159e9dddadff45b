package storage

import (
	"context"
	"time"
)

type ProductRow struct {
	ProductID        string
	SupplierID       string
	SupplierName     *string
	Name             string
	ShortDescription *string
	Category         string
	UnitType         string
	BaseSKU          *string
	Brand            *string
	BasePriceCents   int64
	Status           string
	ViewCount        int64
	FavoriteCount    int64
	PurchaseCount    int64
	TotalReviews     int64
	PublishedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Audit
}

// VariantRow is one entry of a product's variants map, flattened.
type VariantRow struct {
	VariantKey     string
	VariantID      string
	VariantName    string
	AttributesJSON *string
	PriceCents     int64
	CostCents      *int64
	Quantity       int64
	WidthCM        *float64
	HeightCM       *float64
	DepthCM        *float64
	ImageURL       *string
}

var productsTable = table{
	name: "products",
	key:  []string{"product_id"},
	cols: []string{
		"product_id", "supplier_id", "supplier_name", "name", "short_description", "category", "unit_type",
		"base_sku", "brand", "base_price_cents", "status",
		"view_count", "favorite_count", "purchase_count", "total_reviews",
		"published_at", "created_at", "updated_at", "event_id", "event_timestamp",
	},
	immutable: []string{"created_at"},
}

var variantsTable = table{
	name: "product_variants",
	key:  []string{"product_id", "variant_key"},
	cols: []string{
		"product_id", "variant_key", "variant_id", "variant_name", "attributes_json",
		"price_cents", "cost_cents", "quantity", "width_cm", "height_cm", "depth_cm", "image_url",
	},
}

var (
	upsertProductSQL = productsTable.upsertSQL()
	insertVariantSQL = variantsTable.insertSQL()
)

// UpsertProduct writes the product and replaces its variant set in one
// transaction, so variants missing from the snapshot disappear.
func (s *Store) UpsertProduct(ctx context.Context, p ProductRow, variants []VariantRow) error {
	return s.db.inTx(ctx, func(tx execer) error {
		if _, err := tx.exec(ctx, upsertProductSQL,
			p.ProductID, p.SupplierID, p.SupplierName, p.Name, p.ShortDescription, p.Category, p.UnitType,
			p.BaseSKU, p.Brand, p.BasePriceCents, p.Status,
			p.ViewCount, p.FavoriteCount, p.PurchaseCount, p.TotalReviews,
			utcPtr(p.PublishedAt), utc(p.CreatedAt), utc(p.UpdatedAt), p.EventID, utc(p.EventTimestamp),
		); err != nil {
			return err
		}
		if _, err := tx.exec(ctx, `DELETE FROM product_variants WHERE product_id = ?`, p.ProductID); err != nil {
			return err
		}
		for _, v := range variants {
			if _, err := tx.exec(ctx, insertVariantSQL,
				p.ProductID, v.VariantKey, v.VariantID, v.VariantName, v.AttributesJSON,
				v.PriceCents, v.CostCents, v.Quantity, v.WidthCM, v.HeightCM, v.DepthCM, v.ImageURL,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) DeleteProduct(ctx context.Context, productID string) error {
	return s.db.inTx(ctx, func(tx execer) error {
		if _, err := tx.exec(ctx, `DELETE FROM product_variants WHERE product_id = ?`, productID); err != nil {
			return err
		}
		return requireRow(tx.exec(ctx, `DELETE FROM products WHERE product_id = ?`, productID))
	})
}
