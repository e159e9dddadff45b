package projection

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/md-rashed-zaman/shopsync/libs/events"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/registry"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/storage"
)

type variantPayload struct {
	VariantID         *string         `json:"variant_id"`
	VariantName       *string         `json:"variant_name"`
	Attributes        json.RawMessage `json:"attributes"`
	PriceCents        intField        `json:"price_cents"`
	CostCents         intField        `json:"cost_cents"`
	Quantity          intField        `json:"quantity"`
	PackageDimensions *struct {
		WidthCM  floatField `json:"width_cm"`
		HeightCM floatField `json:"height_cm"`
		DepthCM  floatField `json:"depth_cm"`
	} `json:"package_dimensions"`
	ImageURL *string `json:"image_url"`
}

type productPayload struct {
	SupplierID   *string `json:"supplier_id"`
	SupplierInfo *struct {
		Name *string `json:"name"`
	} `json:"supplier_info"`
	Name             *string `json:"name"`
	ShortDescription *string `json:"short_description"`
	Category         *string `json:"category"`
	UnitType         *string `json:"unit_type"`
	Metadata         *struct {
		BaseSKU *string `json:"base_sku"`
		Brand   *string `json:"brand"`
	} `json:"metadata"`
	BasePriceCents intField `json:"base_price_cents"`
	Status         *string  `json:"status"`
	Stats          *struct {
		ViewCount     intField `json:"view_count"`
		FavoriteCount intField `json:"favorite_count"`
		PurchaseCount intField `json:"purchase_count"`
		TotalReviews  intField `json:"total_reviews"`
	} `json:"stats"`
	// Variants is keyed by variant key.
	Variants    map[string]*variantPayload `json:"variants"`
	PublishedAt *string                    `json:"published_at"`
	CreatedAt   *string                    `json:"created_at"`
	UpdatedAt   *string                    `json:"updated_at"`
}

type ProductProjector struct {
	store  ProductStore
	logger *slog.Logger
}

func NewProductProjector(store ProductStore, logger *slog.Logger) *ProductProjector {
	return &ProductProjector{store: store, logger: logger}
}

// Every lifecycle event except deletion carries the full product document.
var productSnapshotTypes = []events.Type{
	events.ProductCreated,
	events.ProductUpdated,
	events.ProductPublished,
	events.ProductDiscontinued,
	events.ProductOutOfStock,
	events.ProductRestored,
}

func (p *ProductProjector) Register(r *registry.Registry) error {
	for _, t := range productSnapshotTypes {
		if err := registry.Handle(r, t, p.upsert); err != nil {
			return err
		}
	}
	return registry.Handle(r, events.ProductDeleted, p.delete)
}

func (p *ProductProjector) upsert(ctx context.Context, env events.Envelope, in productPayload) error {
	info, err := infoOf(env)
	if err != nil {
		return err
	}
	row := storage.ProductRow{
		ProductID:        info.entityID,
		SupplierID:       str(in.SupplierID),
		Name:             str(in.Name),
		ShortDescription: in.ShortDescription,
		Category:         str(in.Category),
		UnitType:         str(in.UnitType),
		BasePriceCents:   i64(in.BasePriceCents),
		Status:           str(in.Status),
		PublishedAt:      parseTime(in.PublishedAt),
		CreatedAt:        timeOr(in.CreatedAt, info.at),
		UpdatedAt:        timeOr(in.UpdatedAt, info.at),
		Audit:            info.audit,
	}
	if s := in.SupplierInfo; s != nil {
		row.SupplierName = s.Name
	}
	if m := in.Metadata; m != nil {
		row.BaseSKU = m.BaseSKU
		row.Brand = m.Brand
	}
	if s := in.Stats; s != nil {
		row.ViewCount = i64(s.ViewCount)
		row.FavoriteCount = i64(s.FavoriteCount)
		row.PurchaseCount = i64(s.PurchaseCount)
		row.TotalReviews = i64(s.TotalReviews)
	}
	return p.store.UpsertProduct(ctx, row, flattenVariants(in.Variants))
}

// flattenVariants emits rows in key order so writes are deterministic.
func flattenVariants(in map[string]*variantPayload) []storage.VariantRow {
	keys := make([]string, 0, len(in))
	for k, v := range in {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]storage.VariantRow, 0, len(keys))
	for _, k := range keys {
		v := in[k]
		row := storage.VariantRow{
			VariantKey:     k,
			VariantID:      str(v.VariantID),
			VariantName:    str(v.VariantName),
			AttributesJSON: jsonText(v.Attributes),
			PriceCents:     i64(v.PriceCents),
			CostCents:      v.CostCents.ptr(),
			Quantity:       i64(v.Quantity),
			ImageURL:       v.ImageURL,
		}
		if d := v.PackageDimensions; d != nil {
			row.WidthCM = d.WidthCM.ptr()
			row.HeightCM = d.HeightCM.ptr()
			row.DepthCM = d.DepthCM.ptr()
		}
		out = append(out, row)
	}
	return out
}

func (p *ProductProjector) delete(ctx context.Context, env events.Envelope, _ struct{}) error {
	info, err := infoOf(env)
	if err != nil {
		return err
	}
	return missingRow(p.logger, env, p.store.DeleteProduct(ctx, info.entityID))
}
