package projection

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/shopsync/libs/events"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/registry"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/storage"
)

type orderItemPayload struct {
	ItemID          *string `json:"item_id"`
	ProductSnapshot *struct {
		ProductID         *string         `json:"product_id"`
		SupplierID        *string         `json:"supplier_id"`
		ProductName       *string         `json:"product_name"`
		VariantName       *string         `json:"variant_name"`
		VariantAttributes json.RawMessage `json:"variant_attributes"`
		ImageURL          *string         `json:"image_url"`
		SupplierName      *string         `json:"supplier_name"`
	} `json:"product_snapshot"`
	Quantity          intField `json:"quantity"`
	UnitPriceCents    intField `json:"unit_price_cents"`
	FinalPriceCents   intField `json:"final_price_cents"`
	FulfillmentStatus *string  `json:"fulfillment_status"`
	ShippedQuantity   intField `json:"shipped_quantity"`
	TrackingNumber    *string  `json:"tracking_number"`
	Carrier           *string  `json:"carrier"`
	ShippedAt         *string  `json:"shipped_at"`
	DeliveredAt       *string  `json:"delivered_at"`
	TotalCents        intField `json:"total_cents"`
}

type orderPayload struct {
	OrderNumber *string `json:"order_number"`
	Customer    *struct {
		UserID      *string `json:"user_id"`
		DisplayName *string `json:"display_name"`
		Email       *string `json:"email"`
		Phone       *string `json:"phone"`
	} `json:"customer"`
	Items           []*orderItemPayload `json:"items"`
	ShippingAddress *struct {
		RecipientName *string `json:"recipient_name"`
		Phone         *string `json:"phone"`
		address
	} `json:"shipping_address"`
	Status     *string  `json:"status"`
	TotalCents intField `json:"total_cents"`
	CreatedAt  *string  `json:"created_at"`
	UpdatedAt  *string  `json:"updated_at"`
}

type orderCancelledPayload struct {
	Reason *string `json:"reason"`
}

type OrderProjector struct {
	store  OrderStore
	logger *slog.Logger
}

func NewOrderProjector(store OrderStore, logger *slog.Logger) *OrderProjector {
	return &OrderProjector{store: store, logger: logger}
}

func (p *OrderProjector) Register(r *registry.Registry) error {
	if err := registry.Handle(r, events.OrderCreated, p.upsert); err != nil {
		return err
	}
	return registry.Handle(r, events.OrderCancelled, p.cancel)
}

func (p *OrderProjector) upsert(ctx context.Context, env events.Envelope, in orderPayload) error {
	info, err := infoOf(env)
	if err != nil {
		return err
	}
	row := storage.OrderRow{
		OrderID:     info.entityID,
		OrderNumber: str(in.OrderNumber),
		Status:      str(in.Status),
		CreatedAt:   timeOr(in.CreatedAt, info.at),
		UpdatedAt:   timeOr(in.UpdatedAt, info.at),
		Audit:       info.audit,
	}
	if row.OrderNumber == "" {
		row.OrderNumber = info.entityID
	}
	if c := in.Customer; c != nil {
		row.CustomerUserID = str(c.UserID)
		row.CustomerDisplayName = c.DisplayName
		row.CustomerEmail = c.Email
		row.CustomerPhone = c.Phone
	}
	if a := in.ShippingAddress; a != nil {
		row.ShippingRecipientName = a.RecipientName
		row.ShippingPhone = a.Phone
		row.ShippingStreet1 = a.StreetAddress1
		row.ShippingStreet2 = a.StreetAddress2
		row.ShippingCity = a.City
		row.ShippingState = a.State
		row.ShippingZipCode = a.ZipCode
		row.ShippingCountry = a.Country
	}

	items := p.flattenItems(env, in.Items)
	if in.TotalCents.ok {
		row.TotalCents = in.TotalCents.v
	} else {
		for _, it := range items {
			row.TotalCents += it.TotalCents
		}
	}
	return p.store.UpsertOrder(ctx, row, items)
}

// flattenItems maps the item list to rows keyed by item_id. Items without an
// id are keyed by their 1-based position ("#2"); a repeated key keeps the
// first item and logs the rest.
func (p *OrderProjector) flattenItems(env events.Envelope, in []*orderItemPayload) []storage.OrderItemRow {
	out := make([]storage.OrderItemRow, 0, len(in))
	seen := make(map[string]bool, len(in))
	for i, it := range in {
		if it == nil {
			continue
		}
		id := strings.TrimSpace(str(it.ItemID))
		if id == "" {
			id = "#" + strconv.Itoa(i+1)
		}
		if seen[id] {
			p.logger.Warn("duplicate order item skipped",
				"event_id", env.EventID,
				"entity_id", env.EntityID,
				"item_id", id,
			)
			continue
		}
		seen[id] = true
		row := storage.OrderItemRow{
			ItemID:            id,
			Quantity:          i64(it.Quantity),
			UnitPriceCents:    i64(it.UnitPriceCents),
			FinalPriceCents:   i64(it.FinalPriceCents),
			FulfillmentStatus: it.FulfillmentStatus,
			ShippedQuantity:   i64(it.ShippedQuantity),
			TrackingNumber:    it.TrackingNumber,
			Carrier:           it.Carrier,
			ShippedAt:         parseTime(it.ShippedAt),
			DeliveredAt:       parseTime(it.DeliveredAt),
		}
		if !it.FinalPriceCents.ok {
			row.FinalPriceCents = row.UnitPriceCents
		}
		if it.TotalCents.ok {
			row.TotalCents = it.TotalCents.v
		} else {
			row.TotalCents = row.FinalPriceCents * row.Quantity
		}
		if s := it.ProductSnapshot; s != nil {
			row.ProductID = str(s.ProductID)
			row.SupplierID = str(s.SupplierID)
			row.ProductName = s.ProductName
			row.VariantName = s.VariantName
			row.VariantAttributesJSON = jsonText(s.VariantAttributes)
			row.ImageURL = s.ImageURL
			row.SupplierName = s.SupplierName
		}
		out = append(out, row)
	}
	return out
}

// cancel touches status and reason only. The order keeps its totals and items.
func (p *OrderProjector) cancel(ctx context.Context, env events.Envelope, in orderCancelledPayload) error {
	info, err := infoOf(env)
	if err != nil {
		return err
	}
	err = p.store.CancelOrder(ctx, info.entityID, in.Reason, info.audit)
	return missingRow(p.logger, env, err)
}
