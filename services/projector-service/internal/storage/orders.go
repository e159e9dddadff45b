package storage

import (
	"context"
	"time"
)

// OrderStatusCancelled is written by CancelOrder.
const OrderStatusCancelled = "cancelled"

type OrderRow struct {
	OrderID               string
	OrderNumber           string
	CustomerUserID        string
	CustomerDisplayName   *string
	CustomerEmail         *string
	CustomerPhone         *string
	ShippingRecipientName *string
	ShippingPhone         *string
	ShippingStreet1       *string
	ShippingStreet2       *string
	ShippingCity          *string
	ShippingState         *string
	ShippingZipCode       *string
	ShippingCountry       *string
	Status                string
	TotalCents            int64
	CancelReason          *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	Audit
}

type OrderItemRow struct {
	ItemID                string
	ProductID             string
	SupplierID            string
	ProductName           *string
	VariantName           *string
	VariantAttributesJSON *string
	ImageURL              *string
	SupplierName          *string
	Quantity              int64
	UnitPriceCents        int64
	FinalPriceCents       int64
	TotalCents            int64
	FulfillmentStatus     *string
	ShippedQuantity       int64
	TrackingNumber        *string
	Carrier               *string
	ShippedAt             *time.Time
	DeliveredAt           *time.Time
}

var ordersTable = table{
	name: "orders",
	key:  []string{"order_id"},
	cols: []string{
		"order_id", "order_number", "customer_user_id", "customer_display_name", "customer_email", "customer_phone",
		"shipping_recipient_name", "shipping_phone", "shipping_street_1", "shipping_street_2",
		"shipping_city", "shipping_state", "shipping_zip_code", "shipping_country",
		"status", "total_cents", "cancel_reason",
		"created_at", "updated_at", "event_id", "event_timestamp",
	},
	immutable: []string{"created_at"},
}

var orderItemsTable = table{
	name: "order_items",
	key:  []string{"order_id", "item_id"},
	cols: []string{
		"order_id", "item_id", "product_id", "supplier_id", "product_name", "variant_name",
		"variant_attributes_json", "image_url", "supplier_name",
		"quantity", "unit_price_cents", "final_price_cents", "total_cents",
		"fulfillment_status", "shipped_quantity", "tracking_number", "carrier", "shipped_at", "delivered_at",
	},
}

var (
	upsertOrderSQL     = ordersTable.upsertSQL()
	insertOrderItemSQL = orderItemsTable.insertSQL()
)

// UpsertOrder writes the order and replaces its items in one transaction.
func (s *Store) UpsertOrder(ctx context.Context, o OrderRow, items []OrderItemRow) error {
	return s.db.inTx(ctx, func(tx execer) error {
		if _, err := tx.exec(ctx, upsertOrderSQL,
			o.OrderID, o.OrderNumber, o.CustomerUserID, o.CustomerDisplayName, o.CustomerEmail, o.CustomerPhone,
			o.ShippingRecipientName, o.ShippingPhone, o.ShippingStreet1, o.ShippingStreet2,
			o.ShippingCity, o.ShippingState, o.ShippingZipCode, o.ShippingCountry,
			o.Status, o.TotalCents, o.CancelReason,
			utc(o.CreatedAt), utc(o.UpdatedAt), o.EventID, utc(o.EventTimestamp),
		); err != nil {
			return err
		}
		if _, err := tx.exec(ctx, `DELETE FROM order_items WHERE order_id = ?`, o.OrderID); err != nil {
			return err
		}
		for _, it := range items {
			if _, err := tx.exec(ctx, insertOrderItemSQL,
				o.OrderID, it.ItemID, it.ProductID, it.SupplierID, it.ProductName, it.VariantName,
				it.VariantAttributesJSON, it.ImageURL, it.SupplierName,
				it.Quantity, it.UnitPriceCents, it.FinalPriceCents, it.TotalCents,
				it.FulfillmentStatus, it.ShippedQuantity, it.TrackingNumber, it.Carrier,
				utcPtr(it.ShippedAt), utcPtr(it.DeliveredAt),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// CancelOrder sets status and reason only; every other column, including
// total_cents and the items, is left as the last snapshot wrote it.
func (s *Store) CancelOrder(ctx context.Context, orderID string, reason *string, audit Audit) error {
	return requireRow(s.db.exec(ctx,
		`UPDATE orders SET status = ?, cancel_reason = COALESCE(?, cancel_reason), event_id = ?, event_timestamp = ? WHERE order_id = ?`,
		OrderStatusCancelled, reason, audit.EventID, utc(audit.EventTimestamp), orderID,
	))
}
