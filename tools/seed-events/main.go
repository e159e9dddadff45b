package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/shopsync/libs/events"
	"github.com/md-rashed-zaman/shopsync/libs/producer"
	"github.com/md-rashed-zaman/shopsync/libs/runtime"
)

// seed-events publishes one linked set of user, supplier, product, order and
// post events so a local projector has something to apply.
func main() {
	cfg, err := producer.ConfigFromEnv()
	if err != nil {
		fatal(err.Error())
	}
	var (
		brokers = flag.String("brokers", cfg.Brokers, "comma separated kafka brokers")
		count   = flag.Int("orders", 3, "number of orders to create")
		cancel  = flag.Bool("cancel-last", true, "cancel the last order")
		timeout = flag.Duration("flush-timeout", 10*time.Second, "how long to wait for delivery")
	)
	flag.Parse()
	cfg.Brokers = *brokers

	logger := runtime.NewLogger("seed-events")
	p := producer.New(logger, cfg)
	ctx := context.Background()
	now := time.Now().UTC()

	userID := uuid.NewString()
	supplierID := uuid.NewString()
	productID := uuid.NewString()
	postID := uuid.NewString()

	p.Emit(ctx, events.UserCreated, userID, map[string]any{
		"contact_info": map[string]any{"primary_email": "ada@example.com", "phone": "+15550100"},
		"profile":      map[string]any{"display_name": "Ada", "bio": "Buys things"},
		"version":      1,
		"created_at":   now.Format(time.RFC3339),
		"updated_at":   now.Format(time.RFC3339),
	})
	p.Emit(ctx, events.SupplierCreated, supplierID, map[string]any{
		"contact_info": map[string]any{"primary_email": "ops@acme.test", "contact_person_name": "Grace"},
		"company_info": map[string]any{
			"legal_name": "Acme Supply LLC",
			"business_address": map[string]any{
				"street_address_1": "1 Main St", "city": "Springfield", "state": "IL", "zip_code": "62701", "country": "US",
			},
		},
		"business_info": map[string]any{"support_email": "help@acme.test", "timezone": "America/Chicago"},
	})

	variants := map[string]any{
		"small": map[string]any{"variant_name": "Small", "price_cents": 1500, "quantity": 40, "attributes": map[string]any{"size": "S"}},
		"large": map[string]any{"variant_name": "Large", "price_cents": 2500, "quantity": 10, "attributes": map[string]any{"size": "L"}},
	}
	product := map[string]any{
		"supplier_id":      supplierID,
		"supplier_info":    map[string]any{"name": "Acme Supply"},
		"name":             "Canvas Tote",
		"category":         "bags",
		"base_price_cents": 1500,
		"status":           "draft",
		"metadata":         map[string]any{"base_sku": "TOTE", "brand": "Acme"},
		"variants":         variants,
	}
	p.Emit(ctx, events.ProductCreated, productID, product)
	product["status"] = "active"
	product["published_at"] = now.Format(time.RFC3339)
	p.Emit(ctx, events.ProductPublished, productID, product)

	var lastOrder string
	for i := 1; i <= *count; i++ {
		lastOrder = uuid.NewString()
		p.Emit(ctx, events.OrderCreated, lastOrder, map[string]any{
			"order_number": fmt.Sprintf("SO-%d-%03d", now.Unix(), i),
			"customer":     map[string]any{"user_id": userID, "display_name": "Ada", "email": "ada@example.com"},
			"status":       "pending",
			"items": []any{
				map[string]any{
					"item_id":          "1",
					"product_snapshot": map[string]any{"product_id": productID, "supplier_id": supplierID, "product_name": "Canvas Tote", "variant_name": "Large"},
					"quantity":         i,
					"unit_price_cents": 2500,
				},
			},
			"created_at": now.Format(time.RFC3339),
		})
	}
	if *cancel && lastOrder != "" {
		p.Emit(ctx, events.OrderCancelled, lastOrder, map[string]any{"reason": "customer request"})
	}

	p.Emit(ctx, events.PostCreated, postID, map[string]any{
		"post_type":    "product_share",
		"author":       map[string]any{"user_id": userID, "display_name": "Ada", "author_type": "user"},
		"text_content": "New tote just dropped",
		"published_at": now.Format(time.RFC3339),
	})

	if err := p.Close(*timeout); err != nil {
		fatal(err.Error())
	}
	if n := p.Failed(); n > 0 {
		fatal(fmt.Sprintf("%d events failed delivery", n))
	}
	logger.Info("seed events published", "user_id", userID, "product_id", productID, "orders", *count)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
