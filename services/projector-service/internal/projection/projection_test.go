package projection

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/md-rashed-zaman/shopsync/libs/events"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/registry"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/storage"
)

type fakeStore struct {
	users     map[string]storage.UserRow
	suppliers map[string]storage.SupplierRow
	products  map[string]storage.ProductRow
	variants  map[string][]storage.VariantRow
	orders    map[string]storage.OrderRow
	items     map[string][]storage.OrderItemRow
	posts     map[string]storage.PostRow
	err       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     map[string]storage.UserRow{},
		suppliers: map[string]storage.SupplierRow{},
		products:  map[string]storage.ProductRow{},
		variants:  map[string][]storage.VariantRow{},
		orders:    map[string]storage.OrderRow{},
		items:     map[string][]storage.OrderItemRow{},
		posts:     map[string]storage.PostRow{},
	}
}

func (f *fakeStore) UpsertUser(_ context.Context, row storage.UserRow) error {
	if f.err != nil {
		return f.err
	}
	f.users[row.UserID] = row
	return nil
}

func (f *fakeStore) SoftDeleteUser(_ context.Context, id string, at time.Time, audit storage.Audit) error {
	row, ok := f.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	row.DeletedAt = &at
	row.Audit = audit
	f.users[id] = row
	return nil
}

func (f *fakeStore) UpsertSupplier(_ context.Context, row storage.SupplierRow) error {
	f.suppliers[row.SupplierID] = row
	return nil
}

func (f *fakeStore) DeleteSupplier(_ context.Context, id string) error {
	if _, ok := f.suppliers[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.suppliers, id)
	return nil
}

func (f *fakeStore) UpsertProduct(_ context.Context, row storage.ProductRow, variants []storage.VariantRow) error {
	f.products[row.ProductID] = row
	f.variants[row.ProductID] = variants
	return nil
}

func (f *fakeStore) DeleteProduct(_ context.Context, id string) error {
	if _, ok := f.products[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.products, id)
	delete(f.variants, id)
	return nil
}

func (f *fakeStore) UpsertOrder(_ context.Context, row storage.OrderRow, items []storage.OrderItemRow) error {
	f.orders[row.OrderID] = row
	f.items[row.OrderID] = items
	return nil
}

func (f *fakeStore) CancelOrder(_ context.Context, id string, reason *string, audit storage.Audit) error {
	row, ok := f.orders[id]
	if !ok {
		return storage.ErrNotFound
	}
	row.Status = storage.OrderStatusCancelled
	if reason != nil {
		row.CancelReason = reason
	}
	row.Audit = audit
	f.orders[id] = row
	return nil
}

func (f *fakeStore) UpsertPost(_ context.Context, row storage.PostRow) error {
	f.posts[row.PostID] = row
	return nil
}

func (f *fakeStore) SoftDeletePost(_ context.Context, id string, at time.Time, audit storage.Audit) error {
	row, ok := f.posts[id]
	if !ok {
		return storage.ErrNotFound
	}
	row.DeletedAt = &at
	row.Audit = audit
	f.posts[id] = row
	return nil
}

var envTime = time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRegistry(t *testing.T, store Store) *registry.Registry {
	t.Helper()
	r := registry.New()
	if err := RegisterAll(r, store, discardLogger()); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	r.Seal()
	return r
}

func envelope(t *testing.T, et events.Type, entityID string, data any) events.Envelope {
	t.Helper()
	env, err := events.NewEnvelope(et, entityID, data, envTime)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	return env
}

func apply(t *testing.T, r *registry.Registry, env events.Envelope) error {
	t.Helper()
	h, ok := r.Lookup(env.EventType)
	if !ok {
		t.Fatalf("no handler for %s", env.EventType)
	}
	return h(context.Background(), env)
}

func decodeJSON(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

func TestEveryEventTypeHasAProjector(t *testing.T) {
	r := newRegistry(t, newFakeStore())
	if err := r.Validate(events.AllTypes()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestUserFlattening(t *testing.T) {
	store := newFakeStore()
	r := newRegistry(t, store)
	data := decodeJSON(t, `{
		"contact_info": {"primary_email": "ada@example.com", "phone": "+1"},
		"profile": {"display_name": "Ada", "bio": "math"},
		"version": 3,
		"created_at": "2026-01-01T10:00:00Z",
		"updated_at": "2026-01-02T10:00:00.123456"
	}`)
	if err := apply(t, r, envelope(t, events.UserCreated, "u1", data)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	u := store.users["u1"]
	if u.Email != "ada@example.com" || u.DisplayName != "Ada" || *u.Bio != "math" || u.Avatar != nil {
		t.Fatalf("unexpected user row %+v", u)
	}
	if u.Version == nil || *u.Version != 3 {
		t.Fatalf("unexpected version %v", u.Version)
	}
	if !u.CreatedAt.Equal(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected created_at %s", u.CreatedAt)
	}
	if !u.UpdatedAt.Equal(time.Date(2026, 1, 2, 10, 0, 0, 123456000, time.UTC)) {
		t.Fatalf("zone-less timestamp must parse as UTC, got %s", u.UpdatedAt)
	}
}

func TestMissingNestedObjectsDoNotPanic(t *testing.T) {
	store := newFakeStore()
	r := newRegistry(t, store)
	cases := []events.Type{
		events.UserCreated, events.SupplierCreated, events.ProductCreated, events.OrderCreated, events.PostCreated,
	}
	for _, et := range cases {
		if err := apply(t, r, envelope(t, et, "x1", map[string]any{})); err != nil {
			t.Fatalf("%s with empty payload: %v", et, err)
		}
	}
	if !store.users["x1"].CreatedAt.Equal(envTime) {
		t.Fatal("missing created_at must fall back to the envelope timestamp")
	}
	if len(store.variants["x1"]) != 0 || len(store.items["x1"]) != 0 {
		t.Fatal("expected no children for empty payloads")
	}
}

func TestUserDeletedUsesPayloadOrEnvelopeTime(t *testing.T) {
	store := newFakeStore()
	r := newRegistry(t, store)
	_ = apply(t, r, envelope(t, events.UserCreated, "u1", nil))
	_ = apply(t, r, envelope(t, events.UserCreated, "u2", nil))

	if err := apply(t, r, envelope(t, events.UserDeleted, "u1", map[string]any{"deleted_at": "2026-03-01T00:00:00Z"})); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := apply(t, r, envelope(t, events.UserDeleted, "u2", nil)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := store.users["u1"].DeletedAt; got == nil || !got.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected deleted_at %v", got)
	}
	if got := store.users["u2"].DeletedAt; got == nil || !got.Equal(envTime) {
		t.Fatalf("expected envelope time, got %v", got)
	}
}

func TestMinimalEventForMissingRowIsNoop(t *testing.T) {
	store := newFakeStore()
	r := newRegistry(t, store)
	for _, et := range []events.Type{events.UserDeleted, events.PostDeleted, events.OrderCancelled, events.SupplierDeleted, events.ProductDeleted} {
		if err := apply(t, r, envelope(t, et, "ghost", nil)); err != nil {
			t.Fatalf("%s on missing row: %v", et, err)
		}
	}
}

func TestStoreErrorsPropagate(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection reset")
	r := newRegistry(t, store)
	if err := apply(t, r, envelope(t, events.UserCreated, "u1", nil)); err == nil {
		t.Fatal("expected store error")
	}
}

func TestEnvelopeProblemsArePermanent(t *testing.T) {
	r := newRegistry(t, newFakeStore())
	env := envelope(t, events.UserCreated, "", nil)
	if err := apply(t, r, env); !events.IsPermanent(err) {
		t.Fatalf("missing entity_id: expected permanent error, got %v", err)
	}
	env = envelope(t, events.UserCreated, "u1", nil)
	env.Timestamp = "not a time"
	if err := apply(t, r, env); !events.IsPermanent(err) {
		t.Fatalf("bad timestamp: expected permanent error, got %v", err)
	}
	env = envelope(t, events.UserCreated, "u1", nil)
	env.Data = []byte(`{"version":"three"}`)
	if err := apply(t, r, env); !events.IsPermanent(err) {
		t.Fatalf("payload shape: expected permanent error, got %v", err)
	}
}

const productJSON = `{
	"supplier_id": "s1",
	"supplier_info": {"name": "Acme"},
	"name": "Desk Lamp",
	"category": "home_garden",
	"unit_type": "piece",
	"metadata": {"base_sku": "LMP", "brand": "Lumo"},
	"base_price_cents": 4500,
	"status": "active",
	"stats": {"view_count": 10, "purchase_count": 2},
	"variants": {
		"white": {"variant_id": "v-w", "variant_name": "White", "attributes": [{"attribute_name": "Color", "attribute_value": "White"}], "price_cents": 4500, "quantity": 3, "package_dimensions": {"width_cm": 10.5}},
		"black": {"variant_id": "v-b", "variant_name": "Black", "price_cents": 4700, "cost_cents": 2000}
	},
	"published_at": "2026-01-05T00:00:00Z"
}`

func TestProductSnapshotEvents(t *testing.T) {
	store := newFakeStore()
	r := newRegistry(t, store)
	data := decodeJSON(t, productJSON)
	for _, et := range productSnapshotTypes {
		data["status"] = et.Action()
		if err := apply(t, r, envelope(t, et, "p1", data)); err != nil {
			t.Fatalf("%s: %v", et, err)
		}
		if store.products["p1"].Status != et.Action() {
			t.Fatalf("%s did not overwrite status", et)
		}
	}

	p := store.products["p1"]
	if p.Name != "Desk Lamp" || *p.SupplierName != "Acme" || *p.BaseSKU != "LMP" || p.ViewCount != 10 || p.PurchaseCount != 2 {
		t.Fatalf("unexpected product row %+v", p)
	}
	v := store.variants["p1"]
	if len(v) != 2 || v[0].VariantKey != "black" || v[1].VariantKey != "white" {
		t.Fatalf("expected variants sorted by key, got %+v", v)
	}
	if *v[0].CostCents != 2000 || v[0].AttributesJSON != nil {
		t.Fatalf("unexpected black variant %+v", v[0])
	}
	if *v[1].AttributesJSON != `[{"attribute_name":"Color","attribute_value":"White"}]` || *v[1].WidthCM != 10.5 || v[1].HeightCM != nil {
		t.Fatalf("unexpected white variant %+v", v[1])
	}

	if err := apply(t, r, envelope(t, events.ProductDeleted, "p1", nil)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := store.products["p1"]; ok {
		t.Fatal("product.deleted must hard delete")
	}
}

func TestOrderTotals(t *testing.T) {
	store := newFakeStore()
	r := newRegistry(t, store)
	data := decodeJSON(t, `{
		"order_number": "ORD-9",
		"customer": {"user_id": "u1", "display_name": "Ada"},
		"items": [
			{"item_id": "i1", "product_snapshot": {"product_id": "p1", "supplier_id": "s1", "variant_attributes": {"Color": "White"}}, "quantity": 2, "unit_price_cents": 1500, "final_price_cents": 1200},
			{"item_id": "i2", "product_snapshot": {"product_id": "p2", "supplier_id": "s1"}, "quantity": 1, "unit_price_cents": 500, "total_cents": 450}
		],
		"shipping_address": {"recipient_name": "Ada", "city": "London", "country": "GB"},
		"status": "pending"
	}`)
	if err := apply(t, r, envelope(t, events.OrderCreated, "o1", data)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	o := store.orders["o1"]
	if o.TotalCents != 2400+450 {
		t.Fatalf("expected total from items, got %d", o.TotalCents)
	}
	if o.CustomerUserID != "u1" || *o.ShippingCity != "London" || *o.ShippingCountry != "GB" || o.ShippingStreet1 != nil {
		t.Fatalf("unexpected order row %+v", o)
	}
	items := store.items["o1"]
	if len(items) != 2 || items[0].TotalCents != 2400 || items[1].FinalPriceCents != 500 {
		t.Fatalf("unexpected items %+v", items)
	}
	if *items[0].VariantAttributesJSON != `{"Color":"White"}` {
		t.Fatalf("unexpected attributes %s", *items[0].VariantAttributesJSON)
	}
}

func TestPostLifecycle(t *testing.T) {
	store := newFakeStore()
	r := newRegistry(t, store)
	data := decodeJSON(t, `{
		"post_type": "link",
		"author": {"user_id": "u1", "display_name": "Ada", "author_type": "leader"},
		"text_content": "read this",
		"media": [{"media_type": "image", "media_url": "https://img/1.png"}],
		"link_preview": {"url": "https://example.com", "title": "Example"},
		"stats": {"like_count": 4, "engagement_rate": 1.5, "last_comment_at": "2026-01-03T00:00:00Z"}
	}`)
	for _, et := range []events.Type{events.PostCreated, events.PostPublished} {
		if err := apply(t, r, envelope(t, et, "po1", data)); err != nil {
			t.Fatalf("%s: %v", et, err)
		}
	}
	p := store.posts["po1"]
	if p.AuthorUserID != "u1" || *p.LinkURL != "https://example.com" || p.LikeCount != 4 || p.EngagementRate != 1.5 || p.LastCommentAt == nil {
		t.Fatalf("unexpected post row %+v", p)
	}
	if *p.MediaJSON != `[{"media_type":"image","media_url":"https://img/1.png"}]` {
		t.Fatalf("unexpected media %s", *p.MediaJSON)
	}
	if err := apply(t, r, envelope(t, events.PostDeleted, "po1", nil)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.posts["po1"].DeletedAt == nil {
		t.Fatal("post.deleted must soft delete")
	}
}

func TestSupplierFlattening(t *testing.T) {
	store := newFakeStore()
	r := newRegistry(t, store)
	data := decodeJSON(t, `{
		"contact_info": {"primary_email": "ops@acme.io", "primary_phone": "+1-555"},
		"company_info": {"legal_name": "Acme Inc", "business_address": {"street_address_1": "1 Main", "city": "Austin", "country": "US"}},
		"business_info": {"timezone": "America/Chicago"}
	}`)
	if err := apply(t, r, envelope(t, events.SupplierUpdated, "s1", data)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	s := store.suppliers["s1"]
	if s.Email != "ops@acme.io" || s.LegalName != "Acme Inc" || *s.City != "Austin" || *s.Timezone != "America/Chicago" || s.DBAName != nil {
		t.Fatalf("unexpected supplier row %+v", s)
	}
}

func TestOrderCreatedThenCancelled(t *testing.T) {
	store := newFakeStore()
	r := newRegistry(t, store)
	created := decodeJSON(t, `{"order_number": "ORD-1", "customer": {"user_id": "u1"}, "status": "pending", "total_cents": 10000,
		"items": [{"item_id": "i1", "product_snapshot": {"product_id": "p1", "supplier_id": "s1"}, "quantity": 1, "unit_price_cents": 10000}]}`)
	if err := apply(t, r, envelope(t, events.OrderCreated, "o1", created)); err != nil {
		t.Fatalf("order.created: %v", err)
	}
	if err := apply(t, r, envelope(t, events.OrderCancelled, "o1", map[string]any{"reason": "changed mind"})); err != nil {
		t.Fatalf("order.cancelled: %v", err)
	}
	got := store.orders["o1"]
	if got.Status != "cancelled" || got.TotalCents != 10000 || *got.CancelReason != "changed mind" {
		t.Fatalf("unexpected order %+v", got)
	}
	if len(store.items["o1"]) != 1 {
		t.Fatalf("cancel must keep items, got %d", len(store.items["o1"]))
	}
}

func TestReplayOnSQLite(t *testing.T) {
	s, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "p.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	r := newRegistry(t, s)

	stream := []events.Envelope{
		envelope(t, events.UserCreated, "u1", decodeJSON(t, `{"contact_info": {"primary_email": "a@x"}, "profile": {"display_name": "A"}}`)),
		envelope(t, events.SupplierCreated, "s1", decodeJSON(t, `{"contact_info": {"primary_email": "s@x", "primary_phone": "1"}, "company_info": {"legal_name": "Acme"}}`)),
		envelope(t, events.ProductCreated, "p1", decodeJSON(t, productJSON)),
		envelope(t, events.OrderCreated, "o1", decodeJSON(t, `{"order_number": "ORD-1", "customer": {"user_id": "u1"}, "status": "pending", "total_cents": 10000}`)),
		envelope(t, events.OrderCancelled, "o1", map[string]any{"reason": "changed mind"}),
		envelope(t, events.PostCreated, "po1", decodeJSON(t, `{"post_type": "text", "author": {"user_id": "u1"}, "media": []}`)),
		envelope(t, events.PostDeleted, "po1", nil),
		envelope(t, events.UserDeleted, "u1", nil),
	}
	// At-least-once delivery: the whole stream arrives twice.
	for pass := 0; pass < 2; pass++ {
		for _, env := range stream {
			if err := apply(t, r, env); err != nil {
				t.Fatalf("pass %d %s: %v", pass, env.EventType, err)
			}
		}
	}
	if err := apply(t, r, envelope(t, events.ProductDeleted, "p1", nil)); err != nil {
		t.Fatalf("product.deleted: %v", err)
	}
	if err := apply(t, r, envelope(t, events.ProductDeleted, "p1", nil)); err != nil {
		t.Fatalf("repeated product.deleted: %v", err)
	}
}

func TestOrderItemsWithoutIDs(t *testing.T) {
	store := newFakeStore()
	r := newRegistry(t, store)
	data := decodeJSON(t, `{
		"order_number": "ORD-7",
		"items": [
			{"quantity": 1, "unit_price_cents": 100},
			{"quantity": 2, "unit_price_cents": 100},
			{"item_id": "i1", "quantity": 1, "unit_price_cents": 300},
			{"item_id": "i1", "quantity": 5, "unit_price_cents": 300}
		]
	}`)
	if err := apply(t, r, envelope(t, events.OrderCreated, "o7", data)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	items := store.items["o7"]
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %+v", items)
	}
	for i, want := range []string{"#1", "#2", "i1"} {
		if items[i].ItemID != want {
			t.Fatalf("item %d: expected id %q, got %q", i, want, items[i].ItemID)
		}
	}
	if items[2].Quantity != 1 {
		t.Fatalf("expected first i1 to win, got quantity %d", items[2].Quantity)
	}
	if store.orders["o7"].TotalCents != 100+200+300 {
		t.Fatalf("unexpected total %d", store.orders["o7"].TotalCents)
	}
}

func TestOrderItemsWithoutIDsOnSQLite(t *testing.T) {
	s, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "o.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	r := newRegistry(t, s)

	env := envelope(t, events.OrderCreated, "o1", decodeJSON(t, `{
		"order_number": "ORD-1",
		"items": [{"quantity": 1, "unit_price_cents": 500}, {"quantity": 3, "unit_price_cents": 200}]
	}`))
	for pass := 0; pass < 2; pass++ {
		if err := apply(t, r, env); err != nil {
			t.Fatalf("pass %d: %v", pass, err)
		}
	}
}

func TestNumericFieldsAcceptStrings(t *testing.T) {
	store := newFakeStore()
	r := newRegistry(t, store)
	order := decodeJSON(t, `{
		"total_cents": "10000",
		"items": [{"item_id": "i1", "quantity": "2", "unit_price_cents": 1500.0, "shipped_quantity": "n/a"}]
	}`)
	if err := apply(t, r, envelope(t, events.OrderCreated, "o1", order)); err != nil {
		t.Fatalf("order.created: %v", err)
	}
	if got := store.orders["o1"].TotalCents; got != 10000 {
		t.Fatalf("expected total 10000, got %d", got)
	}
	it := store.items["o1"][0]
	if it.Quantity != 2 || it.UnitPriceCents != 1500 || it.ShippedQuantity != 0 {
		t.Fatalf("unexpected item %+v", it)
	}

	product := decodeJSON(t, `{
		"name": "Tote",
		"base_price_cents": "1500",
		"variants": {"a": {"cost_cents": "unknown", "package_dimensions": {"width_cm": "12.5", "height_cm": true}}}
	}`)
	if err := apply(t, r, envelope(t, events.ProductCreated, "p1", product)); err != nil {
		t.Fatalf("product.created: %v", err)
	}
	if store.products["p1"].BasePriceCents != 1500 {
		t.Fatalf("unexpected product %+v", store.products["p1"])
	}
	v := store.variants["p1"][0]
	if v.CostCents != nil || v.HeightCM != nil || v.WidthCM == nil || *v.WidthCM != 12.5 {
		t.Fatalf("unexpected variant %+v", v)
	}
}

func TestIntField(t *testing.T) {
	cases := []struct {
		raw  string
		v    int64
		isOK bool
	}{
		{`42`, 42, true},
		{`-7`, -7, true},
		{`"10000"`, 10000, true},
		{`" 3 "`, 3, true},
		{`100.0`, 100, true},
		{`1.5`, 0, false},
		{`""`, 0, false},
		{`"abc"`, 0, false},
		{`true`, 0, false},
		{`{"a":1}`, 0, false},
		{`null`, 0, false},
	}
	for _, tc := range cases {
		var f intField
		if err := json.Unmarshal([]byte(tc.raw), &f); err != nil {
			t.Fatalf("%s: unexpected error %v", tc.raw, err)
		}
		if f.v != tc.v || f.ok != tc.isOK {
			t.Fatalf("%s: got %d/%v, want %d/%v", tc.raw, f.v, f.ok, tc.v, tc.isOK)
		}
	}
}
