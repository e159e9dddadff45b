// Package projection flattens domain event payloads into relational rows.
package projection

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/registry"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/storage"
)

type UserStore interface {
	UpsertUser(ctx context.Context, row storage.UserRow) error
	SoftDeleteUser(ctx context.Context, userID string, deletedAt time.Time, audit storage.Audit) error
}

type SupplierStore interface {
	UpsertSupplier(ctx context.Context, row storage.SupplierRow) error
	DeleteSupplier(ctx context.Context, supplierID string) error
}

type ProductStore interface {
	UpsertProduct(ctx context.Context, row storage.ProductRow, variants []storage.VariantRow) error
	DeleteProduct(ctx context.Context, productID string) error
}

type OrderStore interface {
	UpsertOrder(ctx context.Context, row storage.OrderRow, items []storage.OrderItemRow) error
	CancelOrder(ctx context.Context, orderID string, reason *string, audit storage.Audit) error
}

type PostStore interface {
	UpsertPost(ctx context.Context, row storage.PostRow) error
	SoftDeletePost(ctx context.Context, postID string, deletedAt time.Time, audit storage.Audit) error
}

// Store is everything the projectors write. *storage.Store satisfies it.
type Store interface {
	UserStore
	SupplierStore
	ProductStore
	OrderStore
	PostStore
}

var _ Store = (*storage.Store)(nil)

// RegisterAll wires one projector per domain into r.
func RegisterAll(r *registry.Registry, store Store, logger *slog.Logger) error {
	projectors := []interface {
		Register(*registry.Registry) error
	}{
		NewUserProjector(store, logger),
		NewSupplierProjector(store, logger),
		NewProductProjector(store, logger),
		NewOrderProjector(store, logger),
		NewPostProjector(store, logger),
	}
	for _, p := range projectors {
		if err := p.Register(r); err != nil {
			return err
		}
	}
	return nil
}
