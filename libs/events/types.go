package events

import (
	"fmt"
	"strings"
)

// Type is a domain event type of the form "<topic>.<action>".
type Type string

const (
	UserCreated Type = "user.created"
	UserUpdated Type = "user.updated"
	UserDeleted Type = "user.deleted"

	SupplierCreated Type = "supplier.created"
	SupplierUpdated Type = "supplier.updated"
	SupplierDeleted Type = "supplier.deleted"

	ProductCreated      Type = "product.created"
	ProductUpdated      Type = "product.updated"
	ProductPublished    Type = "product.published"
	ProductDiscontinued Type = "product.discontinued"
	ProductOutOfStock   Type = "product.out_of_stock"
	ProductRestored     Type = "product.restored"
	ProductDeleted      Type = "product.deleted"

	OrderCreated   Type = "order.created"
	OrderCancelled Type = "order.cancelled"

	PostCreated   Type = "post.created"
	PostUpdated   Type = "post.updated"
	PostPublished Type = "post.published"
	PostDeleted   Type = "post.deleted"
)

const (
	TopicUser     = "user"
	TopicSupplier = "supplier"
	TopicProduct  = "product"
	TopicOrder    = "order"
	TopicPost     = "post"
)

var allTypes = []Type{
	UserCreated, UserUpdated, UserDeleted,
	SupplierCreated, SupplierUpdated, SupplierDeleted,
	ProductCreated, ProductUpdated, ProductPublished, ProductDiscontinued,
	ProductOutOfStock, ProductRestored, ProductDeleted,
	OrderCreated, OrderCancelled,
	PostCreated, PostUpdated, PostPublished, PostDeleted,
}

// AllTypes returns every event type the platform emits.
func AllTypes() []Type {
	return append([]Type(nil), allTypes...)
}

// AllTopics returns every topic, one per domain.
func AllTopics() []string {
	return []string{TopicUser, TopicOrder, TopicPost, TopicProduct, TopicSupplier}
}

// ParseType validates the "<topic>.<action>" shape: exactly one separator
// with non-empty parts on both sides.
func ParseType(raw string) (Type, error) {
	if strings.Count(raw, ".") != 1 {
		return "", fmt.Errorf("event type %q must contain exactly one '.'", raw)
	}
	topic, action, _ := strings.Cut(raw, ".")
	if topic == "" || action == "" {
		return "", fmt.Errorf("event type %q has an empty topic or action", raw)
	}
	return Type(raw), nil
}

// Topic returns the substring before the separator.
func (t Type) Topic() string {
	topic, _, _ := strings.Cut(string(t), ".")
	return topic
}

// Action returns the substring after the separator.
func (t Type) Action() string {
	_, action, _ := strings.Cut(string(t), ".")
	return action
}

// Known reports whether t is part of the enumeration.
func (t Type) Known() bool {
	for _, k := range allTypes {
		if k == t {
			return true
		}
	}
	return false
}

func (t Type) String() string {
	return string(t)
}
