package events

import (
	"errors"
	"fmt"
	"testing"
)

func TestEveryTypeRoutesToAKnownTopic(t *testing.T) {
	topics := map[string]bool{}
	for _, topic := range AllTopics() {
		topics[topic] = true
	}
	seen := map[Type]bool{}
	for _, et := range AllTypes() {
		if seen[et] {
			t.Fatalf("duplicate type %s", et)
		}
		seen[et] = true
		if _, err := ParseType(string(et)); err != nil {
			t.Fatalf("%s: %v", et, err)
		}
		if !topics[et.Topic()] {
			t.Fatalf("%s routes to unknown topic %q", et, et.Topic())
		}
		if !et.Known() {
			t.Fatalf("%s not reported as known", et)
		}
	}
	if len(seen) != 19 {
		t.Fatalf("expected 19 event types, got %d", len(seen))
	}
}

func TestTopicAndAction(t *testing.T) {
	if ProductOutOfStock.Topic() != "product" || ProductOutOfStock.Action() != "out_of_stock" {
		t.Fatalf("unexpected split of %s", ProductOutOfStock)
	}
	if Type("invoice.paid").Known() {
		t.Fatal("invoice.paid is not part of the enumeration")
	}
}

func TestAllTypesReturnsCopy(t *testing.T) {
	a := AllTypes()
	a[0] = "mutated.value"
	if AllTypes()[0] != UserCreated {
		t.Fatal("AllTypes must not expose the backing slice")
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Fatal("Permanent(nil) must be nil")
	}
	base := errors.New("constraint")
	wrapped := fmt.Errorf("upsert: %w", Permanent(base))
	if !IsPermanent(wrapped) {
		t.Fatal("expected wrapped permanent error to be detected")
	}
	if !errors.Is(wrapped, base) {
		t.Fatal("Permanent must keep the cause reachable")
	}
	if IsPermanent(base) {
		t.Fatal("plain errors are retryable")
	}
}
