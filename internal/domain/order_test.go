package domain

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"pending to paid", OrderStatusPending, OrderStatusPaid, true},
		{"pending to cancelled", OrderStatusPending, OrderStatusCancelled, true},
		{"pending to failed", OrderStatusPending, OrderStatusFailed, true},
		{"paid to completed", OrderStatusPaid, OrderStatusCompleted, true},
		{"paid to pending", OrderStatusPaid, OrderStatusPending, false},
		{"completed to paid", OrderStatusCompleted, OrderStatusPaid, false},
		{"completed to completed", OrderStatusCompleted, OrderStatusCompleted, false},
		{"cancelled to paid", OrderStatusCancelled, OrderStatusPaid, false},
		{"failed to completed", OrderStatusFailed, OrderStatusCompleted, false},
		{"unknown from", OrderStatus("refunded"), OrderStatusPaid, false},
		{"unknown to", OrderStatusPending, OrderStatus("refunded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestCatalogPrice(t *testing.T) {
	svc := CatalogService{ID: "svc-1", PricePerK: 5000}

	if got := svc.Price(1000); got != 5000 {
		t.Errorf("expected price 5000 for 1000 units, got %d", got)
	}
	if got := svc.Price(500); got != 2500 {
		t.Errorf("expected price 2500 for 500 units, got %d", got)
	}
}

func TestCatalogLookups(t *testing.T) {
	catalog := Catalog{
		{ID: "ig-f", Name: "1K Followers", Category: "Instagram"},
		{ID: "ig-l", Name: "Likes", Category: "Instagram"},
		{ID: "tt-v", Name: "Views", Category: "TikTok"},
	}

	categories := catalog.Categories()
	if len(categories) != 2 || categories[0] != "Instagram" || categories[1] != "TikTok" {
		t.Errorf("unexpected categories: %v", categories)
	}

	if services := catalog.ByCategory("Instagram"); len(services) != 2 {
		t.Errorf("expected 2 Instagram services, got %d", len(services))
	}

	if _, ok := catalog.ByID("tt-v"); !ok {
		t.Error("expected to find service tt-v")
	}
	if _, ok := catalog.ByID("missing"); ok {
		t.Error("did not expect to find service 'missing'")
	}
}
