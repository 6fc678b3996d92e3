package domain

// CatalogService is one purchasable service, injected at bot construction.
// PricePerK is the unit price per 1000 units of quantity.
type CatalogService struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	PricePerK   int64  `json:"price_per_k"`
	MinQuantity int    `json:"min_quantity"`
	MaxQuantity int    `json:"max_quantity"`
}

// Price computes the total price for a quantity of this service.
func (s CatalogService) Price(quantity int) int64 {
	return s.PricePerK * int64(quantity) / 1000
}

// Catalog is a read-only view over the configured services.
type Catalog []CatalogService

// Categories returns the distinct category names in first-seen order.
func (c Catalog) Categories() []string {
	seen := make(map[string]bool)
	var categories []string
	for _, svc := range c {
		if !seen[svc.Category] {
			seen[svc.Category] = true
			categories = append(categories, svc.Category)
		}
	}
	return categories
}

// ByCategory returns the services belonging to a category.
func (c Catalog) ByCategory(category string) []CatalogService {
	var services []CatalogService
	for _, svc := range c {
		if svc.Category == category {
			services = append(services, svc)
		}
	}
	return services
}

// ByID looks up a service by id.
func (c Catalog) ByID(id string) (CatalogService, bool) {
	for _, svc := range c {
		if svc.ID == id {
			return svc, true
		}
	}
	return CatalogService{}, false
}
