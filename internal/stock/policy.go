package stock

import (
	"github.com/google/uuid"

	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
)

// Shortfall describes one flavor/size pair that cannot be satisfied.
type Shortfall struct {
	FlavorID   uuid.UUID        `json:"flavor_id"`
	FlavorName string           `json:"flavor_name"`
	Size       enums.CookieSize `json:"size"`
	Requested  int              `json:"requested"`
	Available  int              `json:"available"`
}

// CheckAvailability compares aggregated demands against the given flavor
// rows and returns every shortfall. It reads nothing and writes nothing;
// callers decide whether a shortfall blocks the order. An empty result
// means the whole demand set fits current stock.
//
// A demand for a flavor missing from flavors is reported as available 0.
func CheckAvailability(flavors []models.Flavor, demands []Demand) []Shortfall {
	byID := make(map[uuid.UUID]models.Flavor, len(flavors))
	for _, f := range flavors {
		byID[f.ID] = f
	}

	var shortfalls []Shortfall
	for _, d := range AggregateDemands(demands) {
		flavor, ok := byID[d.FlavorID]
		if !ok {
			shortfalls = append(shortfalls, Shortfall{
				FlavorID:  d.FlavorID,
				Size:      d.Size,
				Requested: d.Quantity,
				Available: 0,
			})
			continue
		}
		available := flavor.StockFor(d.Size)
		if available < d.Quantity {
			shortfalls = append(shortfalls, Shortfall{
				FlavorID:   d.FlavorID,
				FlavorName: flavor.Name,
				Size:       d.Size,
				Requested:  d.Quantity,
				Available:  available,
			})
		}
	}
	return shortfalls
}
