package stock

import (
	"sort"

	"github.com/google/uuid"

	"github.com/crumbsandco/crumbs-backend/pkg/enums"
)

// Demand is the quantity of one flavor/size pair an order needs. Checkout
// aggregates a cart's flavor selections into demands before touching stock.
type Demand struct {
	FlavorID uuid.UUID
	Size     enums.CookieSize
	Quantity int
}

type demandKey struct {
	flavorID uuid.UUID
	size     enums.CookieSize
}

// AggregateDemands merges duplicate flavor/size pairs so each pair is
// reserved exactly once. Output order is deterministic.
func AggregateDemands(demands []Demand) []Demand {
	totals := map[demandKey]int{}
	for _, d := range demands {
		totals[demandKey{flavorID: d.FlavorID, size: d.Size}] += d.Quantity
	}

	merged := make([]Demand, 0, len(totals))
	for key, qty := range totals {
		merged = append(merged, Demand{FlavorID: key.flavorID, Size: key.size, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].FlavorID != merged[j].FlavorID {
			return merged[i].FlavorID.String() < merged[j].FlavorID.String()
		}
		return merged[i].Size < merged[j].Size
	})
	return merged
}
