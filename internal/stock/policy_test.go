package stock

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
)

func TestAggregateDemandsMergesPairs(t *testing.T) {
	flavorA := uuid.New()
	flavorB := uuid.New()

	merged := AggregateDemands([]Demand{
		{FlavorID: flavorA, Size: enums.CookieSizeMini, Quantity: 2},
		{FlavorID: flavorB, Size: enums.CookieSizeLarge, Quantity: 1},
		{FlavorID: flavorA, Size: enums.CookieSizeMini, Quantity: 3},
		{FlavorID: flavorA, Size: enums.CookieSizeMedium, Quantity: 1},
	})

	require.Len(t, merged, 3)
	totals := map[string]int{}
	for _, d := range merged {
		totals[d.FlavorID.String()+"/"+d.Size.String()] = d.Quantity
	}
	assert.Equal(t, 5, totals[flavorA.String()+"/mini"])
	assert.Equal(t, 1, totals[flavorA.String()+"/medium"])
	assert.Equal(t, 1, totals[flavorB.String()+"/large"])
}

func TestCheckAvailabilityAllInStock(t *testing.T) {
	flavor := models.Flavor{ID: uuid.New(), Name: "Pistachio", StockMini: 10, StockMedium: 5}

	shortfalls := CheckAvailability([]models.Flavor{flavor}, []Demand{
		{FlavorID: flavor.ID, Size: enums.CookieSizeMini, Quantity: 10},
		{FlavorID: flavor.ID, Size: enums.CookieSizeMedium, Quantity: 5},
	})
	assert.Empty(t, shortfalls)
}

func TestCheckAvailabilityReportsShortfalls(t *testing.T) {
	flavor := models.Flavor{ID: uuid.New(), Name: "Lotus", StockMini: 2, StockLarge: 0}

	shortfalls := CheckAvailability([]models.Flavor{flavor}, []Demand{
		{FlavorID: flavor.ID, Size: enums.CookieSizeMini, Quantity: 3},
		{FlavorID: flavor.ID, Size: enums.CookieSizeLarge, Quantity: 1},
	})

	require.Len(t, shortfalls, 2)
	for _, sf := range shortfalls {
		assert.Equal(t, flavor.ID, sf.FlavorID)
		assert.Equal(t, "Lotus", sf.FlavorName)
		assert.Greater(t, sf.Requested, sf.Available)
	}
}

func TestCheckAvailabilityAggregatesBeforeComparing(t *testing.T) {
	// Two demands of 3 each against a stock of 5 must fail together even
	// though each alone would fit.
	flavor := models.Flavor{ID: uuid.New(), Name: "Choc Chip", StockMedium: 5}

	shortfalls := CheckAvailability([]models.Flavor{flavor}, []Demand{
		{FlavorID: flavor.ID, Size: enums.CookieSizeMedium, Quantity: 3},
		{FlavorID: flavor.ID, Size: enums.CookieSizeMedium, Quantity: 3},
	})

	require.Len(t, shortfalls, 1)
	assert.Equal(t, 6, shortfalls[0].Requested)
	assert.Equal(t, 5, shortfalls[0].Available)
}

func TestCheckAvailabilityUnknownFlavor(t *testing.T) {
	missing := uuid.New()

	shortfalls := CheckAvailability(nil, []Demand{
		{FlavorID: missing, Size: enums.CookieSizeMini, Quantity: 1},
	})

	require.Len(t, shortfalls, 1)
	assert.Equal(t, missing, shortfalls[0].FlavorID)
	assert.Equal(t, 0, shortfalls[0].Available)
}
