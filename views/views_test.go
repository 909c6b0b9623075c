package views

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-marketplace/models"
)

var base = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

func sampleOrders() []models.Order {
	return []models.Order{
		{
			ID: "o1", OrderID: "ORD-20260501-AAAA", CreatedAt: base,
			OrderStatus: models.StatusPending, FinalAmount: models.Rupees(1040),
			Products: []models.LineItem{
				{ProductID: "p1", SellerID: "s1", Price: models.Rupees(500), Quantity: 2, ProductStatus: models.StatusShipped},
				{ProductID: "p2", SellerID: "s2", Price: models.Rupees(100), Quantity: 1, ProductStatus: models.StatusPending},
			},
		},
		{
			ID: "o2", OrderID: "ORD-20260502-BBBB", CreatedAt: base.Add(24 * time.Hour),
			OrderStatus: models.StatusCancelled, FinalAmount: models.Rupees(300),
			Products: []models.LineItem{
				{ProductID: "p3", SellerID: "s1", Price: models.Rupees(300), Quantity: 1, ProductStatus: models.StatusCancelled},
			},
		},
		{
			ID: "o3", OrderID: "ORD-20260503-CCCC", CreatedAt: base.Add(48 * time.Hour),
			OrderStatus: models.StatusDelivered, FinalAmount: models.Rupees(200),
			Products: []models.LineItem{
				{ProductID: "p2", SellerID: "s2", Price: models.Rupees(100), Quantity: 2, ProductStatus: models.StatusDelivered},
			},
		},
	}
}

func TestFilter(t *testing.T) {
	orders := sampleOrders()

	all := Filter{}.Apply(orders)
	require.Len(t, all, 3)
	assert.Equal(t, models.ID("o3"), all[0].ID, "newest first")

	assert.Len(t, Filter{Status: models.StatusCancelled}.Apply(orders), 1)
	assert.Len(t, Filter{From: base.Add(time.Hour)}.Apply(orders), 2)
	assert.Len(t, Filter{To: base.Add(time.Hour)}.Apply(orders), 1)
	assert.Len(t, Filter{Query: "bbbb"}.Apply(orders), 1)
}

func TestForSeller_OnlyOwnLines(t *testing.T) {
	so, ok := ForSeller(sampleOrders()[0], "s1")

	require.True(t, ok)
	require.Len(t, so.Products, 1)
	assert.Equal(t, models.ID("p1"), so.Products[0].ProductID)
	assert.Equal(t, models.Rupees(1000), so.SellerTotal)

	_, ok = ForSeller(sampleOrders()[2], "s1")
	assert.False(t, ok)
}

func TestSellerStats(t *testing.T) {
	s := SellerStats(SellerOrders(sampleOrders(), "s1"))

	assert.Equal(t, 2, s.Orders)
	assert.Equal(t, 1, s.ByStatus[models.StatusShipped])
	assert.Equal(t, 1, s.ByStatus[models.StatusCancelled])
	assert.Equal(t, models.Rupees(1000), s.Revenue)
}

func TestAdminStats(t *testing.T) {
	s := AdminStats(sampleOrders())

	assert.Equal(t, 3, s.Orders)
	assert.Equal(t, models.Rupees(1240), s.Revenue)
	assert.Equal(t, 1, s.ByStatus[models.StatusDelivered])
	assert.Equal(t, 0, s.Diverged)
}

func TestForAdmin_CarriesDerived(t *testing.T) {
	out := ForAdmin(sampleOrders())

	require.Len(t, out, 3)
	assert.Equal(t, models.StatusPending, out[0].Derived.WorstCase)
	assert.False(t, out[0].Derived.AllEqual)
}
