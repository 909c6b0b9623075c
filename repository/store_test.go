package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-marketplace/apperr"
	"go-marketplace/models"
	"go-marketplace/utils"
)

// Both stores run the same behaviour checks. The Mongo run needs MONGO_URI
// and uses a throwaway database.

func TestMemoryStoreBehaviour(t *testing.T) {
	runStoreBehaviour(t, func(t *testing.T) *Store { return NewMemoryStore() })
}

func TestMongoStoreBehaviour(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := utils.ConnectDB(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	runStoreBehaviour(t, func(t *testing.T) *Store {
		db := client.Database(fmt.Sprintf("marketplace_test_%d", time.Now().UnixNano()))
		t.Cleanup(func() { _ = db.Drop(context.Background()) })
		require.NoError(t, EnsureIndexes(ctx, db))
		return NewMongoStore(db)
	})
}

func runStoreBehaviour(t *testing.T, newStore func(t *testing.T) *Store) {
	t.Run("cart writes never lose a line", func(t *testing.T) {
		testConcurrentCartWrites(t, newStore(t))
	})
	t.Run("failed cart update saves nothing", func(t *testing.T) {
		testFailedCartUpdate(t, newStore(t))
	})
	t.Run("address default promotion", func(t *testing.T) {
		testAddressDefaults(t, newStore(t))
	})
	t.Run("order writes", func(t *testing.T) {
		testOrderWrites(t, newStore(t))
	})
}

// Concurrent updates of different lines either land or report Conflict;
// none is silently overwritten.
func testConcurrentCartWrites(t *testing.T, s *Store) {
	ctx := context.Background()
	const writers = 4

	var wg sync.WaitGroup
	results := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.Carts.UpdateCart(ctx, "u1", func(c *models.Cart) error {
				c.Products = append(c.Products, models.CartLine{ProductID: models.ID(fmt.Sprintf("p%d", i)), Quantity: 1})
				return nil
			})
		}(i)
	}
	wg.Wait()

	want := map[models.ID]bool{}
	for i, err := range results {
		if err != nil {
			assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
			continue
		}
		want[models.ID(fmt.Sprintf("p%d", i))] = true
	}
	require.NotEmpty(t, want, "at least one writer succeeds")

	cart, err := s.Carts.GetCart(ctx, "u1")
	require.NoError(t, err)
	got := map[models.ID]bool{}
	for _, l := range cart.Products {
		got[l.ProductID] = true
	}
	assert.Equal(t, want, got)
	assert.Equal(t, int64(len(want)), cart.Version)
}

func testFailedCartUpdate(t *testing.T, s *Store) {
	ctx := context.Background()
	_, err := s.Carts.UpdateCart(ctx, "u1", func(c *models.Cart) error {
		c.Products = append(c.Products, models.CartLine{ProductID: "p1", Quantity: 2})
		return nil
	})
	require.NoError(t, err)

	_, err = s.Carts.UpdateCart(ctx, "u1", func(c *models.Cart) error {
		c.Products = nil
		return apperr.Conflict("out of stock")
	})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	cart, _ := s.Carts.GetCart(ctx, "u1")
	require.Len(t, cart.Products, 1)

	require.NoError(t, s.Carts.ClearCart(ctx, "u1"))
	cart, _ = s.Carts.GetCart(ctx, "u1")
	assert.Empty(t, cart.Products)
}

func testAddressDefaults(t *testing.T, s *Store) {
	ctx := context.Background()
	repo := s.Addresses

	list, err := repo.AddAddress(ctx, "u1", addr("a1", "Pune"), false)
	require.NoError(t, err)
	assert.True(t, list[0].IsDefault)
	_, err = repo.AddAddress(ctx, "u1", addr("a2", "Goa"), false)
	require.NoError(t, err)
	list, err = repo.AddAddress(ctx, "u1", addr("a3", "Agra"), true)
	require.NoError(t, err)
	assert.Equal(t, 1, countDefaults(list))

	list, err = repo.UpdateAddress(ctx, "u1", addr("a2", "Panaji"))
	require.NoError(t, err)
	assert.Equal(t, "Panaji", list[1].City)

	list, err = repo.DeleteAddress(ctx, "u1", "a3")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[1].IsDefault, "latest remaining address is promoted")
	assert.Equal(t, 1, countDefaults(list))

	_, err = repo.SetDefault(ctx, "u1", "a3")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = repo.DeleteAddress(ctx, "u1", "a3")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	other, err := repo.ListAddresses(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func testOrderWrites(t *testing.T, s *Store) {
	ctx := context.Background()
	repo := s.Orders
	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repo.InsertOrder(ctx, models.Order{
		ID: "o1", OrderID: "ORD-20260101-AAAA0001", UserID: "u1", CreatedAt: now,
		OrderStatus: models.StatusPending, PaymentStatus: models.PaymentPending,
		Products: []models.LineItem{
			{ProductID: "p1", SellerID: "s1", Size: "M", ProductStatus: models.StatusPending},
			{ProductID: "p1", SellerID: "s1", Size: "L", ProductStatus: models.StatusPending},
			{ProductID: "p2", SellerID: "s2", ProductStatus: models.StatusPending},
		},
	}))

	byCode, err := repo.FindOrder(ctx, "ORD-20260101-AAAA0001")
	require.NoError(t, err)
	assert.Equal(t, models.ID("o1"), byCode.ID)

	// Writes address the storage id only.
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(repo.SetPaymentStatus(ctx, "ORD-20260101-AAAA0001", models.PaymentCompleted, now)))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(repo.SetOrderStatus(ctx, "ORD-20260101-AAAA0001", models.StatusEntry{Status: models.StatusConfirmed, At: now})))

	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(repo.SetLineStatus(ctx, "o1", "p2", "s1", models.StatusShipped, now)))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(repo.SetLineStatus(ctx, "o1", "p9", "s1", models.StatusShipped, now)))
	require.NoError(t, repo.SetLineStatus(ctx, "o1", "p1", "s1", models.StatusShipped, now))

	require.NoError(t, repo.SetOrderStatus(ctx, "o1", models.StatusEntry{Status: models.StatusConfirmed, Note: "ok", Actor: "a1", Role: models.RoleAdmin, At: now}))
	require.NoError(t, repo.SetPaymentStatus(ctx, "o1", models.PaymentCompleted, now))

	o, err := repo.FindOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, o.Products[0].ProductStatus)
	assert.Equal(t, models.StatusShipped, o.Products[1].ProductStatus, "every line of the product moves")
	assert.Equal(t, models.StatusPending, o.Products[2].ProductStatus)
	assert.Equal(t, models.StatusConfirmed, o.OrderStatus)
	assert.Equal(t, models.PaymentCompleted, o.PaymentStatus)
	require.Len(t, o.StatusHistory, 1)
	assert.Equal(t, "ok", o.StatusHistory[0].Note)

	seller, err := repo.ListOrders(ctx, OrderQuery{SellerID: "s2"})
	require.NoError(t, err)
	assert.Len(t, seller, 1)
	none, err := repo.ListOrders(ctx, OrderQuery{UserID: "u2"})
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(repo.DeleteOrder(ctx, "ORD-20260101-AAAA0001")))
	require.NoError(t, repo.DeleteOrder(ctx, "o1"))
	_, err = repo.FindOrder(ctx, "o1")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
