package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/style_cart/internal/cart/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestDB(t *testing.T) (CartRepository, func()) {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	repo := NewMongoRepository(db)
	require.NoError(t, CreateIndexes(ctx, repo))

	cleanup := func() {
		assert.NoError(t, DisconnectMongoDB(db, 5*time.Second))
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func TestGetCart_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	cart, err := repo.GetCart(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestUpsertCart_CreateThenRead(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	cart := &domain.Cart{
		UserID: "user123",
		Lines: []domain.CartLine{
			{ID: 2, Name: "Structured Zip Tote", UnitPrice: decimal.RequireFromString("359.00"), Quantity: 1, AddedAt: time.Now().UTC().Truncate(time.Millisecond)},
			{ID: 1, Name: "Classic White Sneakers", UnitPrice: decimal.RequireFromString("259.50"), Quantity: 2},
		},
		SelectedOffers:    []string{"WELCOME25"},
		ShippingMethodID:  "express",
		PendingCheckoutID: "chk-1",
	}
	require.NoError(t, repo.UpsertCart(ctx, cart))
	assert.False(t, cart.CreatedAt.IsZero())

	got, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, int64(2), got.Lines[0].ID)
	assert.Equal(t, "Structured Zip Tote", got.Lines[0].Name)
	assert.True(t, decimal.RequireFromString("259.5").Equal(got.Lines[1].UnitPrice))
	assert.Equal(t, 2, got.Lines[1].Quantity)
	assert.Equal(t, []string{"WELCOME25"}, got.SelectedOffers)
	assert.Equal(t, "express", got.ShippingMethodID)
	assert.Equal(t, "chk-1", got.PendingCheckoutID)
}

func TestUpsertCart_ReplacesLines(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	cart := &domain.Cart{
		UserID:            "user123",
		Lines:             []domain.CartLine{{ID: 1, UnitPrice: decimal.NewFromInt(259), Quantity: 1}},
		PendingCheckoutID: "chk-1",
	}
	require.NoError(t, repo.UpsertCart(ctx, cart))
	createdAt := cart.CreatedAt

	cart.Lines = []domain.CartLine{{ID: 3, UnitPrice: decimal.NewFromInt(219), Quantity: 4}}
	cart.PendingCheckoutID = ""
	require.NoError(t, repo.UpsertCart(ctx, cart))

	got, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, int64(3), got.Lines[0].ID)
	assert.Equal(t, 4, got.Lines[0].Quantity)
	assert.Empty(t, got.SelectedOffers)
	assert.Empty(t, got.PendingCheckoutID)
	assert.WithinDuration(t, createdAt, got.CreatedAt, time.Millisecond)
}

func TestDeleteCart(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.UpsertCart(ctx, &domain.Cart{UserID: "user123"}))
	require.NoError(t, repo.DeleteCart(ctx, "user123"))

	_, err := repo.GetCart(ctx, "user123")
	assert.ErrorIs(t, err, ErrCartNotFound)

	assert.ErrorIs(t, repo.DeleteCart(ctx, "user123"), ErrCartNotFound)
}

func TestDocumentRoundTrip_InvalidPrice(t *testing.T) {
	_, err := fromDocument(cartDocument{
		UserID: "u",
		Lines:  []lineDocument{{ProductID: 7, UnitPrice: "abc", Quantity: 1}},
	})
	require.ErrorContains(t, err, "invalid unit price for product 7")
}
