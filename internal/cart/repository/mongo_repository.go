package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/style_cart/internal/cart/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrCartNotFound = errors.New("cart not found")

// cartDocument is the stored shape of a cart. Money is kept as decimal strings.
type cartDocument struct {
	UserID            string         `bson:"user_id"`
	Lines             []lineDocument `bson:"lines"`
	SelectedOffers    []string       `bson:"selected_offers"`
	ShippingMethodID  string         `bson:"shipping_method_id"`
	PendingCheckoutID string         `bson:"pending_checkout_id"`
	CreatedAt         time.Time      `bson:"created_at"`
	UpdatedAt         time.Time      `bson:"updated_at"`
}

type lineDocument struct {
	ProductID int64     `bson:"product_id"`
	Name      string    `bson:"name"`
	UnitPrice string    `bson:"unit_price"`
	Quantity  int       `bson:"quantity"`
	AddedAt   time.Time `bson:"added_at"`
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m mongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var doc cartDocument

	err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return fromDocument(doc)
}

// UpsertCart replaces the stored cart with cart, creating it when missing.
func (m mongoRepository) UpsertCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now().UTC()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	filter := bson.M{"user_id": cart.UserID}
	update := bson.M{"$set": toDocument(cart)}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

func (m mongoRepository) DeleteCart(ctx context.Context, userID string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// CreateIndexes creates the carts indexes when repo is the Mongo implementation.
func CreateIndexes(ctx context.Context, repo CartRepository) error {
	if m, ok := repo.(*mongoRepository); ok {
		return m.CreateIndexes(ctx)
	}
	return nil
}

func toDocument(cart *domain.Cart) cartDocument {
	lines := make([]lineDocument, len(cart.Lines))
	for i, l := range cart.Lines {
		lines[i] = lineDocument{
			ProductID: l.ID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice.String(),
			Quantity:  l.Quantity,
			AddedAt:   l.AddedAt,
		}
	}
	selected := cart.SelectedOffers
	if selected == nil {
		selected = []string{}
	}
	return cartDocument{
		UserID:            cart.UserID,
		Lines:             lines,
		SelectedOffers:    selected,
		ShippingMethodID:  cart.ShippingMethodID,
		PendingCheckoutID: cart.PendingCheckoutID,
		CreatedAt:         cart.CreatedAt,
		UpdatedAt:         cart.UpdatedAt,
	}
}

func fromDocument(doc cartDocument) (*domain.Cart, error) {
	cart := &domain.Cart{
		UserID:            doc.UserID,
		SelectedOffers:    doc.SelectedOffers,
		ShippingMethodID:  doc.ShippingMethodID,
		PendingCheckoutID: doc.PendingCheckoutID,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
	for _, l := range doc.Lines {
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid unit price for product %d: %w", l.ProductID, err)
		}
		cart.Lines = append(cart.Lines, domain.CartLine{
			ID:        l.ProductID,
			Name:      l.Name,
			UnitPrice: price,
			Quantity:  l.Quantity,
			AddedAt:   l.AddedAt,
		})
	}
	return cart, nil
}
