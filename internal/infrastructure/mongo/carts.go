package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-shop-core/internal/domain/cart"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type cartItemDoc struct {
	ProductID string `bson:"product_id"`
	Quantity  int    `bson:"quantity"`
	Price     money  `bson:"price"`
}

type cartDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	UserID     string             `bson:"user_id"`
	Items      []cartItemDoc      `bson:"items"`
	TotalPrice money              `bson:"total_price"`
	CreatedAt  time.Time          `bson:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at"`
}

func (d cartDoc) toDomain() *cart.Cart {
	items := make([]cart.Item, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, cart.Item{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price.decimal()})
	}
	c := &cart.Cart{
		UserID:     d.UserID,
		Items:      items,
		TotalPrice: d.TotalPrice.decimal(),
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
	if !d.ID.IsZero() {
		c.ID = d.ID.Hex()
	}
	return c
}

func cartItemDocs(items []cart.Item) []cartItemDoc {
	docs := make([]cartItemDoc, 0, len(items))
	for _, it := range items {
		docs = append(docs, cartItemDoc{ProductID: it.ProductID, Quantity: it.Quantity, Price: money(it.Price)})
	}
	return docs
}

// Carts is the cart.Repository over the carts collection, one document per
// user_id.
type Carts struct {
	collection *mongo.Collection
}

func NewCarts(db *mongo.Database) *Carts {
	return &Carts{collection: db.Collection(cartsCollection)}
}

func (r *Carts) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	var doc cartDoc
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, cart.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return doc.toDomain(), nil
}

// Upsert writes items, total and updated_at. created_at is only written when
// the document is inserted.
func (r *Carts) Upsert(ctx context.Context, c *cart.Cart) error {
	update := cartUpdate(c)
	res, err := r.collection.UpdateOne(ctx, bson.M{"user_id": c.UserID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	if id, ok := res.UpsertedID.(primitive.ObjectID); ok {
		c.ID = id.Hex()
	}
	return nil
}

func cartUpdate(c *cart.Cart) bson.M {
	return bson.M{
		"$set": bson.M{
			"items":       cartItemDocs(c.Items),
			"total_price": money(c.TotalPrice),
			"updated_at":  c.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"created_at": c.CreatedAt,
		},
	}
}

func (r *Carts) Delete(ctx context.Context, userID string) (bool, error) {
	res, err := r.collection.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return false, fmt.Errorf("failed to delete cart: %w", err)
	}
	return res.DeletedCount > 0, nil
}
