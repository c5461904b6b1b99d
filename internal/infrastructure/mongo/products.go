package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ec-shop-core/internal/domain/catalog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// productDoc reads only the fields the cart prices against.
type productDoc struct {
	ID       primitive.ObjectID `bson:"_id"`
	Title    string             `bson:"title"`
	Price    money              `bson:"price"`
	Discount *money             `bson:"discount,omitempty"`
}

func (d productDoc) toDomain() *catalog.Product {
	p := &catalog.Product{
		ID:    d.ID.Hex(),
		Name:  d.Title,
		Price: d.Price.decimal(),
	}
	if d.Discount != nil {
		discount := d.Discount.decimal()
		p.Discount = &discount
	}
	return p
}

// Products is the read-only catalog.Store over the products collection.
type Products struct {
	collection *mongo.Collection
}

func NewProducts(db *mongo.Database) *Products {
	return &Products{collection: db.Collection(productsCollection)}
}

func (r *Products) FindProduct(ctx context.Context, id string) (*catalog.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", catalog.ErrInvalidProductID, id)
	}

	projection := bson.M{"title": 1, "price": 1, "discount": 1}
	var doc productDoc
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}, options.FindOne().SetProjection(projection)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return doc.toDomain(), nil
}
