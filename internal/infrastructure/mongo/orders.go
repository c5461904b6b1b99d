package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-shop-core/internal/domain/order"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type orderItemDoc struct {
	ProductID string `bson:"product_id"`
	Quantity  int    `bson:"quantity"`
	Price     money  `bson:"price"`
}

type orderDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	UserID     string             `bson:"user_id"`
	Products   []orderItemDoc     `bson:"products"`
	TotalPrice money              `bson:"total_price"`
	OrderType  string             `bson:"order_type"`
	Status     string             `bson:"status"`
	CreatedAt  time.Time          `bson:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at"`
}

func newOrderDoc(o *order.Order) orderDoc {
	items := make([]orderItemDoc, 0, len(o.Products))
	for _, it := range o.Products {
		items = append(items, orderItemDoc{ProductID: it.ProductID, Quantity: it.Quantity, Price: money(it.Price)})
	}
	return orderDoc{
		UserID:     o.UserID,
		Products:   items,
		TotalPrice: money(o.TotalPrice),
		OrderType:  string(o.OrderType),
		Status:     o.Status,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func (d orderDoc) toDomain() order.Order {
	items := make([]order.Item, 0, len(d.Products))
	for _, it := range d.Products {
		items = append(items, order.Item{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price.decimal()})
	}
	return order.Order{
		ID:         d.ID.Hex(),
		UserID:     d.UserID,
		Products:   items,
		TotalPrice: d.TotalPrice.decimal(),
		OrderType:  order.Type(d.OrderType),
		Status:     d.Status,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
}

// Orders is the order.Repository over the orders collection.
type Orders struct {
	collection *mongo.Collection
}

func NewOrders(db *mongo.Database) *Orders {
	return &Orders{collection: db.Collection(ordersCollection)}
}

func (r *Orders) Insert(ctx context.Context, o *order.Order) error {
	res, err := r.collection.InsertOne(ctx, newOrderDoc(o))
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		o.ID = id.Hex()
	}
	return nil
}

func (r *Orders) FindByID(ctx context.Context, id string) (*order.Order, error) {
	oid, err := orderObjectID(id)
	if err != nil {
		return nil, err
	}
	var doc orderDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	o := doc.toDomain()
	return &o, nil
}

func (r *Orders) List(ctx context.Context) ([]order.Order, error) {
	return r.find(ctx, bson.M{})
}

func (r *Orders) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return r.find(ctx, bson.M{"user_id": userID})
}

func (r *Orders) find(ctx context.Context, filter bson.M) ([]order.Order, error) {
	cur, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cur.Close(ctx)

	orders := []order.Order{}
	for cur.Next(ctx) {
		var doc orderDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode order: %w", err)
		}
		orders = append(orders, doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (r *Orders) Update(ctx context.Context, id string, p order.Patch) (bool, error) {
	oid, err := orderObjectID(id)
	if err != nil {
		return false, err
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": orderPatch(p)})
	if err != nil {
		return false, fmt.Errorf("failed to update order: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func orderPatch(p order.Patch) bson.M {
	set := bson.M{"updated_at": p.UpdatedAt}
	if p.Status != nil {
		set["status"] = *p.Status
	}
	if p.OrderType != nil {
		set["order_type"] = string(*p.OrderType)
	}
	return set
}

func (r *Orders) Delete(ctx context.Context, id string) (bool, error) {
	oid, err := orderObjectID(id)
	if err != nil {
		return false, err
	}
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("failed to delete order: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func orderObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", order.ErrInvalidOrderID, id)
	}
	return oid, nil
}
