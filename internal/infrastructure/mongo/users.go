package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-shop-core/internal/domain/user"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Username  string             `bson:"username"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	FullName  string             `bson:"full_name"`
	Address   string             `bson:"address"`
	Phone     string             `bson:"phone"`
	ImageURL  *string            `bson:"image_url,omitempty"`
	Role      string             `bson:"role"`
	Country   string             `bson:"country"`
	Gender    string             `bson:"gender"`
	Status    string             `bson:"status"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func newUserDoc(u *user.User) userDoc {
	return userDoc{
		Username:  u.Username,
		Email:     u.Email,
		Password:  u.Password,
		FullName:  u.FullName,
		Address:   u.Address,
		Phone:     u.Phone,
		ImageURL:  u.ImageURL,
		Role:      u.Role,
		Country:   u.Country,
		Gender:    u.Gender,
		Status:    string(u.Status),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// toDomain fills the defaults of records written before role, country,
// gender and status existed.
func (d userDoc) toDomain() *user.User {
	return &user.User{
		ID:        d.ID.Hex(),
		Username:  d.Username,
		Email:     d.Email,
		Password:  d.Password,
		FullName:  d.FullName,
		Address:   d.Address,
		Phone:     d.Phone,
		ImageURL:  d.ImageURL,
		Role:      withDefault(d.Role, user.RoleCustomer),
		Country:   withDefault(d.Country, user.DefaultCountry),
		Gender:    withDefault(d.Gender, user.DefaultGender),
		Status:    user.Status(withDefault(d.Status, string(user.StatusActive))),
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Users is the user.Store over the users collection.
type Users struct {
	collection *mongo.Collection
}

func NewUsers(db *mongo.Database) *Users {
	return &Users{collection: db.Collection(usersCollection)}
}

func (r *Users) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *Users) FindByID(ctx context.Context, id string) (*user.User, error) {
	oid, err := userObjectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *Users) findOne(ctx context.Context, filter bson.M) (*user.User, error) {
	var doc userDoc
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *Users) ExistsWithUsername(ctx context.Context, username string) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"username": username}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return n > 0, nil
}

func (r *Users) Insert(ctx context.Context, u *user.User) (string, error) {
	res, err := r.collection.InsertOne(ctx, newUserDoc(u))
	if err != nil {
		return "", fmt.Errorf("failed to insert user: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (r *Users) UpdateFields(ctx context.Context, id string, f user.Fields) (bool, error) {
	oid, err := userObjectID(id)
	if err != nil {
		return false, err
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": userSet(f)})
	if err != nil {
		return false, fmt.Errorf("failed to update user: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func userSet(f user.Fields) bson.M {
	set := bson.M{"updated_at": f.UpdatedAt}
	put := func(key string, v *string) {
		if v != nil {
			set[key] = *v
		}
	}
	put("username", f.Username)
	put("email", f.Email)
	put("password", f.Password)
	put("full_name", f.FullName)
	put("address", f.Address)
	put("phone", f.Phone)
	put("image_url", f.ImageURL)
	put("role", f.Role)
	put("country", f.Country)
	put("gender", f.Gender)
	if f.Status != nil {
		set["status"] = string(*f.Status)
	}
	return set
}

func userObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", user.ErrInvalidUserID, id)
	}
	return oid, nil
}
