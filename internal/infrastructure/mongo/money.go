package mongo

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// money is a decimal stored as Decimal128. Reads also accept the doubles and
// integers written by older clients.
type money decimal.Decimal

func (m money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d, err := primitive.ParseDecimal128(decimal.Decimal(m).String())
	if err != nil {
		return 0, nil, fmt.Errorf("encode money: %w", err)
	}
	return bson.MarshalValue(d)
}

func (m *money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	d, err := decodeMoney(bson.RawValue{Type: t, Value: data})
	if err != nil {
		return err
	}
	*m = money(d)
	return nil
}

func (m money) decimal() decimal.Decimal {
	return decimal.Decimal(m)
}

func decodeMoney(v bson.RawValue) (decimal.Decimal, error) {
	switch v.Type {
	case bson.TypeDecimal128:
		d, err := decimal.NewFromString(v.Decimal128().String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("decode money: %w", err)
		}
		return d, nil
	case bson.TypeDouble:
		return decimal.NewFromFloat(v.Double()), nil
	case bson.TypeInt32:
		return decimal.NewFromInt(int64(v.Int32())), nil
	case bson.TypeInt64:
		return decimal.NewFromInt(v.Int64()), nil
	case bson.TypeNull:
		return decimal.Zero, nil
	default:
		return decimal.Zero, fmt.Errorf("decode money: unsupported bson type %s", v.Type)
	}
}
