package loader

import (
	"context"
	"fmt"

	"github.com/giovaniif/vending-machine/domain/item"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type mongoItem struct {
	Selection string  `bson:"selection"`
	Price     float64 `bson:"price"`
	Quantity  float64 `bson:"quantity"`
}

// MongoSource reads one document per selection from a collection.
type MongoSource struct {
	collection *mongo.Collection
}

func NewMongoSource(collection *mongo.Collection) *MongoSource {
	return &MongoSource{collection: collection}
}

func OpenMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("cannot ping mongo: %w", err)
	}
	return client, nil
}

func (s *MongoSource) Load(ctx context.Context) (item.Inventory, error) {
	cursor, err := s.collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidResource, s.collection.Name(), err)
	}
	var docs []mongoItem
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	return fromDocuments(s.collection.Name(), docs)
}

func fromDocuments(collection string, docs []mongoItem) (item.Inventory, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: collection %s is empty", ErrInvalidResource, collection)
	}

	inventory := make(item.Inventory, len(docs))
	for _, doc := range docs {
		sel, err := parseKey(doc.Selection)
		if err != nil {
			return nil, err
		}
		inventory[sel] = item.Item{
			Price:    decimal.NewFromFloat(doc.Price),
			Quantity: decimal.NewFromFloat(doc.Quantity),
		}
	}
	return inventory, nil
}
