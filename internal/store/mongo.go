package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Mongo struct {
	coll *mongo.Collection
}

func NewMongo(coll *mongo.Collection) *Mongo {
	return &Mongo{coll: coll}
}

// ConnectMongo dials uri and returns a store on database.collection along
// with a function that disconnects the client.
func ConnectMongo(ctx context.Context, uri, database, collection string) (*Mongo, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewMongo(client.Database(database).Collection(collection)), client.Disconnect, nil
}

func (m *Mongo) Save(ctx context.Context, rec Record) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := m.coll.ReplaceOne(ctx, bson.M{"_id": rec.RequestID}, rec, opts); err != nil {
		return fmt.Errorf("save record %s: %w", rec.RequestID, err)
	}
	return nil
}

func (m *Mongo) Get(ctx context.Context, requestID string) (Record, error) {
	var rec Record
	err := m.coll.FindOne(ctx, bson.M{"_id": requestID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get record %s: %w", requestID, err)
	}
	return rec, nil
}
