package tokenstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository implements Repository using a Mongo collection.
// One document per device id, replaced on every Put.
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

type mongoRecord struct {
	DeviceID string `bson:"deviceId"`
	Record   `bson:",inline"`
}

func (r *MongoRepository) Put(ctx context.Context, deviceID string, rec *Record, ttl time.Duration) error {
	now := time.Now().UTC()
	rec.UpdatedAt = now
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = now.Add(ttl)
	}
	filter := bson.M{"deviceId": deviceID}
	opts := options.Replace().SetUpsert(true)
	_, err := r.col.ReplaceOne(ctx, filter, &mongoRecord{DeviceID: deviceID, Record: *rec}, opts)
	return err
}

func (r *MongoRepository) Get(ctx context.Context, deviceID string) (*Record, error) {
	var doc mongoRecord
	if err := r.col.FindOne(ctx, bson.M{"deviceId": deviceID}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	if !doc.ExpiresAt.IsZero() && time.Now().UTC().After(doc.ExpiresAt) {
		// cleanup expired record
		_, _ = r.col.DeleteOne(ctx, bson.M{"deviceId": deviceID})
		return nil, nil
	}
	rec := doc.Record
	return &rec, nil
}

func (r *MongoRepository) Delete(ctx context.Context, deviceID string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"deviceId": deviceID})
	return err
}
