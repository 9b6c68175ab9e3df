package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/boneforge/boneforge/pkg/errors"
)

// MongoStore persists clips in a MongoDB collection, keyed by clip name.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to MongoDB and uses the "clips" collection of the
// given database. The connection is verified eagerly.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "connect to %s", uri)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "ping %s", uri)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection("clips"),
	}, nil
}

// Put stores or replaces a clip under its name.
func (s *MongoStore) Put(ctx context.Context, clip *Clip) error {
	if err := errors.ValidateClipName(clip.Name); err != nil {
		return err
	}
	cp := *clip
	cp.UpdatedAt = time.Now().UTC()
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": cp.Name}, &cp,
		options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "store clip %q", clip.Name)
	}
	return nil
}

// Get retrieves a clip by name.
func (s *MongoStore) Get(ctx context.Context, name string) (*Clip, error) {
	var clip Clip
	err := s.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&clip)
	if err == mongo.ErrNoDocuments {
		return nil, errors.New(errors.ErrCodeNotFound, "clip %q not found", name)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "load clip %q", name)
	}
	return &clip, nil
}

// List returns summaries of all clips, sorted by name.
func (s *MongoStore) List(ctx context.Context) ([]Info, error) {
	cur, err := s.coll.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "list clips")
	}
	defer cur.Close(ctx)

	var out []Info
	for cur.Next(ctx) {
		var clip Clip
		if err := cur.Decode(&clip); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorage, err, "decode clip")
		}
		out = append(out, infoOf(&clip))
	}
	if err := cur.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "list clips")
	}
	return out, nil
}

// Delete removes a clip by name.
func (s *MongoStore) Delete(ctx context.Context, name string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": name})
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "delete clip %q", name)
	}
	if res.DeletedCount == 0 {
		return errors.New(errors.ErrCodeNotFound, "clip %q not found", name)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ensure MongoStore implements Store.
var _ Store = (*MongoStore)(nil)
