package history

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore persists snapshots in a MongoDB collection. Documents carry the
// capture time so pruning and listing can sort server-side.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	limit  int
}

type mongoSnapshot struct {
	ID   string    `bson:"snapshot_id"`
	Time time.Time `bson:"captured_at"`
	Data []byte    `bson:"data"`
}

// NewMongoStore connects to the MongoDB instance at uri and uses the given
// database and collection for snapshot storage.
func NewMongoStore(ctx context.Context, uri, database, collection string, limit int) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	if database == "" {
		database = "protovis"
	}
	if collection == "" {
		collection = "snapshots"
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(collection),
		limit:  limit,
	}, nil
}

// Append inserts the snapshot and prunes the oldest documents beyond the limit.
func (m *MongoStore) Append(ctx context.Context, s Snapshot) error {
	doc := mongoSnapshot{ID: s.ID, Time: s.Time, Data: s.Data}
	if _, err := m.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongodb insert: %w", err)
	}
	return m.prune(ctx)
}

// List returns the retained snapshots, oldest first.
func (m *MongoStore) List(ctx context.Context) ([]Snapshot, error) {
	opts := options.Find().SetSort(bson.D{{Key: "captured_at", Value: 1}})
	cur, err := m.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	defer cur.Close(ctx)

	var snaps []Snapshot
	for cur.Next(ctx) {
		var doc mongoSnapshot
		if err := cur.Decode(&doc); err != nil {
			continue
		}
		snaps = append(snaps, Snapshot{ID: doc.ID, Time: doc.Time, Data: doc.Data})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongodb cursor: %w", err)
	}
	return snaps, nil
}

// Close disconnects from MongoDB.
func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoStore) prune(ctx context.Context) error {
	count, err := m.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("mongodb count: %w", err)
	}
	excess := count - int64(m.limit)
	if excess <= 0 {
		return nil
	}

	// Collect the ids of the oldest documents and remove them in one go.
	opts := options.Find().
		SetSort(bson.D{{Key: "captured_at", Value: 1}}).
		SetLimit(excess).
		SetProjection(bson.D{{Key: "snapshot_id", Value: 1}})
	cur, err := m.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return fmt.Errorf("mongodb find oldest: %w", err)
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var doc mongoSnapshot
		if err := cur.Decode(&doc); err != nil {
			continue
		}
		ids = append(ids, doc.ID)
	}
	if err := cur.Err(); err != nil {
		return fmt.Errorf("mongodb cursor: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	filter := bson.D{{Key: "snapshot_id", Value: bson.D{{Key: "$in", Value: ids}}}}
	if _, err := m.coll.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("mongodb prune: %w", err)
	}
	return nil
}

// Ensure MongoStore implements Store.
var _ Store = (*MongoStore)(nil)
