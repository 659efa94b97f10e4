// Package mongo provides a MongoDB-backed storage engine. Documents are
// soft-deleted so revision checks, recreation and the change feed behave
// the same as the in-memory engine's.
package mongo

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"livefind/pkg/model"
	"livefind/pkg/storage"
)

// Compile-time check that Store implements storage.FindStore.
var _ storage.FindStore = (*Store)(nil)

// storedDoc is the MongoDB envelope. User data lives under "data" so
// reserved fields can never collide with user fields.
type storedDoc struct {
	ID      string                 `bson:"_id"`
	Rev     string                 `bson:"rev"`
	Deleted bool                   `bson:"deleted,omitempty"`
	Data    map[string]interface{} `bson:"data"`
}

func newStoredDoc(id, rev string, doc model.Document) storedDoc {
	sd := storedDoc{ID: id, Rev: rev, Deleted: doc.IsDeleted()}
	if !sd.Deleted {
		sd.Data = make(map[string]interface{}, len(doc))
		for k, v := range doc {
			switch k {
			case model.FieldID, model.FieldRev, model.FieldDeleted:
			default:
				sd.Data[k] = v
			}
		}
	}
	return sd
}

func (sd storedDoc) toDocument() model.Document {
	if sd.Deleted {
		return model.Tombstone(sd.ID, sd.Rev)
	}
	doc := make(model.Document, len(sd.Data)+2)
	for k, v := range sd.Data {
		doc[k] = v
	}
	doc.SetID(sd.ID)
	doc.SetRev(sd.Rev)
	return doc
}

// Store is a MongoDB-backed document store.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	seq    atomic.Int64
}

// New connects to MongoDB and returns a store over one collection.
func New(ctx context.Context, uri, dbName, collName string) (*Store, error) {
	clientOpts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return &Store{
		client: client,
		coll:   client.Database(dbName).Collection(collName),
	}, nil
}

func (s *Store) Get(ctx context.Context, id string) (model.Document, error) {
	var sd storedDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id, "deleted": bson.M{"$ne": true}}).Decode(&sd)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return sd.toDocument(), nil
}

func (s *Store) Put(ctx context.Context, doc model.Document) (storage.PutResponse, error) {
	id := doc.ID()
	if id == "" {
		return storage.PutResponse{}, errors.New("document is missing an _id")
	}
	return s.write(ctx, id, doc)
}

func (s *Store) Post(ctx context.Context, doc model.Document) (storage.PutResponse, error) {
	if doc.ID() != "" {
		return s.write(ctx, doc.ID(), doc)
	}
	return s.write(ctx, uuid.NewString(), doc)
}

func (s *Store) write(ctx context.Context, id string, doc model.Document) (storage.PutResponse, error) {
	rev := uuid.NewString()
	sd := newStoredDoc(id, rev, doc)

	if doc.Rev() == "" {
		_, err := s.coll.InsertOne(ctx, sd)
		if mongo.IsDuplicateKeyError(err) {
			// Re-creating over a tombstone starts a fresh edit; a live
			// document under the same id means the create loses.
			res, replaceErr := s.coll.ReplaceOne(ctx, bson.M{"_id": id, "deleted": true}, sd)
			if replaceErr != nil {
				return storage.PutResponse{}, replaceErr
			}
			if res.MatchedCount == 0 {
				return storage.PutResponse{}, model.ErrExists
			}
			return storage.PutResponse{ID: id, Rev: rev}, nil
		}
		if err != nil {
			return storage.PutResponse{}, err
		}
		return storage.PutResponse{ID: id, Rev: rev}, nil
	}

	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": id, "rev": doc.Rev()}, sd)
	if err != nil {
		return storage.PutResponse{}, err
	}
	if res.MatchedCount == 0 {
		return storage.PutResponse{}, model.ErrConflict
	}
	return storage.PutResponse{ID: id, Rev: rev}, nil
}

func (s *Store) AllDocs(ctx context.Context, limit, skip int) ([]model.Document, error) {
	if limit <= 0 {
		limit = storage.DefaultPageLimit
	}
	findOpts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := s.coll.Find(ctx, bson.M{"deleted": bson.M{"$ne": true}}, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	return decodeAll(ctx, cursor)
}

func (s *Store) Find(ctx context.Context, q *model.Query) ([]model.Document, error) {
	filter := bson.M{
		"$and": bson.A{
			TranslateSelector(q.Selector),
			bson.M{"deleted": bson.M{"$ne": true}},
		},
	}

	limit := q.Limit
	if limit <= 0 {
		limit = storage.DefaultPageLimit
	}
	findOpts := options.Find().
		SetSort(TranslateSort(q.Sort)).
		SetSkip(int64(q.Skip)).
		SetLimit(int64(limit))

	cursor, err := s.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	return decodeAll(ctx, cursor)
}

func decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]model.Document, error) {
	var stored []storedDoc
	if err := cursor.All(ctx, &stored); err != nil {
		return nil, err
	}
	docs := make([]model.Document, 0, len(stored))
	for _, sd := range stored {
		docs = append(docs, sd.toDocument())
	}
	return docs, nil
}

// Changes opens a change stream over the collection. Sequence numbers
// are assigned locally in delivery order; they are monotonic within this
// store instance only.
func (s *Store) Changes(ctx context.Context) (<-chan storage.Change, error) {
	changeStreamOpts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := s.coll.Watch(ctx, mongo.Pipeline{}, changeStreamOpts)
	if err != nil {
		return nil, err
	}

	out := make(chan storage.Change, 256)

	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			var ev struct {
				OperationType string     `bson:"operationType"`
				FullDocument  *storedDoc `bson:"fullDocument"`
				DocumentKey   struct {
					ID string `bson:"_id"`
				} `bson:"documentKey"`
			}
			if err := stream.Decode(&ev); err != nil {
				continue
			}

			change := storage.Change{
				ID:  ev.DocumentKey.ID,
				Seq: s.seq.Add(1),
			}
			switch ev.OperationType {
			case "insert", "update", "replace":
				if ev.FullDocument == nil {
					continue
				}
				change.Rev = ev.FullDocument.Rev
				if ev.FullDocument.Deleted {
					change.Deleted = true
				} else {
					change.Doc = ev.FullDocument.toDocument()
				}
			case "delete":
				// Hard removal (e.g. external cleanup of tombstones).
				change.Deleted = true
			default:
				continue
			}

			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return err
	}
	return nil
}
