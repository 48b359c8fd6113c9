package subscribe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/techknowlogia/core/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollection = "subscribers"

// MongoStore keeps subscribers in the "subscribers" collection keyed by UUID _id.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore binds to db and makes sure the lookup indexes exist.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	s := &MongoStore{coll: db.Collection(mongoCollection)}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_unique")},
		{Keys: bson.D{{Key: "confirm_token_hash", Value: 1}}, Options: options.Index().SetSparse(true).SetName("confirm_token_hash")},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}, Options: options.Index().SetName("status_created")},
		{Keys: bson.D{{Key: "confirm_token_expires_at", Value: 1}}, Options: options.Index().SetSparse(true).SetName("confirm_token_expires_at")},
	})
	if err != nil {
		return fmt.Errorf("ensure subscriber indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.SubscriberModel, error) {
	var sub models.SubscriberModel
	if err := s.coll.FindOne(ctx, filter).Decode(&sub); err != nil {
		return nil, translateMongoError(err)
	}
	return &sub, nil
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*models.SubscriberModel, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*models.SubscriberModel, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoStore) FindByConfirmTokenHash(ctx context.Context, hash string) (*models.SubscriberModel, error) {
	if hash == "" {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"confirm_token_hash": hash})
}

func (s *MongoStore) Create(ctx context.Context, sub *models.SubscriberModel) error {
	sub.EnsureID()
	now := time.Now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = now
	}
	_, err := s.coll.InsertOne(ctx, sub)
	return translateMongoError(err)
}

// Save replaces the whole document, so cleared optional fields disappear.
func (s *MongoStore) Save(ctx context.Context, sub *models.SubscriberModel) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": sub.ID}, sub)
	if err != nil {
		return translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, filter ListFilter) ([]models.SubscriberModel, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cur, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.SubscriberModel, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) Count(ctx context.Context, status string) (int64, error) {
	query := bson.M{}
	if status != "" {
		query["status"] = status
	}
	return s.coll.CountDocuments(ctx, query)
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) PurgeExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{
			"status":                   models.SubscriberPending,
			"confirm_token_hash":       bson.M{"$exists": true},
			"confirm_token_expires_at": bson.M{"$lt": before},
		},
		bson.M{
			"$unset": bson.M{"confirm_token_hash": "", "confirm_token_expires_at": ""},
			"$set":   bson.M{"updated_at": before},
		},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func translateMongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	default:
		return err
	}
}
