package webhook

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Delivery is one webhook call received from the CMS.
type Delivery struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Event          string             `bson:"event"`
	Model          string             `bson:"model"`
	EntryID        int64              `bson:"entryId"`
	Slug           string             `bson:"slug"`
	EntryUpdatedAt string             `bson:"entryUpdatedAt"`
	ReceivedAt     time.Time          `bson:"receivedAt"`
}

type Repository interface {
	// Record stores d and reports whether it had not been seen before.
	Record(ctx context.Context, d *Delivery) (bool, error)
	// Forget removes a recorded delivery so a later resend is processed again.
	Forget(ctx context.Context, d *Delivery) error
}

type mongoRepository struct {
	col    *mongo.Collection
	logger *log.Logger
}

func NewMongoRepository(db *mongo.Database, logger *log.Logger) (Repository, error) {
	repo := &mongoRepository{
		col:    db.Collection("webhook_deliveries"),
		logger: logger,
	}
	if err := repo.ensureIndexes(context.Background()); err != nil {
		return nil, err
	}
	return repo, nil
}

// ensureIndexes makes a resent webhook for the same entry revision collide
// with the first delivery, and keeps deliveries ordered by arrival.
func (r *mongoRepository) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "event", Value: 1},
				{Key: "model", Value: 1},
				{Key: "entryId", Value: 1},
				{Key: "entryUpdatedAt", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "receivedAt", Value: 1}},
		},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)

	if err != nil && r.logger != nil {
		r.logger.Printf("webhook: failed to create indexes: %v", err)
	}
	return err
}

func (r *mongoRepository) Record(ctx context.Context, d *Delivery) (bool, error) {
	if d.ReceivedAt.IsZero() {
		d.ReceivedAt = time.Now().UTC()
	}

	res, err := r.col.InsertOne(ctx, d)
	if mongo.IsDuplicateKeyError(err) {
		if r.logger != nil {
			r.logger.Printf("webhook: duplicate delivery %s %s#%d", d.Event, d.Model, d.EntryID)
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		d.ID = id
	}
	return true, nil
}

func (r *mongoRepository) Forget(ctx context.Context, d *Delivery) error {
	_, err := r.col.DeleteOne(ctx, bson.M{
		"event":          d.Event,
		"model":          d.Model,
		"entryId":        d.EntryID,
		"entryUpdatedAt": d.EntryUpdatedAt,
	})
	return err
}
